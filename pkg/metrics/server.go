package metrics

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the scrape endpoint.
type Server struct {
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	path     string
}

// Handler returns the scrape handler for registry. OpenMetrics negotiation
// is disabled so counters are exposed under their registered names.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
		ErrorLog:          log.Default(),
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// NewServer creates a metrics server for addr, serving registry at path and
// a liveness document at /health.
func NewServer(addr, path string, registry *prometheus.Registry) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"metrics"}`))
	})

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		path: path,
	}, nil
}

// Start binds the listener and serves in the background. Bind failures are
// returned synchronously.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("metrics server already started")
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		log.Printf("[INFO] Starting metrics server on %s%s", ln.Addr(), s.path)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] Metrics server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.listener != nil
	s.mu.Unlock()
	if !started {
		return nil
	}

	log.Printf("[INFO] Shutting down metrics server...")
	if err := s.server.Shutdown(ctx); err != nil {
		log.Printf("[WARN] Metrics server shutdown error: %v", err)
		return err
	}
	log.Printf("[INFO] Metrics server shut down successfully")
	return nil
}
