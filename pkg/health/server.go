// Package health provides HTTP health check endpoints for liveness and
// readiness probes, plus the latest pass summary and remediation history.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/history"
	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// Version is reported by the /status endpoint. Overridden by the binary.
var Version = "dev"

// Server provides HTTP health check endpoints.
type Server struct {
	config             *Config
	httpServer         *http.Server
	listener           net.Listener
	mu                 sync.RWMutex
	started            bool
	healthy            bool
	ready              bool
	lastSummary        *types.PassSummary
	lastUpdate         time.Time
	startTime          time.Time
	healthChecks       []HealthCheck
	statistics         StatisticsProvider
	remediationHistory RemediationHistoryProvider
}

// Config contains configuration for the health server.
type Config struct {
	// Enabled controls whether the health server is running
	Enabled bool

	// BindAddress is the address to bind to (default: 0.0.0.0)
	BindAddress string

	// Port is the port to listen on (default: 8080). Zero picks the default;
	// tests bind 127.0.0.1 with Port -1 for an ephemeral port.
	Port int

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration
}

// HealthCheck represents a health check function.
type HealthCheck struct {
	Name  string
	Check func() error
}

// StatisticsProvider exposes cumulative pass totals.
type StatisticsProvider interface {
	Summary() map[string]interface{}
}

// RemediationHistoryProvider gives the health server read access to stored
// remediation reports.
type RemediationHistoryProvider interface {
	// Recent returns up to limit reports, newest first.
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// HealthResponse represents the JSON response for /healthz endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check result.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReadinessResponse represents the JSON response for /ready endpoint.
type ReadinessResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// StatusResponse represents the JSON response for /status endpoint.
type StatusResponse struct {
	Healthy    bool                   `json:"healthy"`
	Ready      bool                   `json:"ready"`
	Uptime     string                 `json:"uptime"`
	LastUpdate time.Time              `json:"lastUpdate"`
	LastPass   *types.PassSummary     `json:"lastPass,omitempty"`
	Statistics map[string]interface{} `json:"statistics,omitempty"`
	Metadata   map[string]string      `json:"metadata,omitempty"`
}

// NewServer creates a new health server with the given configuration.
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Apply defaults
	if config.BindAddress == "" {
		config.BindAddress = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = types.DefaultHealthPort
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	return &Server{
		config:       config,
		healthy:      true,
		startTime:    time.Now(),
		healthChecks: make([]HealthCheck, 0),
	}, nil
}

// Handler returns the endpoint mux. Useful for embedding and tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/remediation/history", s.handleRemediationHistory)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("health server already started")
	}

	port := s.config.Port
	if port < 0 {
		port = 0
	}
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		log.Printf("[INFO] Starting health server on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] Health server failed: %v", err)
		}
	}()

	s.started = true
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the health server gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	log.Printf("[INFO] Stopping health server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown health server: %w", err)
	}

	s.started = false
	s.listener = nil
	log.Printf("[INFO] Health server stopped")
	return nil
}

// UpdateSummary records the latest completed pass. The server becomes ready
// after the first one.
func (s *Server) UpdateSummary(summary *types.PassSummary) {
	if summary == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSummary = summary
	s.lastUpdate = time.Now()
	s.ready = true
}

// SetHealthy sets the overall health status.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// SetReady sets the readiness status.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// AddHealthCheck adds a custom health check.
func (s *Server) AddHealthCheck(name string, check func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthChecks = append(s.healthChecks, HealthCheck{Name: name, Check: check})
}

// SetStatistics sets the provider of cumulative totals for /status.
func (s *Server) SetStatistics(provider StatisticsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statistics = provider
}

// SetRemediationHistory sets the provider for the /remediation/history endpoint.
func (s *Server) SetRemediationHistory(provider RemediationHistoryProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remediationHistory = provider
}

// handleHealthz handles the /healthz endpoint (liveness probe).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checks := make([]Check, 0, len(s.healthChecks))
	allHealthy := s.healthy

	for _, hc := range s.healthChecks {
		check := Check{Name: hc.Name, Status: "ok"}
		if err := hc.Check(); err != nil {
			check.Status = "failed"
			check.Error = err.Error()
			allHealthy = false
		}
		checks = append(checks, check)
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    checks,
	}

	status := http.StatusOK
	if !allHealthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// handleReady handles the /ready endpoint (readiness probe).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response := ReadinessResponse{
		Ready:     s.ready,
		Timestamp: time.Now(),
	}

	status := http.StatusOK
	if !s.ready {
		response.Message = "Not ready: no remediation pass completed yet"
		status = http.StatusServiceUnavailable
	} else {
		response.Message = "Ready"
	}
	writeJSON(w, status, response)
}

// handleStatus handles the /status endpoint (detailed status).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response := StatusResponse{
		Healthy:    s.healthy,
		Ready:      s.ready,
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		LastUpdate: s.lastUpdate,
		LastPass:   s.lastSummary,
		Metadata: map[string]string{
			"version":    Version,
			"started_at": s.startTime.Format(time.RFC3339),
		},
	}
	if s.statistics != nil {
		response.Statistics = s.statistics.Summary()
	}
	writeJSON(w, http.StatusOK, response)
}

// handleRemediationHistory handles the /remediation/history endpoint.
//
// Query parameters:
//   - limit: Maximum number of records to return (default: 100, max: 1000)
func (s *Server) handleRemediationHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	provider := s.remediationHistory
	s.mu.RUnlock()

	if provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "Remediation history not available",
		})
		return
	}

	limit := history.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 1000 {
		limit = 1000
	}

	entries, err := provider.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("[WARN] Failed to read remediation history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"limit":   limit,
		"history": entries,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Name returns the name of the health server.
func (s *Server) Name() string {
	return "health-server"
}
