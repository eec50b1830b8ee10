package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/history"
	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// mockRemediationHistory is a mock implementation of RemediationHistoryProvider for testing.
type mockRemediationHistory struct {
	entries   []history.Entry
	err       error
	lastLimit int
}

func (m *mockRemediationHistory) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit >= len(m.entries) {
		return m.entries, nil
	}
	return m.entries[:limit], nil
}

type staticStatistics map[string]interface{}

func (s staticStatistics) Summary() map[string]interface{} { return s }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(&Config{Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return server
}

func get(t *testing.T, server *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNewServer(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		wantErr  bool
		wantPort int
	}{
		{name: "nil config", config: nil, wantErr: true},
		{name: "defaults", config: &Config{Enabled: true}, wantPort: 8080},
		{
			name: "custom values",
			config: &Config{
				Enabled:      true,
				BindAddress:  "127.0.0.1",
				Port:         9090,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 20 * time.Second,
			},
			wantPort: 9090,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewServer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if server.config.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", server.config.Port, tt.wantPort)
			}
			if !server.healthy || server.ready {
				t.Error("new server should be healthy and not ready")
			}
		})
	}
}

func TestServer_handleHealthz(t *testing.T) {
	tests := []struct {
		name       string
		healthy    bool
		check      func() error
		wantStatus int
		wantBody   string
	}{
		{"healthy", true, nil, http.StatusOK, "ok"},
		{"unhealthy flag", false, nil, http.StatusServiceUnavailable, "unhealthy"},
		{"failing check", true, func() error { return errors.New("history database locked") }, http.StatusServiceUnavailable, "unhealthy"},
		{"passing check", true, func() error { return nil }, http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t)
			server.SetHealthy(tt.healthy)
			if tt.check != nil {
				server.AddHealthCheck("history", tt.check)
			}

			rec := get(t, server, "/healthz")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantBody)
			}
			if tt.check != nil && len(resp.Checks) != 1 {
				t.Errorf("Checks = %d, want 1", len(resp.Checks))
			}
		})
	}
}

func TestServer_handleReady(t *testing.T) {
	server := newTestServer(t)

	rec := get(t, server, "/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before first pass = %d, want 503", rec.Code)
	}

	server.UpdateSummary(nil)
	if rec := get(t, server, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("nil summary should not mark ready, got %d", rec.Code)
	}

	server.UpdateSummary(&types.PassSummary{PassID: "p1"})
	rec = get(t, server, "/ready")
	if rec.Code != http.StatusOK {
		t.Errorf("status after pass = %d, want 200", rec.Code)
	}

	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Error("Ready should be true")
	}

	server.SetReady(false)
	if rec := get(t, server, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("SetReady(false) status = %d", rec.Code)
	}
}

func TestServer_handleStatus(t *testing.T) {
	server := newTestServer(t)
	server.SetStatistics(staticStatistics{"passes_completed": 2})
	server.UpdateSummary(&types.PassSummary{
		PassID: "pass-42",
		Counts: types.PassCounts{Systems: 4, Triggered: 2},
	})

	rec := get(t, server, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.LastPass == nil || resp.LastPass.PassID != "pass-42" {
		t.Errorf("LastPass = %+v", resp.LastPass)
	}
	if resp.LastPass.Counts.Triggered != 2 {
		t.Errorf("Triggered = %d, want 2", resp.LastPass.Counts.Triggered)
	}
	if resp.Statistics["passes_completed"] != float64(2) {
		t.Errorf("statistics = %v", resp.Statistics)
	}
	if resp.Metadata["version"] != Version {
		t.Errorf("version = %q", resp.Metadata["version"])
	}
}

func TestServer_handleRemediationHistory_NoProvider(t *testing.T) {
	server := newTestServer(t)
	rec := get(t, server, "/remediation/history")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestServer_handleRemediationHistory_WithProvider(t *testing.T) {
	entries := make([]history.Entry, 0, 5)
	for i := 0; i < 5; i++ {
		entries = append(entries, history.Entry{
			ID:     int64(5 - i),
			PassID: fmt.Sprintf("p%d", i),
			Report: types.RemediationReport{SystemID: "Linux", Platform: "Linux"},
		})
	}

	tests := []struct {
		name      string
		query     string
		wantLimit int
		wantCount int
	}{
		{"default limit", "", 100, 5},
		{"explicit limit", "?limit=2", 2, 2},
		{"capped", "?limit=5000", 1000, 5},
		{"invalid", "?limit=abc", 100, 5},
		{"negative", "?limit=-3", 100, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockRemediationHistory{entries: entries}
			server := newTestServer(t)
			server.SetRemediationHistory(provider)

			rec := get(t, server, "/remediation/history"+tt.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if provider.lastLimit != tt.wantLimit {
				t.Errorf("provider limit = %d, want %d", provider.lastLimit, tt.wantLimit)
			}

			var resp struct {
				Count   int             `json:"count"`
				Limit   int             `json:"limit"`
				History []history.Entry `json:"history"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Count != tt.wantCount || len(resp.History) != tt.wantCount {
				t.Errorf("count = %d, history = %d, want %d", resp.Count, len(resp.History), tt.wantCount)
			}
		})
	}
}

func TestServer_handleRemediationHistory_ProviderError(t *testing.T) {
	server := newTestServer(t)
	server.SetRemediationHistory(&mockRemediationHistory{err: errors.New("database is closed")})

	rec := get(t, server, "/remediation/history")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServer_StartStop(t *testing.T) {
	server, err := NewServer(&Config{Enabled: true, BindAddress: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	if err := server.Stop(); err != nil {
		t.Errorf("Stop() before Start error = %v", err)
	}

	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := server.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := server.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if server.Addr() != "" {
		t.Error("Addr() should be empty after Stop")
	}
}

func TestServer_Name(t *testing.T) {
	if name := newTestServer(t).Name(); name != "health-server" {
		t.Errorf("Name() = %q", name)
	}
}
