package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/remediators"
	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// TestContext creates a test context with timeout.
func TestContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx, cancel
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: %v", fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...), err)
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf(msgAndArgs[0].(string), msgAndArgs[1:]...)
		} else {
			t.Fatal("expected error but got nil")
		}
	}
}

// AssertEqual fails the test if expected != actual.
func AssertEqual(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if expected != actual {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: expected %v, got %v", fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...), expected, actual)
		} else {
			t.Fatalf("expected %v, got %v", expected, actual)
		}
	}
}

// AssertTrue fails the test if condition is false.
func AssertTrue(t *testing.T, condition bool, msgAndArgs ...interface{}) {
	t.Helper()
	if !condition {
		if len(msgAndArgs) > 0 {
			t.Fatalf(msgAndArgs[0].(string), msgAndArgs[1:]...)
		} else {
			t.Fatal("expected true but got false")
		}
	}
}

// AssertFalse fails the test if condition is true.
func AssertFalse(t *testing.T, condition bool, msgAndArgs ...interface{}) {
	t.Helper()
	if condition {
		if len(msgAndArgs) > 0 {
			t.Fatalf(msgAndArgs[0].(string), msgAndArgs[1:]...)
		} else {
			t.Fatal("expected false but got true")
		}
	}
}

// MockCommandRunner implements remediators.CommandRunner for testing.
type MockCommandRunner struct {
	mu               sync.RWMutex
	commands         map[string]*CommandConfig
	executedCommands []ExecutedCommand
	defaultOutput    string
	defaultError     error
}

// CommandConfig configures mock command behavior.
type CommandConfig struct {
	Output string
	Error  error
	Delay  time.Duration
}

// ExecutedCommand tracks an executed command.
type ExecutedCommand struct {
	Name string
	Args []string
	Time time.Time
}

var _ remediators.CommandRunner = (*MockCommandRunner)(nil)

// NewMockCommandRunner creates a new mock command runner.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		commands:         make(map[string]*CommandConfig),
		executedCommands: make([]ExecutedCommand, 0),
	}
}

// SetCommand configures the behavior for a specific command name.
func (m *MockCommandRunner) SetCommand(name string, output string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[name] = &CommandConfig{
		Output: output,
		Error:  err,
	}
}

// SetCommandWithDelay configures a command with a delay.
func (m *MockCommandRunner) SetCommandWithDelay(name string, output string, err error, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[name] = &CommandConfig{
		Output: output,
		Error:  err,
		Delay:  delay,
	}
}

// SetDefaultBehavior sets the default output and error for unknown commands.
func (m *MockCommandRunner) SetDefaultBehavior(output string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultOutput = output
	m.defaultError = err
}

// Run simulates command execution. A configured delay honours ctx; an
// expired deadline is reported as types.ErrCommandTimeout.
func (m *MockCommandRunner) Run(ctx context.Context, name string, args ...string) (remediators.CommandResult, error) {
	m.mu.Lock()
	m.executedCommands = append(m.executedCommands, ExecutedCommand{
		Name: name,
		Args: append([]string(nil), args...),
		Time: time.Now(),
	})
	config, exists := m.commands[name]
	output, cmdErr := m.defaultOutput, m.defaultError
	var delay time.Duration
	if exists {
		output, cmdErr, delay = config.Output, config.Error, config.Delay
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return remediators.CommandResult{ExitCode: -1}, fmt.Errorf("%w: %s", types.ErrCommandTimeout, name)
		}
	}

	result := remediators.CommandResult{Output: output, Duration: delay}
	if cmdErr != nil {
		result.ExitCode = 1
		return result, fmt.Errorf("%w: %v", types.ErrCommandFailed, cmdErr)
	}
	return result, nil
}

// GetExecutedCommands returns all executed commands.
func (m *MockCommandRunner) GetExecutedCommands() []ExecutedCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	commands := make([]ExecutedCommand, len(m.executedCommands))
	copy(commands, m.executedCommands)
	return commands
}

// GetExecutedCommandCount returns the number of executed commands.
func (m *MockCommandRunner) GetExecutedCommandCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.executedCommands)
}

// WasCommandExecuted checks if a command line starting with prefix was executed.
func (m *MockCommandRunner) WasCommandExecuted(prefix string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cmd := range m.executedCommands {
		line := strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Reset clears all state from the runner.
func (m *MockCommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = make(map[string]*CommandConfig)
	m.executedCommands = make([]ExecutedCommand, 0)
	m.defaultOutput = ""
	m.defaultError = nil
}

// MockStatsServer serves per-system counts the way the http stat source
// expects them.
type MockStatsServer struct {
	*httptest.Server

	mu           sync.Mutex
	records      []StatsRecord
	statusCode   int
	requestCount int
}

// StatsRecord is one entry of the served document.
type StatsRecord struct {
	System   string `json:"system"`
	Platform string `json:"platform,omitempty"`
	Errors   int64  `json:"errors"`
	Warnings int64  `json:"warnings"`
}

// NewMockStatsServer creates a server answering with stats.
func NewMockStatsServer(stats []types.SystemStats) *MockStatsServer {
	mock := &MockStatsServer{statusCode: http.StatusOK}
	mock.SetStats(stats)

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		defer mock.mu.Unlock()

		mock.requestCount++
		if mock.statusCode != http.StatusOK {
			w.WriteHeader(mock.statusCode)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.records)
	}))
	return mock
}

// SetStats replaces the served document.
func (m *MockStatsServer) SetStats(stats []types.SystemStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make([]StatsRecord, 0, len(stats))
	for _, s := range stats {
		m.records = append(m.records, StatsRecord{
			System:   s.SystemID,
			Platform: s.Platform,
			Errors:   s.ErrorCount,
			Warnings: s.WarningCount,
		})
	}
}

// SetStatusCode makes the server fail with code; http.StatusOK restores it.
func (m *MockStatsServer) SetStatusCode(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCode = code
}

// GetRequestCount returns the number of requests served.
func (m *MockStatsServer) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// TempDir creates a temporary directory for tests.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "self-healing-trigger-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempConfigFile writes a config file using the given source section and
// returns its path. The config enables dry-run and disables every server.
func TempConfigFile(t *testing.T, sourceYAML string) string {
	t.Helper()
	content := `apiVersion: selfheal.supporttools.io/v1alpha1
kind: SelfHealConfig
settings:
  logLevel: error
  logOutput: stderr
thresholds:
  errorThreshold: 100
  warningThreshold: 500
` + sourceYAML + `
remediation:
  dryRun: true
  workers: 2
metrics:
  enabled: false
health:
  enabled: false
`
	path := filepath.Join(TempDir(t), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp config file: %v", err)
	}
	return path
}

// Eventually retries a condition function until it returns true or timeout.
func Eventually(t *testing.T, condition func() bool, timeout time.Duration, interval time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	if len(msgAndArgs) > 0 {
		t.Fatalf(msgAndArgs[0].(string), msgAndArgs[1:]...)
	} else {
		t.Fatal("condition not met within timeout")
	}
}
