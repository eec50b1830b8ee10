package orchestrator

import (
	"sync"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// Statistics accumulates totals across passes for the status endpoint.
// All methods are thread-safe.
type Statistics struct {
	mu               sync.RWMutex
	passesCompleted  int64
	passesFailed     int64
	systemsEvaluated int64
	systemsTriggered int64
	systemsSkipped   int64
	actionsSucceeded int64
	actionsSimulated int64
	actionsFailed    int64
	lastPassID       string
	lastPassAt       time.Time
	startTime        time.Time
}

// NewStatistics creates a tracker starting now.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

// RecordPass folds a finished pass into the totals.
func (s *Statistics) RecordPass(summary *types.PassSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := summary.Counts
	s.passesCompleted++
	s.systemsEvaluated += int64(c.Systems - c.Skipped)
	s.systemsTriggered += int64(c.Triggered)
	s.systemsSkipped += int64(c.Skipped)
	s.actionsSucceeded += int64(c.Succeeded)
	s.actionsSimulated += int64(c.Simulated)
	s.actionsFailed += int64(c.Failed)
	s.lastPassID = summary.PassID
	s.lastPassAt = summary.FinishedAt
}

// RecordFailedPass counts a pass that could not list systems.
func (s *Statistics) RecordFailedPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passesFailed++
}

// PassesCompleted returns how many passes finished.
func (s *Statistics) PassesCompleted() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.passesCompleted
}

// Summary returns the totals as a JSON-friendly map.
func (s *Statistics) Summary() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := map[string]interface{}{
		"uptime":            time.Since(s.startTime).String(),
		"passes_completed":  s.passesCompleted,
		"passes_failed":     s.passesFailed,
		"systems_evaluated": s.systemsEvaluated,
		"systems_triggered": s.systemsTriggered,
		"systems_skipped":   s.systemsSkipped,
		"actions_succeeded": s.actionsSucceeded,
		"actions_simulated": s.actionsSimulated,
		"actions_failed":    s.actionsFailed,
	}
	if s.lastPassID != "" {
		summary["last_pass_id"] = s.lastPassID
		summary["last_pass_at"] = s.lastPassAt.Format(time.RFC3339)
	}
	return summary
}
