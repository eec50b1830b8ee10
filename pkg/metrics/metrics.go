// Package metrics exposes the remediation counters for pull-based scraping.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// Metric names. The three per-system counters keep their historical names
// without a _total suffix so existing dashboards keep working.
const (
	ErrorsDetectedName           = "errors_detected"
	WarningsDetectedName         = "warnings_detected"
	RemedialActionsTriggeredName = "remedial_actions_triggered"
	ActionOutcomesName           = "remediation_action_outcomes_total"
	SystemsSkippedName           = "systems_skipped_total"
	PassDurationName             = "pass_duration_seconds"

	systemLabel = "system"
	statusLabel = "status"
)

// Metrics holds every collector and implements types.MetricsSink. All
// counters are monotonic and never reset; concurrent updates are atomic.
type Metrics struct {
	ErrorsDetected           *prometheus.CounterVec
	WarningsDetected         *prometheus.CounterVec
	RemedialActionsTriggered *prometheus.CounterVec
	ActionOutcomes           *prometheus.CounterVec
	SystemsSkipped           *prometheus.CounterVec
	PassDuration             prometheus.Histogram
}

var _ types.MetricsSink = (*Metrics)(nil)

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		ErrorsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ErrorsDetectedName,
				Help: "Number of errors detected",
			},
			[]string{systemLabel},
		),
		WarningsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: WarningsDetectedName,
				Help: "Number of warnings detected",
			},
			[]string{systemLabel},
		),
		RemedialActionsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: RemedialActionsTriggeredName,
				Help: "Number of remedial actions triggered",
			},
			[]string{systemLabel},
		),
		ActionOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ActionOutcomesName,
				Help: "Remedial action outcomes by status",
			},
			[]string{systemLabel, statusLabel},
		),
		SystemsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: SystemsSkippedName,
				Help: "Systems skipped because their stats could not be fetched or were invalid",
			},
			[]string{systemLabel},
		),
		PassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    PassDurationName,
				Help:    "Wall time of a full remediation pass",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
			},
		),
	}
}

// Register registers every collector with registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ErrorsDetected,
		m.WarningsDetected,
		m.RemedialActionsTriggered,
		m.ActionOutcomes,
		m.SystemsSkipped,
		m.PassDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return nil
}

// RecordStats adds the observed counts. Negative counts are ignored; the
// orchestrator rejects them before they get here.
func (m *Metrics) RecordStats(systemID string, errorCount, warningCount int64) {
	if errorCount > 0 {
		m.ErrorsDetected.WithLabelValues(systemID).Add(float64(errorCount))
	} else {
		// materialize the series so scrapes show an explicit zero
		m.ErrorsDetected.WithLabelValues(systemID)
	}
	if warningCount > 0 {
		m.WarningsDetected.WithLabelValues(systemID).Add(float64(warningCount))
	} else {
		m.WarningsDetected.WithLabelValues(systemID)
	}
}

// RecordRemediation increments the trigger counter for systemID.
func (m *Metrics) RecordRemediation(systemID string) {
	m.RemedialActionsTriggered.WithLabelValues(systemID).Inc()
}

// RecordActionOutcome counts one action outcome.
func (m *Metrics) RecordActionOutcome(systemID string, status types.ActionStatus) {
	m.ActionOutcomes.WithLabelValues(systemID, string(status)).Inc()
}

// RecordSkipped counts a skipped system.
func (m *Metrics) RecordSkipped(systemID string) {
	m.SystemsSkipped.WithLabelValues(systemID).Inc()
}

// ObservePassDuration records a finished pass.
func (m *Metrics) ObservePassDuration(seconds float64) {
	m.PassDuration.Observe(seconds)
}
