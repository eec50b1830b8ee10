// Package orchestrator drives remediation passes: it fetches stats for every
// monitored system, evaluates thresholds, runs the platform handler of each
// triggered system and aggregates the results.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/supporttools/self-healing-trigger/pkg/evaluator"
	"github.com/supporttools/self-healing-trigger/pkg/remediators"
	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// DefaultWorkers bounds concurrent system pipelines when none is configured.
const DefaultWorkers = 4

// PassObserver receives instrumentation beyond the core MetricsSink counters.
// A MetricsSink that also implements it gets these calls.
type PassObserver interface {
	RecordActionOutcome(systemID string, status types.ActionStatus)
	RecordSkipped(systemID string)
	ObservePassDuration(seconds float64)
}

// ReportRecorder persists remediation reports. Failures are logged and
// never affect the pass.
type ReportRecorder interface {
	Save(ctx context.Context, passID string, report *types.RemediationReport) error
}

// Config contains the collaborators of an Orchestrator.
type Config struct {
	Source     types.StatSource
	Registry   *remediators.Registry
	Executor   *remediators.Executor
	Metrics    types.MetricsSink
	Thresholds types.Thresholds

	// Workers bounds concurrent system pipelines; zero uses DefaultWorkers.
	Workers int

	// PassTimeout is the overall pass deadline; zero means none. Systems not
	// started by the deadline are reported Skipped.
	PassTimeout time.Duration

	// History is optional.
	History ReportRecorder

	// Logger is optional.
	Logger remediators.Logger
}

// passSettings is the immutable view one pass runs with.
type passSettings struct {
	thresholds types.Thresholds
	executor   *remediators.Executor
	timeout    time.Duration
}

// Orchestrator runs remediation passes. Passes are serialized; settings
// changed through the setters apply from the next pass on.
type Orchestrator struct {
	source   types.StatSource
	registry *remediators.Registry
	metrics  types.MetricsSink
	observer PassObserver
	history  ReportRecorder
	logger   remediators.Logger
	workers  int
	stats    *Statistics

	mu       sync.RWMutex
	settings passSettings

	passMu sync.Mutex
	now    func() time.Time
	newID  func() string
}

// New creates an orchestrator. The registry must already be sealed.
func New(config Config) (*Orchestrator, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("stat source is required")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if !config.Registry.Sealed() {
		return nil, fmt.Errorf("registry must be sealed before passes run")
	}
	if config.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if config.Metrics == nil {
		return nil, fmt.Errorf("metrics sink is required")
	}
	if err := config.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if config.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative", types.ErrConfiguration)
	}
	if config.PassTimeout < 0 {
		return nil, fmt.Errorf("%w: pass timeout must not be negative", types.ErrConfiguration)
	}

	workers := config.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}

	o := &Orchestrator{
		source:   config.Source,
		registry: config.Registry,
		metrics:  config.Metrics,
		history:  config.History,
		logger:   config.Logger,
		workers:  workers,
		stats:    NewStatistics(),
		settings: passSettings{
			thresholds: config.Thresholds,
			executor:   config.Executor,
			timeout:    config.PassTimeout,
		},
		now:   time.Now,
		newID: uuid.NewString,
	}
	if obs, ok := config.Metrics.(PassObserver); ok {
		o.observer = obs
	}
	return o, nil
}

// Thresholds returns the thresholds the next pass will use.
func (o *Orchestrator) Thresholds() types.Thresholds {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings.thresholds
}

// SetThresholds replaces the thresholds for subsequent passes. A pass in
// progress keeps the values it started with.
func (o *Orchestrator) SetThresholds(t types.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.thresholds = t
	return nil
}

// SetSelection replaces the action selection for subsequent passes.
func (o *Orchestrator) SetSelection(sel types.ActionSelection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.executor = o.settings.executor.WithSelection(sel)
}

// SetPassTimeout replaces the pass deadline for subsequent passes.
func (o *Orchestrator) SetPassTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: pass timeout must not be negative", types.ErrConfiguration)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.timeout = d
	return nil
}

// Statistics returns the cumulative pass statistics.
func (o *Orchestrator) Statistics() *Statistics {
	return o.stats
}

// RunPass evaluates every system once. It returns an error only when the
// source cannot list systems at all; every per-system failure is reported
// inside the summary.
func (o *Orchestrator) RunPass(ctx context.Context) (*types.PassSummary, error) {
	o.passMu.Lock()
	defer o.passMu.Unlock()

	o.mu.RLock()
	settings := o.settings
	o.mu.RUnlock()

	summary := &types.PassSummary{
		PassID:     o.newID(),
		StartedAt:  o.now(),
		Thresholds: settings.thresholds,
	}

	passCtx := ctx
	if settings.timeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, settings.timeout)
		defer cancel()
	}

	systems, err := o.source.Systems(passCtx)
	if err != nil {
		o.stats.RecordFailedPass()
		if !errors.Is(err, types.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
		}
		o.logErrorf("pass=%s failed to list systems: %v", summary.PassID, err)
		return nil, err
	}

	o.logInfof("pass=%s started: systems=%d errorThreshold=%d warningThreshold=%d workers=%d",
		summary.PassID, len(systems), settings.thresholds.ErrorThreshold, settings.thresholds.WarningThreshold, o.workers)

	results := make([]types.EvaluationResult, len(systems))
	var g errgroup.Group
	g.SetLimit(o.workers)

	for i, systemID := range systems {
		i, systemID := i, systemID
		g.Go(func() error {
			if err := passCtx.Err(); err != nil {
				results[i] = o.skip(types.EvaluationResult{SystemID: systemID}, "pass deadline exceeded before start")
				return nil
			}
			results[i] = o.runSystem(passCtx, summary.PassID, systemID, settings)
			return nil
		})
	}
	_ = g.Wait()

	summary.Results = results
	summary.FinishedAt = o.now()
	summary.Tally()

	o.stats.RecordPass(summary)
	if o.observer != nil {
		o.observer.ObservePassDuration(summary.Duration().Seconds())
	}

	c := summary.Counts
	o.logInfof("pass=%s finished in %v: systems=%d triggered=%d notTriggered=%d skipped=%d succeeded=%d simulated=%d failed=%d",
		summary.PassID, summary.Duration().Round(time.Millisecond), c.Systems, c.Triggered, c.NotTriggered,
		c.Skipped, c.Succeeded, c.Simulated, c.Failed)
	return summary, nil
}

// runSystem isolates one system's pipeline, converting a panic into a
// Skipped result.
func (o *Orchestrator) runSystem(ctx context.Context, passID, systemID string, settings passSettings) (result types.EvaluationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = o.skip(types.EvaluationResult{SystemID: systemID}, fmt.Sprintf("panic during evaluation: %v", rec))
		}
	}()
	return o.evaluateSystem(ctx, passID, systemID, settings)
}

// evaluateSystem walks one system through
// Idle, Evaluating, NotTriggered or Triggered, Remediating and Completed.
func (o *Orchestrator) evaluateSystem(ctx context.Context, passID, systemID string, settings passSettings) types.EvaluationResult {
	result := types.EvaluationResult{
		SystemID: systemID,
		State:    types.StateIdle,
		Reason:   types.ReasonNone,
	}

	stats, err := o.source.Stats(ctx, systemID)
	if err != nil {
		if !errors.Is(err, types.ErrStatSource) {
			err = fmt.Errorf("%w: %v", types.ErrStatSource, err)
		}
		return o.skip(result, err.Error())
	}
	if stats.SystemID == "" {
		stats.SystemID = systemID
	}
	if err := stats.Validate(); err != nil {
		return o.skip(result, err.Error())
	}

	result.State = types.StateEvaluating
	result.Stats = &stats
	o.metrics.RecordStats(systemID, stats.ErrorCount, stats.WarningCount)

	triggered, reason := evaluator.Evaluate(stats, settings.thresholds)
	result.Reason = reason
	if !triggered {
		result.State = types.StateNotTriggered
		o.logInfof("system=%s errors=%d warnings=%d status=NotTriggered", systemID, stats.ErrorCount, stats.WarningCount)
		return result
	}

	result.Triggered = true
	result.State = types.StateTriggered
	o.metrics.RecordRemediation(systemID)

	platform := stats.PlatformID()
	o.logWarnf("system=%s platform=%s errors=%d warnings=%d reason=%s status=Triggered",
		systemID, platform, stats.ErrorCount, stats.WarningCount, reason)

	result.State = types.StateRemediating
	handler := o.registry.Lookup(platform)
	report := settings.executor.Execute(ctx, systemID, handler)
	result.Report = report

	if o.observer != nil {
		for _, outcome := range report.Outcomes {
			o.observer.RecordActionOutcome(systemID, outcome.Status)
		}
	}
	if o.history != nil {
		if err := o.history.Save(ctx, passID, report); err != nil {
			o.logWarnf("system=%s failed to record remediation history: %v", systemID, err)
		}
	}

	result.State = types.StateCompleted
	return result
}

func (o *Orchestrator) skip(result types.EvaluationResult, reason string) types.EvaluationResult {
	result.State = types.StateSkipped
	result.Skipped = true
	result.Triggered = false
	result.Reason = types.ReasonNone
	result.Report = nil
	result.SkipReason = reason
	if o.observer != nil {
		o.observer.RecordSkipped(result.SystemID)
	}
	o.logWarnf("system=%s status=Skipped reason=%q", result.SystemID, reason)
	return result
}

func (o *Orchestrator) logInfof(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Infof(format, args...)
	}
}

func (o *Orchestrator) logWarnf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Warnf(format, args...)
	}
}

func (o *Orchestrator) logErrorf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Errorf(format, args...)
	}
}
