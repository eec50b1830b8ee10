package remediators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// ExecutorConfig contains the configuration for an Executor.
type ExecutorConfig struct {
	Runner CommandRunner
	Probe  types.ToolProbe
	Logger Logger

	// DryRun records every runnable action as Simulated without invoking it.
	DryRun bool

	// CommandTimeout bounds each invocation; zero uses DefaultCommandTimeout.
	CommandTimeout time.Duration

	// MaxCommandsPerSecond throttles launches across all callers sharing the
	// executor. Zero disables throttling.
	MaxCommandsPerSecond float64

	// Selection limits which categories run. Nil runs everything.
	Selection types.ActionSelection
}

// Executor runs platform handlers. It is safe for concurrent use by multiple
// systems; actions of a single handler always run sequentially.
type Executor struct {
	runner         CommandRunner
	probe          types.ToolProbe
	logger         Logger
	dryRun         bool
	commandTimeout time.Duration
	limiter        *rate.Limiter
	selection      types.ActionSelection
	now            func() time.Time
}

// NewExecutor creates an executor from config.
func NewExecutor(config ExecutorConfig) (*Executor, error) {
	if config.Runner == nil {
		return nil, fmt.Errorf("command runner is required")
	}
	if config.Probe == nil {
		return nil, fmt.Errorf("tool probe is required")
	}
	if config.CommandTimeout < 0 {
		return nil, fmt.Errorf("command timeout must not be negative, got %v", config.CommandTimeout)
	}
	if config.MaxCommandsPerSecond < 0 {
		return nil, fmt.Errorf("max commands per second must not be negative, got %v", config.MaxCommandsPerSecond)
	}

	timeout := config.CommandTimeout
	if timeout == 0 {
		timeout = DefaultCommandTimeout
	}

	e := &Executor{
		runner:         config.Runner,
		probe:          config.Probe,
		logger:         config.Logger,
		dryRun:         config.DryRun,
		commandTimeout: timeout,
		selection:      config.Selection,
		now:            time.Now,
	}
	if config.MaxCommandsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(config.MaxCommandsPerSecond), 1)
	}
	return e, nil
}

// WithSelection returns a copy of the executor that runs only sel. The copy
// shares the runner, probe and rate limiter.
func (e *Executor) WithSelection(sel types.ActionSelection) *Executor {
	clone := *e
	clone.selection = sel
	return &clone
}

// DryRun reports whether the executor simulates every runnable action.
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// Execute runs every selected action of handler in order and returns the
// report. It always returns a report with one outcome per selected action.
func (e *Executor) Execute(ctx context.Context, systemID string, handler *PlatformHandler) *types.RemediationReport {
	if handler == nil {
		handler = fallbackHandler(systemID)
	}

	actions := handler.Selected(e.selection)
	report := &types.RemediationReport{
		SystemID:    systemID,
		Platform:    handler.Platform,
		Fallback:    handler.Fallback,
		Outcomes:    make([]types.ActionOutcome, 0, len(actions)),
		TriggeredAt: e.now(),
	}

	for _, action := range actions {
		outcome := e.runAction(ctx, action)
		e.logOutcome(systemID, handler.Platform, outcome)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report
}

// runAction produces exactly one outcome for action.
func (e *Executor) runAction(ctx context.Context, action types.RemedialAction) types.ActionOutcome {
	start := e.now()
	outcome := types.ActionOutcome{
		ActionLabel: action.Label,
		Category:    action.Category,
	}
	finish := func(status types.ActionStatus, detail string) types.ActionOutcome {
		outcome.Status = status
		outcome.Detail = detail
		outcome.Duration = e.now().Sub(start)
		return outcome
	}

	if action.RequiredTool != "" && !e.probe.Available(action.RequiredTool) {
		return finish(types.StatusSimulated,
			fmt.Sprintf("%s not available, would run: %s", action.RequiredTool, action.CommandLine()))
	}
	if e.dryRun {
		return finish(types.StatusSimulated, "dry-run")
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return finish(types.StatusFailed, fmt.Sprintf("cancelled: %v", err))
		}
	}
	if err := ctx.Err(); err != nil {
		return finish(types.StatusFailed, fmt.Sprintf("cancelled: %v", err))
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	result, err := e.safeRun(cmdCtx, action.Command)
	if err != nil {
		if errors.Is(err, types.ErrCommandTimeout) {
			return finish(types.StatusFailed, "timeout")
		}
		return finish(types.StatusFailed, joinDetail(err.Error(), result.Output))
	}

	for _, check := range action.OutputChecks {
		if strings.Contains(result.Output, check.Contains) {
			detail := check.Detail
			if detail == "" {
				detail = fmt.Sprintf("output contains %q", check.Contains)
			}
			return finish(check.Status, detail)
		}
	}
	return finish(types.StatusSucceeded, truncateDetail(strings.TrimSpace(result.Output)))
}

// safeRun invokes the runner with panic recovery.
func (e *Executor) safeRun(ctx context.Context, command []string) (result CommandResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = CommandResult{ExitCode: -1}
			err = fmt.Errorf("%w: panic during command execution: %v", types.ErrCommandFailed, rec)
		}
	}()
	return e.runner.Run(ctx, command[0], command[1:]...)
}

func (e *Executor) logOutcome(systemID, platform string, outcome types.ActionOutcome) {
	switch outcome.Status {
	case types.StatusFailed:
		e.logErrorf("system=%s platform=%s action=%q status=%s detail=%q",
			systemID, platform, outcome.ActionLabel, outcome.Status, outcome.Detail)
	case types.StatusSimulated:
		e.logWarnf("system=%s platform=%s action=%q status=%s detail=%q",
			systemID, platform, outcome.ActionLabel, outcome.Status, outcome.Detail)
	default:
		e.logInfof("system=%s platform=%s action=%q status=%s duration=%v",
			systemID, platform, outcome.ActionLabel, outcome.Status, outcome.Duration)
	}
}

func joinDetail(msg, output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return msg
	}
	return msg + ": " + truncateDetail(output)
}

func truncateDetail(s string) string {
	if len(s) > maxDetailLength {
		return s[:maxDetailLength] + "..."
	}
	return s
}

// logInfof logs an informational message if a logger is configured.
func (e *Executor) logInfof(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Infof("[Executor] "+format, args...)
	}
}

// logWarnf logs a warning message if a logger is configured.
func (e *Executor) logWarnf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warnf("[Executor] "+format, args...)
	}
}

// logErrorf logs an error message if a logger is configured.
func (e *Executor) logErrorf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Errorf("[Executor] "+format, args...)
	}
}
