// Package types defines the core interfaces and data model for the
// self-healing trigger: aggregate stats, thresholds, remedial actions,
// outcomes and per-system evaluation results.
package types

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StatSource supplies per-system aggregate error and warning counts.
// Implementations live in pkg/source; the engine only consumes them.
type StatSource interface {
	// Systems returns the identifiers of all monitored systems for this pass,
	// in the source's iteration order. An error means the source as a whole
	// is unavailable.
	Systems(ctx context.Context) ([]string, error)

	// Stats returns the aggregate counts for a single system.
	Stats(ctx context.Context, systemID string) (SystemStats, error)
}

// ToolProbe reports whether an external executable is available on the host.
// Implementations must not invoke the tool itself and must never panic or
// return an error; a failed lookup is reported as false.
type ToolProbe interface {
	Available(tool string) bool
}

// MetricsSink receives monotonic counter increments keyed by system.
// Implementations must be safe for concurrent use.
type MetricsSink interface {
	// RecordStats adds the observed counts to the per-system counters.
	RecordStats(systemID string, errorCount, warningCount int64)

	// RecordRemediation increments the per-system trigger counter.
	RecordRemediation(systemID string)
}

// SystemStats is the aggregate produced by a StatSource for one system.
type SystemStats struct {
	// SystemID names the monitored system (e.g. "Linux", "Android").
	SystemID string `json:"system" yaml:"system"`

	// Platform selects the remediation handler. Empty means the system
	// identifier doubles as the platform identifier.
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`

	ErrorCount   int64 `json:"errors" yaml:"errors"`
	WarningCount int64 `json:"warnings" yaml:"warnings"`
}

// PlatformID returns the platform identifier used for handler lookup.
func (s SystemStats) PlatformID() string {
	if s.Platform != "" {
		return s.Platform
	}
	return s.SystemID
}

// Validate rejects stats that the engine must not evaluate.
func (s SystemStats) Validate() error {
	if strings.TrimSpace(s.SystemID) == "" {
		return fmt.Errorf("%w: system id is empty", ErrInvalidStats)
	}
	if s.ErrorCount < 0 {
		return fmt.Errorf("%w: %s has negative error count %d", ErrInvalidStats, s.SystemID, s.ErrorCount)
	}
	if s.WarningCount < 0 {
		return fmt.Errorf("%w: %s has negative warning count %d", ErrInvalidStats, s.SystemID, s.WarningCount)
	}
	return nil
}

// Thresholds are the trigger limits. A count strictly greater than its
// threshold triggers remediation.
type Thresholds struct {
	ErrorThreshold   int64 `json:"errorThreshold" yaml:"errorThreshold" validate:"gte=0"`
	WarningThreshold int64 `json:"warningThreshold" yaml:"warningThreshold" validate:"gte=0"`
}

// Validate checks that both thresholds are non-negative.
func (t Thresholds) Validate() error {
	if t.ErrorThreshold < 0 {
		return fmt.Errorf("%w: errorThreshold must be >= 0, got %d", ErrConfiguration, t.ErrorThreshold)
	}
	if t.WarningThreshold < 0 {
		return fmt.Errorf("%w: warningThreshold must be >= 0, got %d", ErrConfiguration, t.WarningThreshold)
	}
	return nil
}

// ActionCategory groups remediation intents for presentation and selection.
// It never affects execution order.
type ActionCategory string

const (
	CategorySystemUpdate   ActionCategory = "SystemUpdate"
	CategoryServiceRestart ActionCategory = "ServiceRestart"
	CategoryDiskCleanup    ActionCategory = "DiskCleanup"
	CategoryDeviceReboot   ActionCategory = "DeviceReboot"
)

// AllCategories returns every category in presentation order.
func AllCategories() []ActionCategory {
	return []ActionCategory{
		CategorySystemUpdate,
		CategoryServiceRestart,
		CategoryDiskCleanup,
		CategoryDeviceReboot,
	}
}

// ParseActionCategory accepts the canonical names case-insensitively plus the
// short forms update, restart, cleanup and reboot.
func ParseActionCategory(s string) (ActionCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "systemupdate", "system-update", "update":
		return CategorySystemUpdate, nil
	case "servicerestart", "service-restart", "restart":
		return CategoryServiceRestart, nil
	case "diskcleanup", "disk-cleanup", "cleanup":
		return CategoryDiskCleanup, nil
	case "devicereboot", "device-reboot", "reboot":
		return CategoryDeviceReboot, nil
	default:
		return "", fmt.Errorf("unknown action category %q", s)
	}
}

// ActionSelection is the set of categories chosen for execution.
// A nil or empty selection includes every category.
type ActionSelection map[ActionCategory]bool

// NewActionSelection builds a selection from the given categories.
func NewActionSelection(categories ...ActionCategory) ActionSelection {
	if len(categories) == 0 {
		return nil
	}
	sel := make(ActionSelection, len(categories))
	for _, c := range categories {
		sel[c] = true
	}
	return sel
}

// Includes reports whether actions of category c should run.
func (s ActionSelection) Includes(c ActionCategory) bool {
	if len(s) == 0 {
		return true
	}
	return s[c]
}

// ActionStatus is the recorded result of one remedial action.
type ActionStatus string

const (
	StatusSucceeded ActionStatus = "Succeeded"
	StatusSimulated ActionStatus = "Simulated"
	StatusFailed    ActionStatus = "Failed"
)

// OutputCheck inspects the combined output of a command that exited zero.
// When Contains is found, the outcome is downgraded to Status.
type OutputCheck struct {
	Contains string       `json:"contains" yaml:"contains"`
	Status   ActionStatus `json:"status" yaml:"status"`
	Detail   string       `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// RemedialAction is one step of a platform handler. Immutable once registered.
type RemedialAction struct {
	Label        string         `json:"label" yaml:"label"`
	Category     ActionCategory `json:"category" yaml:"category"`
	RequiredTool string         `json:"requiredTool,omitempty" yaml:"requiredTool,omitempty"`
	Command      []string       `json:"command" yaml:"command"`
	OutputChecks []OutputCheck  `json:"outputChecks,omitempty" yaml:"outputChecks,omitempty"`
}

// CommandLine renders the command for logs and simulated-outcome details.
func (a RemedialAction) CommandLine() string {
	return strings.Join(a.Command, " ")
}

// Validate checks the action is executable.
func (a RemedialAction) Validate() error {
	if a.Label == "" {
		return fmt.Errorf("action label is required")
	}
	switch a.Category {
	case CategorySystemUpdate, CategoryServiceRestart, CategoryDiskCleanup, CategoryDeviceReboot:
	default:
		return fmt.Errorf("action %q has unknown category %q", a.Label, a.Category)
	}
	if len(a.Command) == 0 || a.Command[0] == "" {
		return fmt.Errorf("action %q has no command", a.Label)
	}
	for _, check := range a.OutputChecks {
		if check.Contains == "" {
			return fmt.Errorf("action %q has an output check with empty match", a.Label)
		}
		if check.Status != StatusFailed && check.Status != StatusSimulated {
			return fmt.Errorf("action %q output check status must be Failed or Simulated, got %q", a.Label, check.Status)
		}
	}
	return nil
}

// ActionOutcome is created once per executed action and never mutated.
type ActionOutcome struct {
	ActionLabel string         `json:"action"`
	Category    ActionCategory `json:"category"`
	Status      ActionStatus   `json:"status"`
	Detail      string         `json:"detail,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

// RemediationReport collects the outcomes of one handler execution.
type RemediationReport struct {
	SystemID    string          `json:"system"`
	Platform    string          `json:"platform"`
	Fallback    bool            `json:"fallback,omitempty"`
	Outcomes    []ActionOutcome `json:"outcomes"`
	TriggeredAt time.Time       `json:"triggeredAt"`
}

// Count returns how many outcomes have the given status.
func (r *RemediationReport) Count(status ActionStatus) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// TriggerReason explains why remediation was (or was not) triggered.
type TriggerReason string

const (
	ReasonNone                     TriggerReason = "None"
	ReasonErrorThresholdExceeded   TriggerReason = "ErrorThresholdExceeded"
	ReasonWarningThresholdExceeded TriggerReason = "WarningThresholdExceeded"
)

// SystemState tracks a system through one pass.
type SystemState string

const (
	StateIdle         SystemState = "Idle"
	StateEvaluating   SystemState = "Evaluating"
	StateNotTriggered SystemState = "NotTriggered"
	StateTriggered    SystemState = "Triggered"
	StateRemediating  SystemState = "Remediating"
	StateCompleted    SystemState = "Completed"
	StateSkipped      SystemState = "Skipped"
)

// EvaluationResult is produced once per system per pass. Report is non-nil
// if and only if Triggered is true.
type EvaluationResult struct {
	SystemID   string             `json:"system"`
	Stats      *SystemStats       `json:"stats,omitempty"`
	State      SystemState        `json:"state"`
	Triggered  bool               `json:"triggered"`
	Reason     TriggerReason      `json:"reason"`
	Report     *RemediationReport `json:"report,omitempty"`
	Skipped    bool               `json:"skipped,omitempty"`
	SkipReason string             `json:"skipReason,omitempty"`
}

// PassCounts aggregates a pass for summaries and health endpoints.
type PassCounts struct {
	Systems      int `json:"systems"`
	NotTriggered int `json:"notTriggered"`
	Triggered    int `json:"triggered"`
	Skipped      int `json:"skipped"`
	Succeeded    int `json:"succeeded"`
	Simulated    int `json:"simulated"`
	Failed       int `json:"failed"`
}

// PassSummary is the structured output of one remediation pass.
type PassSummary struct {
	PassID     string             `json:"passId"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Thresholds Thresholds         `json:"thresholds"`
	Results    []EvaluationResult `json:"results"`
	Counts     PassCounts         `json:"counts"`
}

// Tally recomputes Counts from Results.
func (p *PassSummary) Tally() {
	c := PassCounts{Systems: len(p.Results)}
	for i := range p.Results {
		r := &p.Results[i]
		switch {
		case r.Skipped:
			c.Skipped++
		case r.Triggered:
			c.Triggered++
		default:
			c.NotTriggered++
		}
		c.Succeeded += r.Report.Count(StatusSucceeded)
		c.Simulated += r.Report.Count(StatusSimulated)
		c.Failed += r.Report.Count(StatusFailed)
	}
	p.Counts = c
}

// Duration returns the wall time of the pass.
func (p *PassSummary) Duration() time.Duration {
	return p.FinishedAt.Sub(p.StartedAt)
}
