// Package evaluator decides whether a system's aggregate stats warrant
// remediation.
package evaluator

import "github.com/supporttools/self-healing-trigger/pkg/types"

// Evaluate compares stats against thresholds. The error count is checked
// first, so when both counts exceed their limits the reason is always
// ReasonErrorThresholdExceeded. Comparisons are strictly greater-than.
func Evaluate(stats types.SystemStats, thresholds types.Thresholds) (bool, types.TriggerReason) {
	if stats.ErrorCount > thresholds.ErrorThreshold {
		return true, types.ReasonErrorThresholdExceeded
	}
	if stats.WarningCount > thresholds.WarningThreshold {
		return true, types.ReasonWarningThresholdExceeded
	}
	return false, types.ReasonNone
}
