package reload

import (
	"reflect"
	"sort"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// ConfigDiff represents the differences between two configurations.
// Hot fields are applied to the running orchestrator; everything listed in
// RestartRequired only takes effect after a restart.
type ConfigDiff struct {
	ThresholdsChanged  bool
	SelectionChanged   bool
	PassTimeoutChanged bool
	LogLevelChanged    bool

	// RestartRequired names the sections that changed but cannot be applied
	// to a running process.
	RestartRequired []string
}

// ComputeConfigDiff calculates the differences between old and new configurations.
func ComputeConfigDiff(oldConfig, newConfig *types.SelfHealConfig) *ConfigDiff {
	diff := &ConfigDiff{
		ThresholdsChanged:  oldConfig.Thresholds != newConfig.Thresholds,
		SelectionChanged:   !selectionsEqual(oldConfig.Remediation.Categories, newConfig.Remediation.Categories),
		PassTimeoutChanged: oldConfig.Remediation.PassTimeout != newConfig.Remediation.PassTimeout,
		LogLevelChanged:    oldConfig.Settings.LogLevel != newConfig.Settings.LogLevel,
		RestartRequired:    make([]string, 0),
	}

	oldRem, newRem := oldConfig.Remediation, newConfig.Remediation
	restart := map[string]bool{
		"source":                      !reflect.DeepEqual(oldConfig.Source, newConfig.Source),
		"metrics":                     oldConfig.Metrics != newConfig.Metrics,
		"health":                      oldConfig.Health != newConfig.Health,
		"history":                     oldConfig.History != newConfig.History,
		"daemon.interval":             oldConfig.Daemon.Interval != newConfig.Daemon.Interval,
		"remediation.platforms":       !reflect.DeepEqual(oldRem.Platforms, newRem.Platforms),
		"remediation.workers":         oldRem.Workers != newRem.Workers,
		"remediation.commandTimeout":  oldRem.CommandTimeout != newRem.CommandTimeout,
		"remediation.dryRun":          oldRem.DryRun != newRem.DryRun || oldRem.IsEnabled() != newRem.IsEnabled(),
		"remediation.maxCommandsRate": oldRem.MaxCommandsPerSecond != newRem.MaxCommandsPerSecond,
		"settings.logOutput": oldConfig.Settings.LogOutput != newConfig.Settings.LogOutput ||
			oldConfig.Settings.LogFormat != newConfig.Settings.LogFormat ||
			oldConfig.Settings.LogFile != newConfig.Settings.LogFile,
	}
	for section, changed := range restart {
		if changed {
			diff.RestartRequired = append(diff.RestartRequired, section)
		}
	}
	sort.Strings(diff.RestartRequired)

	return diff
}

// HasChanges returns true if there are any configuration changes.
func (d *ConfigDiff) HasChanges() bool {
	return d.HasHotChanges() || len(d.RestartRequired) > 0
}

// HasHotChanges reports whether any change can be applied without a restart.
func (d *ConfigDiff) HasHotChanges() bool {
	return d.ThresholdsChanged || d.SelectionChanged || d.PassTimeoutChanged || d.LogLevelChanged
}

// selectionsEqual compares category lists as sets of parsed categories so
// that "cleanup" and "DiskCleanup" are the same selection.
func selectionsEqual(a, b []string) bool {
	sa, errA := (&types.RemediationConfig{Categories: a}).Selection()
	sb, errB := (&types.RemediationConfig{Categories: b}).Selection()
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	if len(sa) != len(sb) {
		return false
	}
	for c := range sa {
		if !sb[c] {
			return false
		}
	}
	return true
}
