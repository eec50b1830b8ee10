package reload

import (
	"reflect"
	"testing"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

func defaultedConfig(t *testing.T, mutate func(c *types.SelfHealConfig)) *types.SelfHealConfig {
	t.Helper()
	c := &types.SelfHealConfig{
		Thresholds: types.Thresholds{ErrorThreshold: 100, WarningThreshold: 500},
	}
	if mutate != nil {
		mutate(c)
	}
	if err := c.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	return c
}

func TestComputeConfigDiff(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *types.SelfHealConfig)
		wantHot     bool
		wantRestart []string
		check       func(t *testing.T, d *ConfigDiff)
	}{
		{
			name:        "identical",
			mutate:      nil,
			wantRestart: []string{},
		},
		{
			name:        "thresholds",
			mutate:      func(c *types.SelfHealConfig) { c.Thresholds.WarningThreshold = 10 },
			wantHot:     true,
			wantRestart: []string{},
			check: func(t *testing.T, d *ConfigDiff) {
				if !d.ThresholdsChanged {
					t.Error("ThresholdsChanged should be true")
				}
			},
		},
		{
			name:        "selection",
			mutate:      func(c *types.SelfHealConfig) { c.Remediation.Categories = []string{"reboot"} },
			wantHot:     true,
			wantRestart: []string{},
		},
		{
			name:        "pass timeout",
			mutate:      func(c *types.SelfHealConfig) { c.Remediation.PassTimeoutString = "1m" },
			wantHot:     true,
			wantRestart: []string{},
		},
		{
			name:        "log level",
			mutate:      func(c *types.SelfHealConfig) { c.Settings.LogLevel = "warn" },
			wantHot:     true,
			wantRestart: []string{},
		},
		{
			name: "restart only",
			mutate: func(c *types.SelfHealConfig) {
				c.Source.Path = "/elsewhere"
				c.Remediation.Workers = 9
				c.Metrics.Port = 9999
			},
			wantRestart: []string{"metrics", "remediation.workers", "source"},
		},
		{
			name: "dry run toggled through enabled",
			mutate: func(c *types.SelfHealConfig) {
				disabled := false
				c.Remediation.Enabled = &disabled
			},
			wantRestart: []string{"remediation.dryRun"},
		},
		{
			name: "platforms",
			mutate: func(c *types.SelfHealConfig) {
				c.Remediation.Platforms = []types.PlatformConfig{{Name: "Solaris"}}
			},
			wantRestart: []string{"remediation.platforms"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldConfig := defaultedConfig(t, nil)
			newConfig := defaultedConfig(t, tt.mutate)

			diff := ComputeConfigDiff(oldConfig, newConfig)
			if diff.HasHotChanges() != tt.wantHot {
				t.Errorf("HasHotChanges() = %v, want %v", diff.HasHotChanges(), tt.wantHot)
			}
			if !reflect.DeepEqual(diff.RestartRequired, tt.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", diff.RestartRequired, tt.wantRestart)
			}
			wantChanges := tt.wantHot || len(tt.wantRestart) > 0
			if diff.HasChanges() != wantChanges {
				t.Errorf("HasChanges() = %v, want %v", diff.HasChanges(), wantChanges)
			}
			if tt.check != nil {
				tt.check(t, diff)
			}
		})
	}
}

func TestSelectionsEqual(t *testing.T) {
	tests := []struct {
		a, b []string
		want bool
	}{
		{nil, nil, true},
		{nil, []string{}, true},
		{[]string{"cleanup"}, []string{"DiskCleanup"}, true},
		{[]string{"cleanup", "reboot"}, []string{"reboot", "cleanup"}, true},
		{[]string{"cleanup"}, []string{"reboot"}, false},
		{[]string{"cleanup"}, nil, false},
		{[]string{"bogus"}, []string{"bogus"}, true},
	}
	for _, tt := range tests {
		if got := selectionsEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("selectionsEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPassTimeoutDiffUsesParsedDuration(t *testing.T) {
	oldConfig := defaultedConfig(t, func(c *types.SelfHealConfig) { c.Remediation.PassTimeoutString = "60s" })
	newConfig := defaultedConfig(t, func(c *types.SelfHealConfig) { c.Remediation.PassTimeoutString = "1m" })

	if newConfig.Remediation.PassTimeout != time.Minute {
		t.Fatalf("PassTimeout = %v", newConfig.Remediation.PassTimeout)
	}
	if ComputeConfigDiff(oldConfig, newConfig).PassTimeoutChanged {
		t.Error("60s and 1m are the same timeout")
	}
}
