package test

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// Common test fixtures for system stats, remedial actions and datasets.

// StatsFixture provides a fluent builder for creating test SystemStats instances.
type StatsFixture struct {
	stats types.SystemStats
}

// NewStatsFixture creates a new SystemStats fixture with quiet counts.
func NewStatsFixture(systemID string) *StatsFixture {
	return &StatsFixture{
		stats: types.SystemStats{SystemID: systemID},
	}
}

// WithPlatform sets the platform identifier.
func (f *StatsFixture) WithPlatform(platform string) *StatsFixture {
	f.stats.Platform = platform
	return f
}

// WithErrors sets the error count.
func (f *StatsFixture) WithErrors(n int64) *StatsFixture {
	f.stats.ErrorCount = n
	return f
}

// WithWarnings sets the warning count.
func (f *StatsFixture) WithWarnings(n int64) *StatsFixture {
	f.stats.WarningCount = n
	return f
}

// Build returns the constructed SystemStats.
func (f *StatsFixture) Build() types.SystemStats {
	return f.stats
}

// ActionFixture provides a fluent builder for creating test RemedialAction instances.
type ActionFixture struct {
	action types.RemedialAction
}

// NewActionFixture creates an action in the given category running command.
func NewActionFixture(label string, category types.ActionCategory, command ...string) *ActionFixture {
	return &ActionFixture{
		action: types.RemedialAction{
			Label:    label,
			Category: category,
			Command:  command,
		},
	}
}

// WithRequiredTool sets the tool that must be installed.
func (f *ActionFixture) WithRequiredTool(tool string) *ActionFixture {
	f.action.RequiredTool = tool
	return f
}

// WithOutputCheck downgrades the outcome to status when output contains match.
func (f *ActionFixture) WithOutputCheck(match string, status types.ActionStatus) *ActionFixture {
	f.action.OutputChecks = append(f.action.OutputChecks, types.OutputCheck{
		Contains: match,
		Status:   status,
	})
	return f
}

// Build returns the constructed RemedialAction.
func (f *ActionFixture) Build() types.RemedialAction {
	return f.action
}

// Thresholds used by the scenario below.
const (
	ScenarioErrorThreshold   = 100
	ScenarioWarningThreshold = 500
)

// ScenarioStats returns four systems against the default thresholds: Linux
// trips the error threshold, Mac the warning threshold, BSD has no built-in
// handler and Windows stays quiet.
func ScenarioStats() []types.SystemStats {
	return []types.SystemStats{
		NewStatsFixture("Linux").WithErrors(150).WithWarnings(200).Build(),
		NewStatsFixture("Mac").WithErrors(50).WithWarnings(600).Build(),
		NewStatsFixture("BSD").WithErrors(120).WithWarnings(700).Build(),
		NewStatsFixture("Windows").WithErrors(10).WithWarnings(20).Build(),
	}
}

// WriteCSVDataset writes one "<System>_preprocessed.csv" file per entry into
// dir. Each file has rows error/warning rows summing to the entry's counts.
func WriteCSVDataset(t *testing.T, dir string, stats []types.SystemStats, rows int) {
	t.Helper()
	if rows < 1 {
		rows = 1
	}
	for _, s := range stats {
		WriteCSVFile(t, filepath.Join(dir, s.SystemID+types.DefaultFileSuffix+".csv"), s.ErrorCount, s.WarningCount, rows)
	}
}

// WriteCSVFile writes a preprocessed log file with the given totals spread
// over rows lines. Extra columns mimic the real dataset layout.
func WriteCSVFile(t *testing.T, path string, errors, warnings int64, rows int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "message", "error", "warning"}); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for i := 0; i < rows; i++ {
		e, wn := errors/int64(rows), warnings/int64(rows)
		if i == 0 {
			e += errors % int64(rows)
			wn += warnings % int64(rows)
		}
		record := []string{
			fmt.Sprintf("2024-01-01T00:%02d:00Z", i%60),
			fmt.Sprintf("log line %d", i),
			strconv.FormatInt(e, 10),
			strconv.FormatInt(wn, 10),
		}
		if err := w.Write(record); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("failed to flush %s: %v", path, err)
	}
}

// WriteStatsFile writes a stats document readable by the file source and
// returns its path.
func WriteStatsFile(t *testing.T, dir string, stats []types.SystemStats) string {
	t.Helper()
	doc := struct {
		Systems []types.SystemStats `yaml:"systems"`
	}{Systems: stats}

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}
	path := filepath.Join(dir, "stats.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write stats file: %v", err)
	}
	return path
}
