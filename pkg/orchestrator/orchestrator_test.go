package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/self-healing-trigger/pkg/metrics"
	"github.com/supporttools/self-healing-trigger/pkg/remediators"
	"github.com/supporttools/self-healing-trigger/pkg/types"
)

var defaultThresholds = types.Thresholds{ErrorThreshold: 100, WarningThreshold: 500}

// fakeSource serves canned stats.
type fakeSource struct {
	systems []string
	stats   map[string]types.SystemStats
	errs    map[string]error
	listErr error
	delay   map[string]time.Duration
	block   map[string]bool
}

func (f *fakeSource) Systems(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.systems, nil
}

func (f *fakeSource) Stats(ctx context.Context, id string) (types.SystemStats, error) {
	if f.block[id] {
		<-ctx.Done()
		return types.SystemStats{}, ctx.Err()
	}
	if d := f.delay[id]; d > 0 {
		time.Sleep(d)
	}
	if err := f.errs[id]; err != nil {
		return types.SystemStats{}, err
	}
	st, ok := f.stats[id]
	if !ok {
		return types.SystemStats{}, fmt.Errorf("%w: %s unknown", types.ErrStatSource, id)
	}
	return st, nil
}

// countingRunner succeeds for every command and counts invocations.
type countingRunner struct {
	calls atomic.Int32
}

func (c *countingRunner) Run(ctx context.Context, name string, args ...string) (remediators.CommandResult, error) {
	c.calls.Add(1)
	return remediators.CommandResult{Output: "ok"}, nil
}

// memoryHistory records saved reports.
type memoryHistory struct {
	mu      sync.Mutex
	saved   []string
	failing bool
}

func (m *memoryHistory) Save(ctx context.Context, passID string, report *types.RemediationReport) error {
	if m.failing {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, passID+"/"+report.SystemID)
	return nil
}

type harness struct {
	orch    *Orchestrator
	metrics *metrics.Metrics
	runner  *countingRunner
}

func newHarness(t *testing.T, src types.StatSource, probe types.ToolProbe, mutate func(c *Config)) *harness {
	t.Helper()

	registry := remediators.NewRegistry()
	require.NoError(t, remediators.RegisterBuiltins(registry))
	registry.Seal()

	runner := &countingRunner{}
	executor, err := remediators.NewExecutor(remediators.ExecutorConfig{
		Runner:         runner,
		Probe:          probe,
		CommandTimeout: time.Second,
	})
	require.NoError(t, err)

	m := metrics.NewMetrics()
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	cfg := Config{
		Source:     src,
		Registry:   registry,
		Executor:   executor,
		Metrics:    m,
		Thresholds: defaultThresholds,
		Workers:    4,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	o, err := New(cfg)
	require.NoError(t, err)
	return &harness{orch: o, metrics: m, runner: runner}
}

func stats(id string, errs, warns int64) types.SystemStats {
	return types.SystemStats{SystemID: id, ErrorCount: errs, WarningCount: warns}
}

func TestRunPassScenarios(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Linux", "Mac", "BSD", "Windows"},
		stats: map[string]types.SystemStats{
			"Linux":   stats("Linux", 150, 200),
			"Mac":     stats("Mac", 50, 600),
			"BSD":     stats("BSD", 120, 0),
			"Windows": stats("Windows", 100, 500),
		},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 4)
	assert.NotEmpty(t, summary.PassID)
	assert.Equal(t, defaultThresholds, summary.Thresholds)

	linux := summary.Results[0]
	assert.Equal(t, "Linux", linux.SystemID)
	assert.True(t, linux.Triggered)
	assert.Equal(t, types.ReasonErrorThresholdExceeded, linux.Reason)
	assert.Equal(t, types.StateCompleted, linux.State)
	require.NotNil(t, linux.Report)
	require.Len(t, linux.Report.Outcomes, 3)
	for _, o := range linux.Report.Outcomes {
		assert.Equal(t, types.StatusSimulated, o.Status)
	}

	mac := summary.Results[1]
	assert.True(t, mac.Triggered)
	assert.Equal(t, types.ReasonWarningThresholdExceeded, mac.Reason)
	require.NotNil(t, mac.Report)
	assert.Len(t, mac.Report.Outcomes, 3)

	bsd := summary.Results[2]
	assert.True(t, bsd.Triggered)
	require.NotNil(t, bsd.Report)
	assert.True(t, bsd.Report.Fallback)
	assert.Empty(t, bsd.Report.Outcomes)
	assert.Equal(t, types.StateCompleted, bsd.State)

	windows := summary.Results[3]
	assert.False(t, windows.Triggered)
	assert.Nil(t, windows.Report)
	assert.Equal(t, types.ReasonNone, windows.Reason)
	assert.Equal(t, types.StateNotTriggered, windows.State)

	assert.Equal(t, int32(0), h.runner.calls.Load(), "absent tools must not be invoked")

	assert.Equal(t, types.PassCounts{Systems: 4, Triggered: 3, NotTriggered: 1, Simulated: 6}, summary.Counts)

	assert.Equal(t, 150.0, testutil.ToFloat64(h.metrics.ErrorsDetected.WithLabelValues("Linux")))
	assert.Equal(t, 600.0, testutil.ToFloat64(h.metrics.WarningsDetected.WithLabelValues("Mac")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RemedialActionsTriggered.WithLabelValues("BSD")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.RemedialActionsTriggered.WithLabelValues("Windows")))
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.ActionOutcomes.WithLabelValues("Linux", "Simulated")))
}

func TestRunPassReportIffTriggered(t *testing.T) {
	src := &fakeSource{stats: map[string]types.SystemStats{}}
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("sys-%02d", i)
		src.systems = append(src.systems, id)
		src.stats[id] = stats(id, int64(i*7), int64(i*31))
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	for _, r := range summary.Results {
		assert.Equal(t, r.Triggered, r.Report != nil, r.SystemID)
	}
}

func TestRunPassRealCommandsWhenToolsPresent(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Android"},
		stats:   map[string]types.SystemStats{"Android": stats("Android", 101, 0)},
	}
	h := newHarness(t, src, remediators.StaticProbe{"adb": true}, nil)

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts.Succeeded)
	assert.Equal(t, int32(2), h.runner.calls.Load())
}

func TestRunPassPlatformOverride(t *testing.T) {
	src := &fakeSource{
		systems: []string{"web-01"},
		stats: map[string]types.SystemStats{
			"web-01": {SystemID: "web-01", Platform: "Linux", ErrorCount: 500},
		},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	report := summary.Results[0].Report
	require.NotNil(t, report)
	assert.Equal(t, "web-01", report.SystemID)
	assert.Equal(t, "Linux", report.Platform)
	assert.False(t, report.Fallback)
}

func TestRunPassSkipsFailedSystems(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Broken", "Negative", "Linux", "Mismatch"},
		stats: map[string]types.SystemStats{
			"Negative": stats("Negative", -1, 0),
			"Linux":    stats("Linux", 150, 0),
			"Mismatch": {ErrorCount: 1},
		},
		errs: map[string]error{"Broken": errors.New("connection reset")},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)

	broken := summary.Results[0]
	assert.True(t, broken.Skipped)
	assert.Equal(t, types.StateSkipped, broken.State)
	assert.Contains(t, broken.SkipReason, "connection reset")
	assert.Nil(t, broken.Report)

	negative := summary.Results[1]
	assert.True(t, negative.Skipped)
	assert.Contains(t, negative.SkipReason, "invalid stats")

	assert.True(t, summary.Results[2].Triggered)

	mismatch := summary.Results[3]
	assert.False(t, mismatch.Skipped)
	require.NotNil(t, mismatch.Stats)
	assert.Equal(t, "Mismatch", mismatch.Stats.SystemID)

	assert.Equal(t, 2, summary.Counts.Skipped)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SystemsSkipped.WithLabelValues("Broken")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.ErrorsDetected.WithLabelValues("Negative")))
}

func TestRunPassSourceUnavailable(t *testing.T) {
	src := &fakeSource{listErr: errors.New("directory missing")}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	summary, err := h.orch.RunPass(context.Background())
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, types.ErrSourceUnavailable)
	assert.Equal(t, int64(0), h.orch.Statistics().PassesCompleted())
}

func TestRunPassPreservesSourceOrder(t *testing.T) {
	src := &fakeSource{
		systems: []string{"slow", "fast", "medium", "instant"},
		stats: map[string]types.SystemStats{
			"slow":    stats("slow", 1, 1),
			"fast":    stats("fast", 1, 1),
			"medium":  stats("medium", 1, 1),
			"instant": stats("instant", 1, 1),
		},
		delay: map[string]time.Duration{
			"slow":   60 * time.Millisecond,
			"medium": 30 * time.Millisecond,
			"fast":   10 * time.Millisecond,
		},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	order := make([]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		order = append(order, r.SystemID)
	}
	assert.Equal(t, src.systems, order)
}

func TestRunPassDeadlineSkipsUnstarted(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Stuck", "Later"},
		stats:   map[string]types.SystemStats{"Later": stats("Later", 500, 0)},
		block:   map[string]bool{"Stuck": true},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, func(c *Config) {
		c.Workers = 1
		c.PassTimeout = 50 * time.Millisecond
	})

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	for _, r := range summary.Results {
		assert.True(t, r.Skipped, r.SystemID)
		assert.Nil(t, r.Report)
	}
	assert.Contains(t, summary.Results[1].SkipReason, "deadline")
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.RemedialActionsTriggered.WithLabelValues("Later")))
}

func TestMetricsMonotonicAcrossPasses(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Linux"},
		stats:   map[string]types.SystemStats{"Linux": stats("Linux", 150, 200)},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	prev := 0.0
	for i := 1; i <= 3; i++ {
		_, err := h.orch.RunPass(context.Background())
		require.NoError(t, err)

		cur := testutil.ToFloat64(h.metrics.ErrorsDetected.WithLabelValues("Linux"))
		assert.Greater(t, cur, prev)
		prev = cur
		assert.Equal(t, float64(i), testutil.ToFloat64(h.metrics.RemedialActionsTriggered.WithLabelValues("Linux")))
	}
	assert.Equal(t, 450.0, prev)
	assert.Equal(t, int64(3), h.orch.Statistics().PassesCompleted())
}

func TestSetThresholdsAppliesToNextPass(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Linux"},
		stats:   map[string]types.SystemStats{"Linux": stats("Linux", 150, 0)},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Results[0].Triggered)

	require.NoError(t, h.orch.SetThresholds(types.Thresholds{ErrorThreshold: 1000, WarningThreshold: 1000}))
	assert.ErrorIs(t, h.orch.SetThresholds(types.Thresholds{ErrorThreshold: -1}), types.ErrConfiguration)
	assert.Equal(t, int64(1000), h.orch.Thresholds().ErrorThreshold)

	summary, err = h.orch.RunPass(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Results[0].Triggered)
}

func TestSetSelection(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Linux"},
		stats:   map[string]types.SystemStats{"Linux": stats("Linux", 150, 0)},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)
	h.orch.SetSelection(types.NewActionSelection(types.CategoryDiskCleanup))

	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results[0].Report.Outcomes, 1)
	assert.Equal(t, types.CategoryDiskCleanup, summary.Results[0].Report.Outcomes[0].Category)
}

func TestHistoryRecorder(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Linux", "Mac"},
		stats: map[string]types.SystemStats{
			"Linux": stats("Linux", 150, 0),
			"Mac":   stats("Mac", 0, 0),
		},
	}
	hist := &memoryHistory{}
	h := newHarness(t, src, remediators.StaticProbe{}, func(c *Config) { c.History = hist })
	h.orch.newID = func() string { return "pass-1" }

	_, err := h.orch.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pass-1/Linux"}, hist.saved)

	hist.failing = true
	summary, err := h.orch.RunPass(context.Background())
	require.NoError(t, err, "history failures must not fail the pass")
	assert.True(t, summary.Results[0].Triggered)
}

func TestNewValidation(t *testing.T) {
	registry := remediators.NewRegistry()
	executor, err := remediators.NewExecutor(remediators.ExecutorConfig{Runner: &countingRunner{}, Probe: remediators.StaticProbe{}})
	require.NoError(t, err)
	m := metrics.NewMetrics()
	src := &fakeSource{}

	_, err = New(Config{Source: src, Registry: registry, Executor: executor, Metrics: m})
	assert.Error(t, err, "unsealed registry")

	registry.Seal()
	_, err = New(Config{Registry: registry, Executor: executor, Metrics: m})
	assert.Error(t, err)
	_, err = New(Config{Source: src, Registry: registry, Metrics: m})
	assert.Error(t, err)
	_, err = New(Config{Source: src, Registry: registry, Executor: executor})
	assert.Error(t, err)
	_, err = New(Config{Source: src, Registry: registry, Executor: executor, Metrics: m, Thresholds: types.Thresholds{ErrorThreshold: -1}})
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = New(Config{Source: src, Registry: registry, Executor: executor, Metrics: m, Workers: -1})
	assert.ErrorIs(t, err, types.ErrConfiguration)

	o, err := New(Config{Source: src, Registry: registry, Executor: executor, Metrics: m})
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, o.workers)
}

func TestRunLoop(t *testing.T) {
	src := &fakeSource{
		systems: []string{"Linux"},
		stats:   map[string]types.SystemStats{"Linux": stats("Linux", 1, 1)},
	}
	h := newHarness(t, src, remediators.StaticProbe{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var passes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- h.orch.Run(ctx, 10*time.Millisecond, func(s *types.PassSummary, err error) {
			if err == nil && passes.Add(1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.GreaterOrEqual(t, passes.Load(), int32(3))

	assert.ErrorIs(t, h.orch.Run(context.Background(), 0, nil), types.ErrConfiguration)
}

func TestStatisticsSummary(t *testing.T) {
	s := NewStatistics()
	s.RecordFailedPass()
	s.RecordPass(&types.PassSummary{
		PassID:     "p1",
		FinishedAt: time.Now(),
		Counts:     types.PassCounts{Systems: 3, Triggered: 1, NotTriggered: 1, Skipped: 1, Failed: 2},
	})

	sum := s.Summary()
	assert.Equal(t, int64(1), sum["passes_completed"])
	assert.Equal(t, int64(1), sum["passes_failed"])
	assert.Equal(t, int64(2), sum["systems_evaluated"])
	assert.Equal(t, int64(2), sum["actions_failed"])
	assert.Equal(t, "p1", sum["last_pass_id"])
}
