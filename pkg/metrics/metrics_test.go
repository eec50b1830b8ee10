package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

func newRegistered(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	return m, reg
}

func TestRecordStats(t *testing.T) {
	m, _ := newRegistered(t)

	m.RecordStats("Linux", 150, 200)
	m.RecordStats("Linux", 10, 0)
	m.RecordStats("Mac", 0, 600)

	assert.Equal(t, 160.0, testutil.ToFloat64(m.ErrorsDetected.WithLabelValues("Linux")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.WarningsDetected.WithLabelValues("Linux")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ErrorsDetected.WithLabelValues("Mac")))
	assert.Equal(t, 600.0, testutil.ToFloat64(m.WarningsDetected.WithLabelValues("Mac")))
}

func TestRecordStatsIgnoresNegative(t *testing.T) {
	m, _ := newRegistered(t)
	assert.NotPanics(t, func() { m.RecordStats("Linux", -5, -1) })
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ErrorsDetected.WithLabelValues("Linux")))
}

func TestRecordRemediationAndOutcomes(t *testing.T) {
	m, _ := newRegistered(t)

	m.RecordRemediation("Linux")
	m.RecordRemediation("Linux")
	m.RecordActionOutcome("Linux", types.StatusSucceeded)
	m.RecordActionOutcome("Linux", types.StatusFailed)
	m.RecordActionOutcome("Linux", types.StatusFailed)
	m.RecordSkipped("Broken")
	m.ObservePassDuration(1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RemedialActionsTriggered.WithLabelValues("Linux")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionOutcomes.WithLabelValues("Linux", "Succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActionOutcomes.WithLabelValues("Linux", "Failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SystemsSkipped.WithLabelValues("Broken")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PassDuration))
}

func TestRegisterTwiceFails(t *testing.T) {
	m, reg := newRegistered(t)
	assert.Error(t, m.Register(reg))
}

func TestConcurrentIncrements(t *testing.T) {
	m, _ := newRegistered(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordStats("Linux", 1, 2)
			m.RecordRemediation("Linux")
		}()
	}
	wg.Wait()

	assert.Equal(t, 100.0, testutil.ToFloat64(m.ErrorsDetected.WithLabelValues("Linux")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.WarningsDetected.WithLabelValues("Linux")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.RemedialActionsTriggered.WithLabelValues("Linux")))
}

func TestExpositionFormat(t *testing.T) {
	m, reg := newRegistered(t)
	m.RecordStats("Linux", 150, 200)
	m.RecordRemediation("Linux")

	expected := `
# HELP errors_detected Number of errors detected
# TYPE errors_detected counter
errors_detected{system="Linux"} 150
# HELP remedial_actions_triggered Number of remedial actions triggered
# TYPE remedial_actions_triggered counter
remedial_actions_triggered{system="Linux"} 1
# HELP warnings_detected Number of warnings detected
# TYPE warnings_detected counter
warnings_detected{system="Linux"} 200
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		ErrorsDetectedName, WarningsDetectedName, RemedialActionsTriggeredName)
	assert.NoError(t, err)
}

func TestHandlerServesPlainNames(t *testing.T) {
	m, reg := newRegistered(t)
	m.RecordStats("Android", 7, 3)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/openmetrics-text; version=1.0.0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `errors_detected{system="Android"} 7`)
	assert.Contains(t, string(body), `warnings_detected{system="Android"} 3`)
	assert.NotContains(t, string(body), "errors_detected_total")
}

func TestNewRegistryIncludesRuntimeCollectors(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}

func TestServerLifecycle(t *testing.T) {
	m, reg := newRegistered(t)
	m.RecordRemediation("Mac")

	_, err := NewServer("127.0.0.1:0", "/metrics", nil)
	assert.Error(t, err)

	s, err := NewServer("127.0.0.1:0", "", reg)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	base := fmt.Sprintf("http://%s", s.Addr())

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `remedial_actions_triggered{system="Mac"} 1`)

	resp, err = http.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestShutdownBeforeStart(t *testing.T) {
	s, err := NewServer("127.0.0.1:0", "/metrics", prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NoError(t, s.Shutdown(context.Background()))
}
