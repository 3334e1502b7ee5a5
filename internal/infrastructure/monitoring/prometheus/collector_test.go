package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	Handler(c).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_ProcessMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableProcessMetrics: true, EnableGoMetrics: true}, nil)
	require.NoError(t, err)
	out := scrape(t, c)
	assert.Contains(t, out, "go_goroutines")
}

func TestRegisterCounter_DuplicateSharesVector(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "help", "k").WithLabelValues("a").Inc()
	c.RegisterCounter("dup_total", "help", "k").WithLabelValues("a").Inc()

	n, err := testutil.GatherAndCount(c.Registry(), "test_unit_dup_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, scrape(t, c), `test_unit_dup_total{k="a"} 2`)
}

func TestRegister_TypeMismatchIsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("x", "help")
	g := c.RegisterGauge("x", "help")
	assert.NotPanics(t, func() { g.WithLabelValues().Set(1) })
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency_seconds", "latency", nil).WithLabelValues().Observe(0.1)
	assert.Contains(t, scrape(t, c), "test_unit_latency_seconds_bucket")
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("op_seconds", "op", nil)
	d := NewTimer(h.WithLabelValues()).ObserveDuration()
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Contains(t, scrape(t, c), "test_unit_op_seconds_count 1")

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}

func TestTrainingMetrics(t *testing.T) {
	c := newTestCollector(t)
	m := NewTrainingMetrics(c)
	m.EpochLoss.WithLabelValues("hiv", "train").Set(0.42)
	m.BatchesTotal.WithLabelValues("hiv", "train").Add(3)
	m.CheckpointsTotal.WithLabelValues("hiv", "file").Inc()

	out := scrape(t, c)
	assert.Contains(t, out, `test_unit_epoch_loss{dataset="hiv",phase="train"} 0.42`)
	assert.Contains(t, out, `test_unit_batches_total{dataset="hiv",phase="train"} 3`)
	assert.Contains(t, out, `test_unit_checkpoints_total{dataset="hiv",store="file"} 1`)
}

func TestNopTrainingMetrics(t *testing.T) {
	m := OrNop(nil)
	assert.NotPanics(t, func() {
		m.EpochLoss.WithLabelValues("a", "b").Set(1)
		m.EventsPublished.WithLabelValues("e", "ok").Inc()
		m.DatasetLoad.WithLabelValues("a", "s3").Observe(1)
	})
}

func TestServer_ListenAndShutdown(t *testing.T) {
	c := newTestCollector(t)
	NewTrainingMetrics(c).CurrentEpoch.WithLabelValues("hiv").Set(2)

	s, err := Listen("127.0.0.1:0", "/metrics", c, nil)
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `test_unit_current_epoch{dataset="hiv"} 2`)
}
