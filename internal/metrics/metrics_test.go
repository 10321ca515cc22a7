package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveIteration(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveIteration("a", 5*time.Millisecond, true)
	m.ObserveIteration("a", 7*time.Millisecond, true)
	m.ObserveIteration("a", time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.iterations.WithLabelValues("a", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.iterations.WithLabelValues("a", "failure")))
}

func TestMetrics_ActiveSlots(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SlotStarted("a")
	m.SlotStarted("a")
	m.SlotFinished("a")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSlots.WithLabelValues("a")))
}

func TestMetrics_CompletionAndHandlerFailures(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.WorkloadCompleted("bench")
	m.HandlerFailed("a", "completion")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.workloadsDone.WithLabelValues("bench")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerFailures.WithLabelValues("a", "completion")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveIteration("a", time.Millisecond, true)
	m.SlotStarted("a")
	m.SlotFinished("a")
	m.WorkloadCompleted("b")
	m.HandlerFailed("a", "completion")
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveIteration("served", time.Millisecond, true)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `benchlab_iterations_total{outcome="success",workload="served"} 1`))
}
