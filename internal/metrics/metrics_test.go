package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveReads(5, 2, 1, 0)
	m.ObserveReads(1, 0, 0, 3)
	require.Equal(t, 6.0, testutil.ToFloat64(m.Reads.WithLabelValues("mapped")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.Reads.WithLabelValues("error")))

	m.JobFinished("done")
	m.JobFinished("done")
	m.JobFinished("skipped")
	require.Equal(t, 2.0, testutil.ToFloat64(m.Jobs.WithLabelValues("done")))

	m.WatchEvent("create")
	require.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("create")))

	m.ObserveBatch(300 * time.Millisecond)
	require.Equal(t, 1, testutil.CollectAndCount(m.BatchSeconds))
}

func TestQueueDepthAndHandler(t *testing.T) {
	m := New()
	depth := 3.0
	m.RegisterQueueDepth(func() float64 { return depth })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "seqmap_queue_depth 3"), body)
}

func TestNilMetricsIgnored(t *testing.T) {
	var m *Metrics
	m.ObserveReads(1, 1, 1, 1)
	m.ObserveBatch(time.Second)
	m.JobFinished("done")
	m.WatchEvent("create")
	m.RegisterQueueDepth(func() float64 { return 0 })
}
