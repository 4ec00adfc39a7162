// Package metrics exposes daemon and mapping counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "seqmap"

// Metrics holds every collector on a private registry. A nil *Metrics
// ignores all observations.
type Metrics struct {
	Registry *prometheus.Registry

	Reads        *prometheus.CounterVec
	Jobs         *prometheus.CounterVec
	Events       *prometheus.CounterVec
	BatchSeconds prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Queries mapped, by outcome.",
		}, []string{"outcome"}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Dequeued files, by result.",
		}, []string{"result"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Directory events received, by kind.",
		}, []string{"op"}),
		BatchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time spent mapping one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
	m.Registry.MustRegister(
		m.Reads, m.Jobs, m.Events, m.BatchSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveReads adds one batch's outcome counters.
func (m *Metrics) ObserveReads(mapped, unmapped, ambiguous, errs int64) {
	if m == nil {
		return
	}
	m.Reads.WithLabelValues("mapped").Add(float64(mapped))
	m.Reads.WithLabelValues("unmapped").Add(float64(unmapped))
	m.Reads.WithLabelValues("ambiguous").Add(float64(ambiguous))
	m.Reads.WithLabelValues("error").Add(float64(errs))
}

// ObserveBatch records the duration of one batch.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchSeconds.Observe(d.Seconds())
}

// JobFinished counts one dequeued file by result.
func (m *Metrics) JobFinished(result string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(result).Inc()
}

// WatchEvent counts one directory event.
func (m *Metrics) WatchEvent(op string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(op).Inc()
}

// RegisterQueueDepth exposes fn as the pending-job gauge.
func (m *Metrics) RegisterQueueDepth(fn func() float64) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Files waiting for the dispatcher.",
	}, fn))
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info("metrics listening", zap.String("addr", ln.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errc
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
