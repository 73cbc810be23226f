package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/photoloader/pkg/loader"
)

// loaderMetrics is the Prometheus implementation of loader.Metrics.
type loaderMetrics struct {
	batches  *prometheus.CounterVec
	keys     *prometheus.CounterVec
	loaded   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  prometheus.Gauge
}

var (
	loaderOnce sync.Once
	loaderColl *loaderMetrics
)

// NewLoaderMetrics creates a loader.Metrics backed by the registry.
// Returns nil when metrics are disabled.
func NewLoaderMetrics() loader.Metrics {
	if !IsEnabled() {
		return nil
	}
	loaderOnce.Do(func() {
		reg := GetRegistry()
		loaderColl = &loaderMetrics{
			batches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "photoloader_fetch_batches_total",
				Help: "Source fetch batches issued by the worker",
			}, []string{"kind"}), // "load", "preload"
			keys: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "photoloader_fetch_keys_total",
				Help: "Keys requested from the source",
			}, []string{"kind"}),
			loaded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "photoloader_fetch_results_total",
				Help: "Keys resolved by the source",
			}, []string{"kind"}),
			duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
				Name:    "photoloader_fetch_duration_seconds",
				Help:    "Duration of source fetch batches",
				Buckets: prometheus.DefBuckets,
			}, []string{"kind"}),
			pending: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
				Name: "photoloader_pending_requests",
				Help: "Requests waiting in the coalescing table",
			}),
		}
	})
	return loaderColl
}

func (m *loaderMetrics) observe(kind string, requested, loaded int, d time.Duration) {
	m.batches.WithLabelValues(kind).Inc()
	m.keys.WithLabelValues(kind).Add(float64(requested))
	m.loaded.WithLabelValues(kind).Add(float64(loaded))
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *loaderMetrics) ObserveLoadBatch(requested, loaded int, d time.Duration) {
	m.observe("load", requested, loaded, d)
}

func (m *loaderMetrics) ObservePreloadBatch(requested, loaded int, d time.Duration) {
	m.observe("preload", requested, loaded, d)
}

func (m *loaderMetrics) RecordPendingRequests(count int) {
	m.pending.Set(float64(count))
}
