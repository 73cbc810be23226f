package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/photoloader/pkg/cache"
)

// cacheCollectors holds the label-parameterized collectors shared by all
// cache instances; individual caches get curried views keyed by the cache
// label ("holder", "decoded").
type cacheCollectors struct {
	hits         *prometheus.CounterVec
	misses       *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	evictedBytes *prometheus.CounterVec
	overwrites   *prometheus.CounterVec
	size         *prometheus.GaugeVec
	entries      *prometheus.GaugeVec
}

var (
	cacheOnce sync.Once
	cacheColl *cacheCollectors
)

func getCacheCollectors() *cacheCollectors {
	cacheOnce.Do(func() {
		reg := GetRegistry()
		cacheColl = &cacheCollectors{
			hits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "photoloader_cache_hits_total",
				Help: "Cache lookups that found an entry",
			}, []string{"cache"}),
			misses: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "photoloader_cache_misses_total",
				Help: "Cache lookups that found nothing",
			}, []string{"cache"}),
			evictions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "photoloader_cache_evictions_total",
				Help: "Entries evicted to fit the byte budget",
			}, []string{"cache"}),
			evictedBytes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "photoloader_cache_evicted_bytes_total",
				Help: "Bytes reclaimed by eviction",
			}, []string{"cache"}),
			overwrites: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "photoloader_cache_overwrites_total",
				Help: "Puts that replaced an existing entry, by prior freshness",
			}, []string{"cache", "prior"}),
			size: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
				Name: "photoloader_cache_size_bytes",
				Help: "Current resident cost of the cache",
			}, []string{"cache"}),
			entries: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
				Name: "photoloader_cache_entries",
				Help: "Current number of resident entries",
			}, []string{"cache"}),
		}
	})
	return cacheColl
}

// cacheMetrics is the Prometheus implementation of cache.Metrics for one
// named cache.
type cacheMetrics struct {
	hits         prometheus.Counter
	misses       prometheus.Counter
	evictions    prometheus.Counter
	evictedBytes prometheus.Counter
	freshOver    prometheus.Counter
	staleOver    prometheus.Counter
	size         prometheus.Gauge
	entries      prometheus.Gauge
}

// NewCacheMetrics creates a cache.Metrics labelled with the given cache
// name. Returns nil when metrics are disabled, which instrumented caches
// treat as "collect nothing".
func NewCacheMetrics(name string) cache.Metrics {
	if !IsEnabled() {
		return nil
	}
	c := getCacheCollectors()
	return &cacheMetrics{
		hits:         c.hits.WithLabelValues(name),
		misses:       c.misses.WithLabelValues(name),
		evictions:    c.evictions.WithLabelValues(name),
		evictedBytes: c.evictedBytes.WithLabelValues(name),
		freshOver:    c.overwrites.WithLabelValues(name, "fresh"),
		staleOver:    c.overwrites.WithLabelValues(name, "stale"),
		size:         c.size.WithLabelValues(name),
		entries:      c.entries.WithLabelValues(name),
	}
}

func (m *cacheMetrics) ObserveHit()  { m.hits.Inc() }
func (m *cacheMetrics) ObserveMiss() { m.misses.Inc() }

func (m *cacheMetrics) ObserveEviction(bytes int64) {
	m.evictions.Inc()
	m.evictedBytes.Add(float64(bytes))
}

func (m *cacheMetrics) ObserveOverwrite(fresh bool) {
	if fresh {
		m.freshOver.Inc()
	} else {
		m.staleOver.Inc()
	}
}

func (m *cacheMetrics) RecordSize(bytes int64) { m.size.Set(float64(bytes)) }

func (m *cacheMetrics) RecordEntryCount(count int) { m.entries.Set(float64(count)) }
