package cache

// Metrics provides observability for cache operations.
//
// Implementations collect hit rates, sizes and eviction counts. This is
// optional: a nil Metrics is valid and all collection is skipped, so
// disabling metrics has zero overhead.
//
// Example implementations:
//   - Prometheus metrics (pkg/metrics)
//   - In-memory counters for testing
type Metrics interface {
	// ObserveHit records a cache lookup that found an entry.
	ObserveHit()

	// ObserveMiss records a cache lookup that found nothing.
	ObserveMiss()

	// ObserveEviction records an entry evicted to make room, with its cost.
	ObserveEviction(bytes int64)

	// ObserveOverwrite records a put that replaced an existing entry.
	// fresh reports whether the replaced entry was still fresh; fresh
	// overwrites indicate wasted work and should stay at zero.
	ObserveOverwrite(fresh bool)

	// RecordSize records the current total cost of resident entries.
	RecordSize(bytes int64)

	// RecordEntryCount records the current number of resident entries.
	RecordEntryCount(count int)
}
