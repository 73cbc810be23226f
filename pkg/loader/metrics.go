package loader

import "time"

// Metrics provides observability for loader activity. A nil Metrics is
// valid; collection is skipped with zero overhead.
type Metrics interface {
	// ObserveLoadBatch records one on-demand fetch cycle: how many keys
	// were requested, how many came back, and how long the source took.
	ObserveLoadBatch(requested, loaded int, d time.Duration)

	// ObservePreloadBatch records one preload fetch cycle.
	ObservePreloadBatch(requested, loaded int, d time.Duration)

	// RecordPendingRequests records the current pending-request count.
	RecordPendingRequests(count int)
}
