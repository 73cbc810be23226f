package loader

import "time"

// Cache and preload tunables. The defaults mirror the sizes the subsystem
// has shipped with for years: a 2MB raw-bytes budget, a ~1.7MB decoded
// budget, and preloading that stops once the holder cache is 75% full.
const (
	// DefaultHolderCacheBytes is the holder cache byte budget on
	// high-memory hosts.
	DefaultHolderCacheBytes = 2_000_000

	// DefaultDecodedCacheBytes is the decoded cache byte budget on
	// high-memory hosts.
	DefaultDecodedCacheBytes = 36864 * 48

	// DefaultCapacityDivisor bounds how large a single decoded image may
	// be relative to the decoded budget: images above
	// maxSize/divisor are not admitted.
	DefaultCapacityDivisor = 6

	// DefaultPreloadBatchSize is how many photos each preload cycle
	// fetches.
	DefaultPreloadBatchSize = 25

	// DefaultPreloadDelay is the pause between preload cycles, yielding
	// the worker to on-demand loads.
	DefaultPreloadDelay = 1 * time.Second

	// DefaultRedZoneFraction is the holder-cache occupancy fraction above
	// which preloading halts.
	DefaultRedZoneFraction = 0.75
)

// Config holds the loader tunables. Zero values are replaced with the
// defaults above; budgets are then scaled by the detected memory tier.
type Config struct {
	// HolderCacheBytes is the raw-bytes cache budget.
	HolderCacheBytes int64

	// DecodedCacheBytes is the decoded-image cache budget.
	DecodedCacheBytes int64

	// CapacityDivisor is the decoded-cache admission divisor.
	CapacityDivisor int

	// PreloadBatchSize is the number of keys fetched per preload cycle.
	PreloadBatchSize int

	// PreloadDelay is the throttle between preload cycles.
	PreloadDelay time.Duration

	// RedZoneFraction is the preload-stop occupancy fraction (0, 1].
	RedZoneFraction float64
}

func (c *Config) applyDefaults() {
	if c.HolderCacheBytes == 0 {
		c.HolderCacheBytes = DefaultHolderCacheBytes
	}
	if c.DecodedCacheBytes == 0 {
		c.DecodedCacheBytes = DefaultDecodedCacheBytes
	}
	if c.CapacityDivisor == 0 {
		c.CapacityDivisor = DefaultCapacityDivisor
	}
	if c.PreloadBatchSize == 0 {
		c.PreloadBatchSize = DefaultPreloadBatchSize
	}
	if c.PreloadDelay == 0 {
		c.PreloadDelay = DefaultPreloadDelay
	}
	if c.RedZoneFraction == 0 {
		c.RedZoneFraction = DefaultRedZoneFraction
	}
}
