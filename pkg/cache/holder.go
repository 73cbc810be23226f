package cache

import (
	"sync/atomic"

	"github.com/marmos91/photoloader/pkg/photo"
)

// Holder is the state of one cached photo: its raw bytes and a freshness
// flag. Nil bytes record a confirmed "no photo" answer from the source so
// repeat lookups do not turn into fetch storms; such entries cost zero
// against the budget but still occupy a slot.
//
// The freshness flag follows a single-writer-many-readers discipline with
// relaxed ordering. A race between "mark stale" and "refetched fresh" is
// benign either way: the worst case is one extra refetch cycle.
type Holder struct {
	bytes []byte
	fresh atomic.Bool
}

// Bytes returns the raw photo bytes, or nil for a confirmed-absent photo.
func (h *Holder) Bytes() []byte {
	return h.bytes
}

// Fresh reports whether the entry is known current. Stale entries remain
// displayable (stale-while-revalidate) but must be refetched before being
// trusted.
func (h *Holder) Fresh() bool {
	return h.fresh.Load()
}

func (h *Holder) markStale() {
	h.fresh.Store(false)
}

// HolderCache is the first-tier cache: raw photo bytes keyed by photo key,
// bounded by a byte budget with LRU eviction.
type HolderCache struct {
	lru     *LRU[*Holder]
	redZone int64

	// allStale is true when every resident entry is (or may be) stale.
	// It is an optimization gate for MarkAllStale: the conservative
	// direction (true while some entries are fresh) is never allowed, but
	// true-while-empty is fine. Starts true: an empty cache has no fresh
	// entries.
	allStale atomic.Bool

	// Diagnostic overwrite counters. Overwriting a still-fresh entry means
	// a photo was fetched twice for nothing and should never happen.
	staleOverwrites atomic.Int64
	freshOverwrites atomic.Int64

	metrics Metrics
}

// NewHolderCache creates a holder cache with the given byte budget.
// redZoneFraction is the occupancy fraction above which preloading must
// stop. metrics may be nil.
func NewHolderCache(maxSize int64, redZoneFraction float64, metrics Metrics) *HolderCache {
	c := &HolderCache{
		lru:     NewLRU(maxSize, func(h *Holder) int64 { return int64(len(h.bytes)) }, metrics),
		redZone: int64(float64(maxSize) * redZoneFraction),
		metrics: metrics,
	}
	c.allStale.Store(true)
	return c
}

// Get returns the holder for key, bumping its recency.
func (c *HolderCache) Get(key photo.Key) (*Holder, bool) {
	return c.lru.Get(key)
}

// Put stores freshly fetched bytes for key. nil bytes record a confirmed
// "no photo" result. The new entry is always fresh, which clears the
// all-stale gate.
func (c *HolderCache) Put(key photo.Key, bytes []byte) {
	if prev, ok := c.lru.Peek(key); ok && prev.bytes != nil {
		if prev.Fresh() {
			c.freshOverwrites.Add(1)
		} else {
			c.staleOverwrites.Add(1)
		}
		if c.metrics != nil {
			c.metrics.ObserveOverwrite(prev.Fresh())
		}
	}

	holder := &Holder{bytes: bytes}
	holder.fresh.Store(true)
	c.lru.Put(key, holder)
	c.allStale.Store(false)
}

// MarkAllStale flips every resident entry to stale and arms the all-stale
// gate. Entries stay servable until refetched. Returns false if everything
// was already stale and nothing was done.
func (c *HolderCache) MarkAllStale() bool {
	if !c.allStale.CompareAndSwap(false, true) {
		return false
	}
	c.lru.Range(func(_ photo.Key, h *Holder) bool {
		h.markStale()
		return true
	})
	return true
}

// AllStale reports whether every resident entry is known (or assumed) stale.
func (c *HolderCache) AllStale() bool {
	return c.allStale.Load()
}

// EvictAll drops every entry.
func (c *HolderCache) EvictAll() {
	c.lru.EvictAll()
}

// Size returns the resident byte cost.
func (c *HolderCache) Size() int64 {
	return c.lru.Size()
}

// MaxSize returns the byte budget.
func (c *HolderCache) MaxSize() int64 {
	return c.lru.MaxSize()
}

// Len returns the number of resident entries.
func (c *HolderCache) Len() int {
	return c.lru.Len()
}

// RedZone returns the occupancy threshold above which preloading stops,
// leaving headroom for on-demand loads.
func (c *HolderCache) RedZone() int64 {
	return c.redZone
}

// StaleOverwrites returns how many times cached bytes were reloaded over a
// stale entry.
func (c *HolderCache) StaleOverwrites() int64 {
	return c.staleOverwrites.Load()
}

// FreshOverwrites returns how many times cached bytes were reloaded over a
// fresh entry. Nonzero values indicate wasted fetches.
func (c *HolderCache) FreshOverwrites() int64 {
	return c.freshOverwrites.Load()
}
