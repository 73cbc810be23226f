// Package cache implements the two in-memory caches behind the photo
// loader: a byte-budget LRU of raw photo bytes with per-entry freshness
// (HolderCache) and a smaller byte-budget LRU of decoded images
// (DecodedCache).
//
// Both caches account capacity in bytes through a cost function, not in
// entry counts. Insertion past the budget evicts least-recently-used entries
// until the newcomer fits; a single entry larger than the whole budget is
// still admitted, so the bound holds "on average" rather than as a hard
// ceiling. Both Get and Put count as use.
//
// All operations are internally synchronized. Callers never hold a cache
// lock across other blocking calls.
package cache

import (
	"container/list"
	"sync"

	"github.com/marmos91/photoloader/pkg/photo"
)

// lruEntry is the list element payload: key, value and the cost charged
// against the budget when the value was inserted.
type lruEntry[V any] struct {
	key   photo.Key
	value V
	cost  int64
}

// LRU is a byte-budget least-recently-used cache from photo keys to values
// of type V. The zero value is not usable; use NewLRU.
type LRU[V any] struct {
	mu      sync.Mutex
	maxSize int64
	size    int64
	cost    func(V) int64
	order   *list.List // front = most recently used
	items   map[photo.Key]*list.Element
	metrics Metrics
}

// NewLRU creates an LRU with the given byte budget and cost function.
// metrics may be nil.
func NewLRU[V any](maxSize int64, cost func(V) int64, metrics Metrics) *LRU[V] {
	return &LRU[V]{
		maxSize: maxSize,
		cost:    cost,
		order:   list.New(),
		items:   make(map[photo.Key]*list.Element),
		metrics: metrics,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key photo.Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		if c.metrics != nil {
			c.metrics.ObserveMiss()
		}
		var zero V
		return zero, false
	}

	c.order.MoveToFront(elem)
	if c.metrics != nil {
		c.metrics.ObserveHit()
	}
	return elem.Value.(*lruEntry[V]).value, true
}

// Put inserts or replaces the value for key, marks it most recently used,
// and evicts least-recently-used entries until the cache fits its budget
// again. The new entry itself is never evicted, even when its cost alone
// exceeds the budget.
func (c *LRU[V]) Put(key photo.Key, value V) {
	cost := c.cost(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry[V])
		c.size += cost - entry.cost
		entry.value = value
		entry.cost = cost
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&lruEntry[V]{key: key, value: value, cost: cost})
		c.items[key] = elem
		c.size += cost
	}

	c.evictLocked()
	c.recordLocked()
}

// evictLocked removes entries from the LRU end until size fits the budget.
// It stops before evicting the last remaining entry, which preserves a
// single oversized newcomer. Caller must hold c.mu.
func (c *LRU[V]) evictLocked() {
	for c.size > c.maxSize && c.order.Len() > 1 {
		back := c.order.Back()
		entry := back.Value.(*lruEntry[V])
		c.order.Remove(back)
		delete(c.items, entry.key)
		c.size -= entry.cost
		if c.metrics != nil {
			c.metrics.ObserveEviction(entry.cost)
		}
	}
}

// recordLocked publishes size gauges. Caller must hold c.mu.
func (c *LRU[V]) recordLocked() {
	if c.metrics != nil {
		c.metrics.RecordSize(c.size)
		c.metrics.RecordEntryCount(c.order.Len())
	}
}

// Peek returns the value for key without changing recency and without
// counting as a hit or miss.
func (c *LRU[V]) Peek(key photo.Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return elem.Value.(*lruEntry[V]).value, true
}

// Range calls fn for every resident entry, most recently used first,
// without changing recency. Iteration stops if fn returns false.
func (c *LRU[V]) Range(fn func(key photo.Key, value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*lruEntry[V])
		if !fn(entry.key, entry.value) {
			return
		}
	}
}

// EvictAll drops every entry and resets the size to zero.
func (c *LRU[V]) EvictAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[photo.Key]*list.Element)
	c.size = 0
	c.recordLocked()
}

// Size returns the current total cost of resident entries.
func (c *LRU[V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// MaxSize returns the byte budget.
func (c *LRU[V]) MaxSize() int64 {
	return c.maxSize
}

// Len returns the number of resident entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
