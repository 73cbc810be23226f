package cache

import "github.com/marmos91/photoloader/pkg/photo"

// DecodedCache is the second-tier cache: decoded images keyed by the same
// photo keys as the holder cache, saving repeat decode work for the most
// recently displayed photos. It is populated opportunistically from holder
// hits, never directly by the loader worker; a key in here always derives
// from bytes that were once resident in the holder cache.
//
// Admission is decided by the caller (the resolve path caps entries at
// MaxSize/capacityDivisor); this cache only enforces its own byte-budget
// LRU bound.
type DecodedCache struct {
	lru *LRU[photo.Image]
}

// NewDecodedCache creates a decoded-image cache with the given byte budget.
// metrics may be nil.
func NewDecodedCache(maxSize int64, metrics Metrics) *DecodedCache {
	return &DecodedCache{
		lru: NewLRU(maxSize, photo.Image.ByteSize, metrics),
	}
}

// Get returns the decoded image for key, bumping its recency.
func (c *DecodedCache) Get(key photo.Key) (photo.Image, bool) {
	return c.lru.Get(key)
}

// Put stores a decoded image under key.
func (c *DecodedCache) Put(key photo.Key, img photo.Image) {
	c.lru.Put(key, img)
}

// EvictAll drops every entry.
func (c *DecodedCache) EvictAll() {
	c.lru.EvictAll()
}

// Size returns the resident decoded byte cost.
func (c *DecodedCache) Size() int64 {
	return c.lru.Size()
}

// MaxSize returns the byte budget.
func (c *DecodedCache) MaxSize() int64 {
	return c.lru.MaxSize()
}

// Len returns the number of resident entries.
func (c *DecodedCache) Len() int {
	return c.lru.Len()
}
