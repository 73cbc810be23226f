// Package photo defines the domain types and collaborator contracts for the
// photo loading subsystem.
//
// The loader core depends only on the interfaces in this package. The host
// application supplies the implementations: where photo bytes come from
// (Source), how bytes become a displayable image (DisplayTarget), and what to
// draw while a photo is loading (DefaultImageProvider).
package photo

import "context"

// Key identifies a single loadable photo. Keys are source-defined and opaque
// to the loader: the only requirements are map-key usability and a stable
// string form. The same key joins the request table, the holder cache and the
// decoded cache.
type Key string

// Identifier names the photo a request wants.
//
// An identifier whose IsValid reports false short-circuits loading entirely:
// the default image is applied and no request is enqueued.
type Identifier interface {
	// IsValid reports whether the identifier can ever resolve to a photo.
	IsValid() bool

	// Key returns the cache key for this identifier.
	Key() Key
}

// Image is a decoded, displayable photo. The loader only needs its decoded
// byte size for cache cost accounting.
type Image interface {
	// ByteSize returns the in-memory size of the decoded image in bytes.
	ByteSize() int64
}

// DisplayTarget is the surface a photo is rendered onto (a list row avatar,
// a detail view, ...). Targets are compared by identity through the
// caller-supplied fingerprint function; the loader never inspects them beyond
// this interface.
//
// Decode may be called from the dispatch goroutine or from the caller of
// LoadThumbnail; implementations must tolerate both.
type DisplayTarget interface {
	// Decode turns raw photo bytes into a displayable image and shows it.
	// A non-nil error means the bytes could not be decoded; the loader
	// treats this like a cache miss and applies the default image instead.
	Decode(bytes []byte, key string) (Image, error)

	// Reset cancels any placeholder or partially applied state. Called when
	// a pending request for this target is removed.
	Reset()
}

// DefaultImageProvider draws the placeholder shown while a photo is loading
// or when no photo exists. Extent is a size hint (width or height in pixels);
// -1 means unspecified.
type DefaultImageProvider interface {
	ApplyDefault(id Identifier, target DisplayTarget, extent int)
}

// Source resolves keys to raw photo bytes. All calls happen on the loader's
// single worker goroutine, never on the dispatch goroutine.
//
// Implementations must be safe to call repeatedly with overlapping key sets
// and must not block indefinitely; the loader applies no timeout of its own.
type Source interface {
	// LoadBatch fetches the photos for the given keys in one call.
	//
	// The result maps each resolved key to its bytes; a key mapped to nil
	// means the source confirmed there is no photo (cached as an absent
	// entry to avoid refetch storms). Keys missing from the result stay
	// pending and are retried on the next load cycle.
	LoadBatch(ctx context.Context, keys []Key) (map[Key][]byte, error)

	// PreloadCandidates enumerates keys worth warming the cache with, in
	// preload order. Called once, when preloading first runs. An empty
	// result ends preloading immediately.
	PreloadCandidates(ctx context.Context) ([]Key, error)

	// PreloadBatch fetches a speculative batch. Same result contract as
	// LoadBatch.
	PreloadBatch(ctx context.Context, keys []Key) (map[Key][]byte, error)
}

// Fingerprint derives the request-table key for an (identifier, target)
// pair. It must be pure and collision-avoiding: two calls with the same pair
// return the same value, and distinct targets yield distinct values.
type Fingerprint func(id Identifier, target DisplayTarget) uint64
