package loader

import "github.com/marmos91/photoloader/pkg/photo"

// Request captures one pending photo request: which photo, where to draw it,
// and what to draw while it loads. Requests live in the manager's pending
// table, keyed by the (identifier, target) fingerprint, until a cache hit
// satisfies them or they are removed.
type Request struct {
	id       photo.Identifier
	extent   int
	provider photo.DefaultImageProvider
	target   photo.DisplayTarget
}

func newRequest(id photo.Identifier, provider photo.DefaultImageProvider, target photo.DisplayTarget) *Request {
	return &Request{
		id:       id,
		extent:   -1,
		provider: provider,
		target:   target,
	}
}

// Key returns the cache key the request resolves through.
func (r *Request) Key() photo.Key {
	return r.id.Key()
}

// Target returns the display target the request renders to.
func (r *Request) Target() photo.DisplayTarget {
	return r.target
}

// Equal reports request identity: same requested extent and photo key.
// Requests are only compared under the same pending-table fingerprint, which
// already encodes target identity, and identifier identity is its key; this
// keeps identifier and target implementations free to be non-comparable
// types. The default-image provider is excluded: when the photo exists it is
// the same regardless of placeholder policy, so two requests differing only
// there are one request.
func (r *Request) Equal(other *Request) bool {
	if other == nil {
		return false
	}
	return r.extent == other.extent && r.id.Key() == other.id.Key()
}

func (r *Request) applyDefault() {
	r.provider.ApplyDefault(r.id, r.target, r.extent)
}
