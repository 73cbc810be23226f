// Package loader implements asynchronous photo loading over a two-tier
// cache.
//
// A Manager accepts photo requests keyed by display-target identity,
// coalesces them in a pending table, and hands batches to a single
// background worker that fetches bytes from the host-supplied photo source.
// Results land in a byte-budget holder cache (raw bytes + freshness) and,
// opportunistically, a smaller decoded-image cache. Stale entries stay
// servable while a refetch runs in the background.
//
// Two goroutines cooperate, both message-driven and never blocking on each
// other:
//   - the dispatch loop batches "need loading" signals behind a debounce
//     gate, applies cached results to display targets when the worker
//     reports completion, and re-requests loading while anything stays
//     unresolved;
//   - the worker serially processes "load now" and "preload" messages, with
//     load-now strictly outranking preload.
//
// Nothing here is fatal: fetch failures leave requests pending for the next
// cycle, decode failures fall back to the default image, and capacity is
// reclaimed silently by eviction.
package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/photoloader/internal/logger"
	"github.com/marmos91/photoloader/internal/memtier"
	"github.com/marmos91/photoloader/pkg/cache"
	"github.com/marmos91/photoloader/pkg/photo"
)

// MemoryPressure grades host memory-pressure signals. At PressureModerate or
// above the manager drops all pending requests and both caches.
type MemoryPressure int

const (
	PressureLow MemoryPressure = iota
	PressureModerate
	PressureCritical
)

// Options configures a Manager.
type Options struct {
	// Source resolves keys to photo bytes. Required.
	Source photo.Source

	// DefaultProvider draws placeholders. Required.
	DefaultProvider photo.DefaultImageProvider

	// Fingerprint derives the pending-table key from an (identifier,
	// target) pair. Required.
	Fingerprint photo.Fingerprint

	// Config holds cache and preload tunables; zero fields get defaults.
	Config Config

	// Tier is the memory tier used to scale cache budgets. TierUnknown
	// triggers one-shot detection.
	Tier memtier.Tier

	// HolderMetrics, DecodedMetrics and Metrics are optional collectors;
	// nil disables them.
	HolderMetrics  cache.Metrics
	DecodedMetrics cache.Metrics
	Metrics        Metrics
}

// Manager coordinates photo loading. Construct one per process with New and
// inject it by reference wherever photo loading is needed; there is no
// package-level cache state.
type Manager struct {
	opts Options
	cfg  Config

	holder  *cache.HolderCache
	decoded *cache.DecodedCache

	// pending maps request fingerprints to the most recent request for
	// that target. sync.Map gives the wait-free weakly-consistent
	// iteration the worker's snapshot scan relies on. The table is the
	// only record of pending work; counts are derived by scanning it, so
	// Clear racing a store can never strand stale bookkeeping.
	pending sync.Map // uint64 -> *Request

	// loadingRequested debounces need-loading signals: bursts of requests
	// (a scrolling list) collapse into one worker dispatch.
	loadingRequested atomic.Bool
	paused           atomic.Bool

	loadRequestC  chan struct{}
	photosLoadedC chan struct{}
	quitC         chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	workerMu sync.Mutex
	worker   *worker

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Manager and starts its dispatch loop. The worker goroutine
// starts lazily on the first load or preload request.
func New(opts Options) (*Manager, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("loader: Options.Source is required")
	}
	if opts.DefaultProvider == nil {
		return nil, fmt.Errorf("loader: Options.DefaultProvider is required")
	}
	if opts.Fingerprint == nil {
		return nil, fmt.Errorf("loader: Options.Fingerprint is required")
	}

	cfg := opts.Config
	cfg.applyDefaults()
	if cfg.CapacityDivisor < 1 {
		return nil, fmt.Errorf("loader: capacity divisor must be >= 1, got %d", cfg.CapacityDivisor)
	}
	if cfg.RedZoneFraction <= 0 || cfg.RedZoneFraction > 1 {
		return nil, fmt.Errorf("loader: red zone fraction must be in (0, 1], got %v", cfg.RedZoneFraction)
	}

	tier := opts.Tier
	if tier == memtier.TierUnknown {
		tier = memtier.Detect()
	}
	cfg.HolderCacheBytes = memtier.Adjust(cfg.HolderCacheBytes, tier)
	cfg.DecodedCacheBytes = memtier.Adjust(cfg.DecodedCacheBytes, tier)
	logger.Info("photo caches sized",
		"memory_tier", tier.String(),
		"holder_bytes", cfg.HolderCacheBytes,
		"decoded_bytes", cfg.DecodedCacheBytes)

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:          opts,
		cfg:           cfg,
		holder:        cache.NewHolderCache(cfg.HolderCacheBytes, cfg.RedZoneFraction, opts.HolderMetrics),
		decoded:       cache.NewDecodedCache(cfg.DecodedCacheBytes, opts.DecodedMetrics),
		loadRequestC:  make(chan struct{}, 1),
		photosLoadedC: make(chan struct{}, 1),
		quitC:         make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.wg.Add(1)
	go m.dispatchLoop()
	return m, nil
}

// LoadThumbnail requests the photo for id to be shown on target. If the
// identifier is invalid the default image is applied immediately and any
// pending request for the same fingerprint is dropped. Otherwise the request
// is resolved against the caches right away; on a miss it is enqueued
// (replacing any prior request for that target) and loading is signalled.
func (m *Manager) LoadThumbnail(id photo.Identifier, target photo.DisplayTarget) {
	fingerprint := m.opts.Fingerprint(id, target)
	if !id.IsValid() {
		// No photo can exist; also cancels a stale in-flight request.
		m.opts.DefaultProvider.ApplyDefault(id, target, -1)
		m.deletePending(fingerprint)
		return
	}
	m.loadPhoto(fingerprint, newRequest(id, m.opts.DefaultProvider, target))
}

func (m *Manager) loadPhoto(fingerprint uint64, req *Request) {
	if m.resolve(req) {
		m.deletePending(fingerprint)
		return
	}
	m.storePending(fingerprint, req)
	if !m.paused.Load() {
		m.requestLoading()
	}
}

// RemovePhoto drops the pending request for fingerprint, if any, and resets
// the display target. Used when a view is recycled or detached. An in-flight
// fetch that still covers the key is not aborted; its result is written to
// cache and simply never displayed.
func (m *Manager) RemovePhoto(fingerprint uint64) {
	if v, ok := m.pending.LoadAndDelete(fingerprint); ok {
		m.recordPending()
		v.(*Request).Target().Reset()
	}
}

// RefreshCache marks every cached photo for revalidation. Cached bytes stay
// servable, but every entry must be refetched before it counts as resolved
// again. A no-op when everything is already stale.
func (m *Manager) RefreshCache() {
	if !m.holder.MarkAllStale() {
		logger.Debug("refresh cache skipped: no fresh entries")
		return
	}
	logger.Debug("refresh cache: all entries marked stale")
}

// PreloadInBackground starts the background process that fills the cache
// with preload photos over time, yielding to on-demand loads.
func (m *Manager) PreloadInBackground() {
	m.ensureWorker().requestPreloading()
}

// Pause suppresses new load dispatches. In-flight worker batches finish and
// their results are cached, but no results are applied until Resume.
func (m *Manager) Pause() {
	m.paused.Store(true)
}

// Resume re-enables loading and re-triggers it if requests are pending.
func (m *Manager) Resume() {
	m.paused.Store(false)
	if m.pendingLen() > 0 {
		m.requestLoading()
	}
}

// OnMemoryPressure reacts to a host memory-pressure signal. At
// PressureModerate or above both caches and the pending table are cleared,
// regardless of pause state. Dropped requests get no notification; callers
// treat loading as fire-and-forget.
func (m *Manager) OnMemoryPressure(level MemoryPressure) {
	if level >= PressureModerate {
		logger.Info("memory pressure: clearing photo caches", "level", int(level))
		m.Clear()
	}
}

// Clear drops all pending requests and evicts both caches.
func (m *Manager) Clear() {
	m.pending.Clear()
	m.recordPending()
	m.holder.EvictAll()
	m.decoded.EvictAll()
}

// Close stops the dispatch loop and the worker and cancels any in-flight
// source call. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		st := m.Stats()
		logger.Debug("photo loader closing",
			"holder_bytes", st.HolderBytes,
			"holder_entries", st.HolderEntries,
			"decoded_bytes", st.DecodedBytes,
			"decoded_entries", st.DecodedEntries,
			"pending", st.PendingRequests,
			"stale_overwrites", st.StaleOverwrites,
			"fresh_overwrites", st.FreshOverwrites)
		m.cancel()
		close(m.quitC)
		m.workerMu.Lock()
		if m.worker != nil {
			m.worker.stop()
		}
		m.workerMu.Unlock()
		m.wg.Wait()
	})
}

// requestLoading signals the dispatch loop that loading is needed. The
// debounce gate guarantees a single queued signal, so every request issued
// before the loop wakes up rides the same worker dispatch.
func (m *Manager) requestLoading() {
	if m.loadingRequested.CompareAndSwap(false, true) {
		select {
		case m.loadRequestC <- struct{}{}:
		default:
		}
	}
}

// notifyLoaded signals the dispatch loop that the worker finished a batch.
// The channel holds one token; collapsing back-to-back signals is safe
// because processing rescans the whole pending table.
func (m *Manager) notifyLoaded() {
	select {
	case m.photosLoadedC <- struct{}{}:
	default:
	}
}

// dispatchLoop is the foreground loop. It never blocks on I/O; all source
// calls happen on the worker. Receiving on photosLoadedC happens after the
// worker's cache writes, which gives the ordering guarantee that a "photos
// loaded" wake-up always observes those writes.
func (m *Manager) dispatchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.loadRequestC:
			m.loadingRequested.Store(false)
			if !m.paused.Load() {
				m.ensureWorker().requestLoading()
			}
		case <-m.photosLoadedC:
			if !m.paused.Load() {
				m.processLoaded()
			}
		case <-m.quitC:
			return
		}
	}
}

// processLoaded walks the pending table, applies cache hits to their display
// targets, drops satisfied requests, and re-requests loading if anything
// remains unresolved.
func (m *Manager) processLoaded() {
	m.pending.Range(func(k, v any) bool {
		if m.resolve(v.(*Request)) {
			m.deletePending(k.(uint64))
		}
		return true
	})

	if m.pendingLen() > 0 {
		m.requestLoading()
	}
}

// resolve attempts to satisfy a request from the caches.
//
// Returns true when the request is settled and can leave the pending table.
// A stale hit (bytes or confirmed-absent) is displayed but reported
// unresolved, so the loader revalidates it in the background.
func (m *Manager) resolve(req *Request) bool {
	holder, ok := m.holder.Get(req.Key())
	if !ok {
		// Not loaded yet: show the placeholder.
		req.applyDefault()
		return false
	}

	if holder.Bytes() == nil {
		// Confirmed "no photo". Settled only while fresh.
		req.applyDefault()
		return holder.Fresh()
	}

	img, err := req.Target().Decode(holder.Bytes(), string(req.Key()))
	if err != nil {
		// Decode failure degrades to the placeholder. The entry keeps
		// its stored freshness: refetching cannot fix undecodable
		// bytes, so a fresh entry stays settled.
		logger.Warn("photo decode failed", "key", string(req.Key()), "error", err)
		req.applyDefault()
		return holder.Fresh()
	}

	// Admit small decoded images to the second-tier cache so redisplay
	// skips the decode. The per-item cap keeps one huge image from
	// monopolizing the budget.
	if img != nil && img.ByteSize() < m.decoded.MaxSize()/int64(m.cfg.CapacityDivisor) {
		m.decoded.Put(req.Key(), img)
	}

	return holder.Fresh()
}

// ensureWorker starts the loader worker on first use.
func (m *Manager) ensureWorker() *worker {
	m.workerMu.Lock()
	defer m.workerMu.Unlock()
	if m.worker == nil {
		m.worker = newWorker(m)
		m.wg.Add(1)
		go m.worker.run()
	}
	return m.worker
}

func (m *Manager) storePending(fingerprint uint64, req *Request) {
	if prev, ok := m.pending.Load(fingerprint); ok && prev.(*Request).Equal(req) {
		return
	}
	m.pending.Store(fingerprint, req)
	m.recordPending()
}

func (m *Manager) deletePending(fingerprint uint64) {
	if _, ok := m.pending.LoadAndDelete(fingerprint); ok {
		m.recordPending()
	}
}

// pendingLen counts the pending table by scanning it. The table stays small
// (one entry per visible display target), so the scan is cheap, and deriving
// the count keeps it consistent with the table under any interleaving.
func (m *Manager) pendingLen() int {
	n := 0
	m.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (m *Manager) recordPending() {
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordPendingRequests(m.pendingLen())
	}
}

// Stats is a point-in-time snapshot of cache and loader state, for debug
// logging and the daemon's /statz endpoint.
type Stats struct {
	HolderBytes     int64 `json:"holder_bytes"`
	HolderMaxBytes  int64 `json:"holder_max_bytes"`
	HolderEntries   int   `json:"holder_entries"`
	DecodedBytes    int64 `json:"decoded_bytes"`
	DecodedMaxBytes int64 `json:"decoded_max_bytes"`
	DecodedEntries  int   `json:"decoded_entries"`
	PendingRequests int64 `json:"pending_requests"`
	AllStale        bool  `json:"all_stale"`
	StaleOverwrites int64 `json:"stale_overwrites"`
	FreshOverwrites int64 `json:"fresh_overwrites"`
}

// Stats returns a snapshot of the manager's caches and pending table.
func (m *Manager) Stats() Stats {
	return Stats{
		HolderBytes:     m.holder.Size(),
		HolderMaxBytes:  m.holder.MaxSize(),
		HolderEntries:   m.holder.Len(),
		DecodedBytes:    m.decoded.Size(),
		DecodedMaxBytes: m.decoded.MaxSize(),
		DecodedEntries:  m.decoded.Len(),
		PendingRequests: int64(m.pendingLen()),
		AllStale:        m.holder.AllStale(),
		StaleOverwrites: m.holder.StaleOverwrites(),
		FreshOverwrites: m.holder.FreshOverwrites(),
	}
}
