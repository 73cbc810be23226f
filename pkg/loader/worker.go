package loader

import (
	"sync/atomic"
	"time"

	"github.com/marmos91/photoloader/internal/logger"
	"github.com/marmos91/photoloader/pkg/photo"
)

// Preload progresses NOT_STARTED -> IN_PROGRESS -> DONE. DONE is terminal;
// it is reached when the candidate list drains, the holder cache crosses its
// red zone, or the source has nothing to preload.
const (
	preloadNotStarted int32 = iota
	preloadInProgress
	preloadDone
)

// worker is the single background goroutine that talks to the photo source.
// It serves two message kinds with a strict priority rule: a pending "load
// now" always runs before, and supersedes, a pending preload wake-up.
// On-screen correctness outranks speculative prefetch.
//
// Preload wake-ups carry a generation token. requestLoading bumps the
// generation, so a wake-up armed before the load is recognized as stale and
// dropped instead of being surgically removed from a queue. Every generation
// bump is followed by a re-arm (directly, or by the load cycle that caused
// it), so preloading never stalls.
//
// All preload state (status, candidate list) is owned by the worker
// goroutine except the status word, which requestPreloading reads from other
// goroutines.
type worker struct {
	m *Manager

	loadC    chan struct{} // cap 1; a queued token means a load is due
	preloadC chan uint64   // cap 1; carries the arming generation
	quitC    chan struct{}

	gen    atomic.Uint64
	status atomic.Int32

	// candidates holds the keys still to be preloaded, in source order.
	// Batches pop from the tail: most recently enumerated first.
	candidates []photo.Key
}

func newWorker(m *Manager) *worker {
	return &worker{
		m:        m,
		loadC:    make(chan struct{}, 1),
		preloadC: make(chan uint64, 1),
		quitC:    make(chan struct{}),
	}
}

func (w *worker) stop() {
	close(w.quitC)
}

// requestLoading tells the worker to drain the pending table now. Any armed
// preload wake-up is superseded by the generation bump; the load cycle
// re-arms preloading when it finishes.
func (w *worker) requestLoading() {
	w.gen.Add(1)
	select {
	case w.loadC <- struct{}{}:
	default:
	}
}

// requestPreloading arms the next preload cycle after the configured delay.
// Does nothing when preloading is finished or a load is already queued (the
// load re-arms on completion).
func (w *worker) requestPreloading() {
	if w.status.Load() == preloadDone {
		return
	}
	if len(w.loadC) > 0 {
		return
	}

	// Drop a superseded wake-up that is still queued so the fresh token
	// is not crowded out of the one-slot channel.
	select {
	case <-w.preloadC:
	default:
	}

	gen := w.gen.Add(1)
	delay := w.m.cfg.PreloadDelay
	time.AfterFunc(delay, func() {
		select {
		case w.preloadC <- gen:
		default:
		}
	})
}

func (w *worker) run() {
	defer w.m.wg.Done()
	for {
		// Drain due loads first; preload never runs ahead of one.
		select {
		case <-w.loadC:
			w.loadPending()
			continue
		case <-w.quitC:
			return
		default:
		}

		select {
		case <-w.loadC:
			w.loadPending()
		case gen := <-w.preloadC:
			if gen == w.gen.Load() {
				w.preloadStep()
			} else {
				// Superseded wake-up. Two arming races can leave the
				// stale token in the one-slot channel and the fresh one
				// dropped, so receipt of a stale token must re-arm or
				// preloading stalls.
				w.requestPreloading()
			}
		case <-w.quitC:
			return
		}
	}
}

// loadPending snapshots the pending table and bulk-fetches every entry whose
// key misses the holder cache, has no bytes, or is stale. The snapshot is
// weakly consistent with concurrent mutation: a request added or removed
// mid-scan is simply picked up on the next cycle.
func (w *worker) loadPending() {
	need := make(map[photo.Key]struct{})
	w.m.pending.Range(func(_, v any) bool {
		req := v.(*Request)
		holder, ok := w.m.holder.Get(req.Key())
		if !ok || holder.Bytes() == nil || !holder.Fresh() {
			need[req.Key()] = struct{}{}
		}
		return true
	})

	if len(need) > 0 {
		keys := make([]photo.Key, 0, len(need))
		for key := range need {
			keys = append(keys, key)
		}

		start := time.Now()
		results, err := w.m.opts.Source.LoadBatch(w.m.ctx, keys)
		if err != nil {
			// Unresolved keys stay pending and retry next cycle.
			logger.Warn("photo load batch failed", "keys", len(keys), "error", err)
		}
		for key, bytes := range results {
			w.m.holder.Put(key, bytes)
		}
		if w.m.opts.Metrics != nil {
			w.m.opts.Metrics.ObserveLoadBatch(len(keys), len(results), time.Since(start))
		}
		w.onLoaded(results)
	}

	w.m.notifyLoaded()
	w.requestPreloading()
}

// onLoaded removes keys satisfied by an on-demand load from the outstanding
// preload candidates; preloading them again would be redundant. Preloading
// finishes early if that drains the list.
func (w *worker) onLoaded(loaded map[photo.Key][]byte) {
	if w.status.Load() != preloadInProgress || len(loaded) == 0 {
		return
	}
	remaining := w.candidates[:0]
	for _, key := range w.candidates {
		if _, ok := loaded[key]; !ok {
			remaining = append(remaining, key)
		}
	}
	w.candidates = remaining
	if len(w.candidates) == 0 {
		w.status.Store(preloadDone)
	}
}

// preloadStep runs one cycle of the preload state machine.
func (w *worker) preloadStep() {
	switch w.status.Load() {
	case preloadDone:
		return

	case preloadNotStarted:
		candidates, err := w.m.opts.Source.PreloadCandidates(w.m.ctx)
		if err != nil {
			logger.Warn("preload candidate query failed", "error", err)
			w.requestPreloading()
			return
		}
		if len(candidates) == 0 {
			w.status.Store(preloadDone)
			return
		}
		w.candidates = candidates
		w.status.Store(preloadInProgress)
		w.requestPreloading()
		return
	}

	// IN_PROGRESS. Stop for good once the holder cache is in its red
	// zone; the remaining headroom belongs to on-demand loads.
	if w.m.holder.Size() > w.m.holder.RedZone() {
		logger.Debug("preload stopped: holder cache in red zone",
			"size", w.m.holder.Size(), "red_zone", w.m.holder.RedZone())
		w.status.Store(preloadDone)
		return
	}

	// Pop the next batch from the tail of the candidate list.
	batchSize := w.m.cfg.PreloadBatchSize
	if batchSize > len(w.candidates) {
		batchSize = len(w.candidates)
	}
	batch := make([]photo.Key, batchSize)
	copy(batch, w.candidates[len(w.candidates)-batchSize:])
	w.candidates = w.candidates[:len(w.candidates)-batchSize]

	start := time.Now()
	results, err := w.m.opts.Source.PreloadBatch(w.m.ctx, batch)
	if err != nil {
		logger.Warn("preload batch failed", "keys", len(batch), "error", err)
	}
	for key, bytes := range results {
		w.m.holder.Put(key, bytes)
	}
	if w.m.opts.Metrics != nil {
		w.m.opts.Metrics.ObservePreloadBatch(len(batch), len(results), time.Since(start))
	}
	w.m.notifyLoaded()

	logger.Debug("preloaded photos",
		"count", len(batch), "cached_bytes", w.m.holder.Size())

	if len(w.candidates) == 0 {
		w.status.Store(preloadDone)
		return
	}
	w.requestPreloading()
}
