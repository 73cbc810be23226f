package loader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/photoloader/pkg/photo"
)

func TestPreloadFillsCache(t *testing.T) {
	src := &testSource{
		photos: map[photo.Key][]byte{
			"a": []byte("aa"),
			"b": []byte("bb"),
			"c": []byte("cc"),
		},
		candidates: []photo.Key{"a", "b", "c"},
	}
	m, _ := newTestManager(t, src, Config{
		PreloadBatchSize: 2,
		PreloadDelay:     2 * time.Millisecond,
	})

	m.PreloadInBackground()

	require.Eventually(t, func() bool {
		return m.Stats().HolderEntries == 3
	}, 2*time.Second, 2*time.Millisecond)

	// Batches pop from the tail of the candidate list.
	batches := src.preloadCallsSnapshot()
	require.Len(t, batches, 2)
	assert.Equal(t, []photo.Key{"b", "c"}, batches[0])
	assert.Equal(t, []photo.Key{"a"}, batches[1])
}

func TestPreloadNoCandidatesFinishesImmediately(t *testing.T) {
	src := &testSource{}
	m, _ := newTestManager(t, src, Config{PreloadDelay: 2 * time.Millisecond})

	m.PreloadInBackground()

	require.Eventually(t, func() bool {
		for _, ev := range src.eventsSnapshot() {
			if ev == "candidates" {
				return true
			}
		}
		return false
	}, 2*time.Second, 2*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, src.preloadCallsSnapshot())
	assert.Equal(t, 0, m.Stats().HolderEntries)
}

func TestPreloadStopsAtRedZone(t *testing.T) {
	src := &testSource{
		photos: map[photo.Key][]byte{
			"a": make([]byte, 40),
			"b": make([]byte, 40),
			"c": make([]byte, 40),
		},
		candidates: []photo.Key{"a", "b", "c"},
	}
	m, _ := newTestManager(t, src, Config{
		HolderCacheBytes: 100,
		RedZoneFraction:  0.5,
		PreloadBatchSize: 1,
		PreloadDelay:     2 * time.Millisecond,
	})

	m.PreloadInBackground()

	// Two batches fit under the 50-byte red zone; the third cycle must
	// observe 80 cached bytes and stop for good.
	require.Eventually(t, func() bool {
		return len(src.preloadCallsSnapshot()) == 2
	}, 2*time.Second, 2*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	batches := src.preloadCallsSnapshot()
	require.Len(t, batches, 2)
	assert.Equal(t, []photo.Key{"c"}, batches[0])
	assert.Equal(t, []photo.Key{"b"}, batches[1])
	assert.Equal(t, int64(80), m.Stats().HolderBytes)
}

func TestOnDemandLoadOutranksArmedPreload(t *testing.T) {
	src := &testSource{
		photos: map[photo.Key][]byte{
			"urgent": []byte("now"),
			"warm":   []byte("later"),
		},
		candidates: []photo.Key{"warm"},
	}
	m, _ := newTestManager(t, src, Config{PreloadDelay: 150 * time.Millisecond})
	target := newTestTarget(1)

	m.PreloadInBackground()
	m.LoadThumbnail(validID("urgent"), target)
	waitSettled(t, m)

	events := src.eventsSnapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, "load", events[0], "the on-demand load must run before any preload work")

	// Preloading still happens afterwards.
	require.Eventually(t, func() bool {
		_, ok := m.holder.Get("warm")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOnDemandLoadDrainsPreloadCandidates(t *testing.T) {
	src := &testSource{
		photos: map[photo.Key][]byte{
			"a": []byte("aa"),
			"b": []byte("bb"),
		},
		// Tail-first batching preloads "a" before "b".
		candidates: []photo.Key{"b", "a"},
	}
	m, _ := newTestManager(t, src, Config{
		PreloadBatchSize: 1,
		PreloadDelay:     100 * time.Millisecond,
	})
	target := newTestTarget(1)

	m.PreloadInBackground()
	require.Eventually(t, func() bool {
		return len(src.preloadCallsSnapshot()) == 1
	}, 2*time.Second, 2*time.Millisecond)

	// "b" arrives via an on-demand load while its preload is still armed:
	// the candidate list drains and preloading finishes without refetching.
	m.LoadThumbnail(validID("b"), target)
	waitSettled(t, m)

	time.Sleep(300 * time.Millisecond)
	batches := src.preloadCallsSnapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []photo.Key{"a"}, batches[0])
	assert.Equal(t, 2, m.Stats().HolderEntries)
}

func TestSupersededPreloadWakeupRearms(t *testing.T) {
	src := &testSource{
		photos:     map[photo.Key][]byte{"a": []byte("aa")},
		candidates: []photo.Key{"a"},
	}
	m, _ := newTestManager(t, src, Config{PreloadDelay: 2 * time.Millisecond})

	// Two arming races can leave a stale token in the one-slot channel
	// while the fresh token got dropped. Hand the worker exactly that
	// state: a queued wake-up from before the latest generation bump.
	w := m.ensureWorker()
	stale := w.gen.Load()
	w.gen.Add(1)
	w.preloadC <- stale

	require.Eventually(t, func() bool {
		return m.Stats().HolderEntries == 1
	}, 2*time.Second, 2*time.Millisecond,
		"preloading must recover after a superseded wake-up")
}

func TestPreloadInBackgroundAfterDoneIsNoop(t *testing.T) {
	src := &testSource{
		photos:     map[photo.Key][]byte{"a": []byte("aa")},
		candidates: []photo.Key{"a"},
	}
	m, _ := newTestManager(t, src, Config{PreloadDelay: 2 * time.Millisecond})

	m.PreloadInBackground()
	require.Eventually(t, func() bool {
		return m.Stats().HolderEntries == 1
	}, 2*time.Second, 2*time.Millisecond)

	m.PreloadInBackground()
	time.Sleep(30 * time.Millisecond)

	events := src.eventsSnapshot()
	var candidateQueries int
	for _, ev := range events {
		if ev == "candidates" {
			candidateQueries++
		}
	}
	assert.Equal(t, 1, candidateQueries, "finished preloading must not restart")
}
