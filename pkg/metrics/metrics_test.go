package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The registry is process-wide state, so the disabled and enabled paths are
// exercised in one test to pin the ordering.
func TestMetricsLifecycle(t *testing.T) {
	require.False(t, IsEnabled())
	assert.Nil(t, NewCacheMetrics("holder"))
	assert.Nil(t, NewLoaderMetrics())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	InitRegistry()
	InitRegistry() // idempotent
	require.True(t, IsEnabled())
	require.NotNil(t, GetRegistry())

	cm := NewCacheMetrics("holder")
	require.NotNil(t, cm)
	cm.ObserveHit()
	cm.ObserveMiss()
	cm.ObserveEviction(128)
	cm.ObserveOverwrite(true)
	cm.ObserveOverwrite(false)
	cm.RecordSize(1024)
	cm.RecordEntryCount(3)

	lm := NewLoaderMetrics()
	require.NotNil(t, lm)
	lm.ObserveLoadBatch(10, 8, 5*time.Millisecond)
	lm.ObservePreloadBatch(25, 25, 5*time.Millisecond)
	lm.RecordPendingRequests(2)

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `photoloader_cache_hits_total{cache="holder"} 1`)
	assert.Contains(t, body, `photoloader_cache_misses_total{cache="holder"} 1`)
	assert.Contains(t, body, `photoloader_cache_evicted_bytes_total{cache="holder"} 128`)
	assert.Contains(t, body, `photoloader_cache_overwrites_total{cache="holder",prior="fresh"} 1`)
	assert.Contains(t, body, `photoloader_cache_size_bytes{cache="holder"} 1024`)
	assert.Contains(t, body, `photoloader_fetch_batches_total{kind="load"} 1`)
	assert.Contains(t, body, `photoloader_fetch_keys_total{kind="preload"} 25`)
	assert.Contains(t, body, `photoloader_pending_requests 2`)
}

func TestCacheMetricsPerCacheLabels(t *testing.T) {
	InitRegistry()

	holder := NewCacheMetrics("holder")
	decoded := NewCacheMetrics("decoded")
	require.NotNil(t, holder)
	require.NotNil(t, decoded)

	decoded.ObserveHit()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `photoloader_cache_hits_total{cache="decoded"} 1`)
}
