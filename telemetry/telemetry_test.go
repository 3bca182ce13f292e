package telemetry

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CacheObserver(t *testing.T) {
	m := New()

	m.ObserveLookup(true)
	m.ObserveLookup(true)
	m.ObserveLookup(false)
	m.ObserveEviction()
	m.ObserveSize(7)
	m.ObserveCompute(20*time.Millisecond, nil)
	m.ObserveCompute(time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvictions))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.cacheEntries))
	assert.Equal(t, 2, testutil.CollectAndCount(m.computeDuration))
}

func TestMetrics_RecordReport(t *testing.T) {
	m := New()

	m.RecordReport("product-ranking", 10*time.Millisecond, false, nil)
	m.RecordReport("product-ranking", time.Millisecond, true, nil)
	m.RecordReport("sales-trend", time.Millisecond, false, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsTotal.WithLabelValues("product-ranking", "ok", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsTotal.WithLabelValues("sales-trend", "error", "false")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveLookup(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `salesreport_cache_lookups_total{result="hit"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
