package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.CacheHit("bundle")
	m.CacheHit("bundle")
	m.CacheMiss("widget")
	m.ScheduleRun("financial", "succeeded", 3)
	m.ScheduleRun("financial", "failed", 0)
	m.BatchProcessed(250 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("bundle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("widget")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scheduleRuns.WithLabelValues("financial", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.recipientsTotal))
}

func TestMetrics_HandlerAndMiddleware(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/reports/{type}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/financial", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/reports/{type}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "msp_atlas_http_requests_total")
}
