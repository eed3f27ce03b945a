package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIngest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIngest("omicron", OutcomeSuccess)
	m.RecordIngest("omicron", OutcomeSuccess)
	m.RecordIngest("", OutcomeRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestTotal.WithLabelValues("omicron", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestTotal.WithLabelValues("unknown", OutcomeRejected)))
}

func TestRecordFallback(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordFallback("resampling_to_common_grid", "linear")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.normalizeFallback.WithLabelValues("resampling_to_common_grid", "linear")))
}

func TestObserveStage(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveStage("decode", 20*time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "unifra_ingest_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIngest("csv", OutcomeSuccess)
		m.ObserveStage("decode", time.Second)
		m.RecordFallback("a", "b")
	})
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records/abc", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/records/{id}", "404")))
}
