package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodeToString(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToString(204))
	assert.Equal(t, "3xx", statusCodeToString(302))
	assert.Equal(t, "4xx", statusCodeToString(404))
	assert.Equal(t, "5xx", statusCodeToString(503))
	assert.Equal(t, "unknown", statusCodeToString(99))
}

func TestRecordClaimBatch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordClaimBatch("success", 5, 1.2)
	m.RecordClaimBatch("error", 0, 0.1)
	m.RecordClaimBatch("success", 2, 0.4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.claimBatchesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.claimBatchesTotal.WithLabelValues("error")))
}

func TestRecordPriceFetch_OnlySetsGaugeOnSuccess(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPriceFetch("success", 0.0123)
	m.RecordPriceFetch("error", 0)

	assert.Equal(t, 0.0123, testutil.ToFloat64(m.priceUSD))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.priceFetchesTotal.WithLabelValues("error")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/test", "GET", "4xx")))
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil, "/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
