package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Observations(t *testing.T) {
	c := NewCollector("heatmap")

	c.ObserveCellLookup(3, 6)
	c.ObserveCellLookup(1, 0)
	assert.Equal(t, 4.0, testutil.ToFloat64(c.cellLookups.WithLabelValues("hit")))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.cellLookups.WithLabelValues("miss")))

	c.ObserveStoredRecord("inserted")
	c.ObserveStoredRecord("duplicate")
	c.ObserveStoredRecord("duplicate")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.storedRecords.WithLabelValues("duplicate")))

	c.ObserveProviderCall("cafe", nil)
	c.ObserveProviderCall("cafe", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerCalls.WithLabelValues("cafe", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerCalls.WithLabelValues("cafe", "error")))

	c.ObserveScan(150*time.Millisecond, 100)
	assert.Equal(t, 1, testutil.CollectAndCount(c.scanDuration))

	c.ObserveHTTPRequest("GET", "/api/health", 200, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/health", "200")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("heatmap")
	b := NewCollector("heatmap")
	a.ObserveStoredRecord("inserted")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.storedRecords.WithLabelValues("inserted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.storedRecords.WithLabelValues("inserted")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("heatmap")
	c.ObserveProviderCall("park", nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `heatmap_provider_calls_total{status="ok",type="park"} 1`)
}
