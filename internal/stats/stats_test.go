package stats

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusStats(t *testing.T) {
	ps := NewPrometheusStats(nil)

	ps.Incr(PublishedUpdates)
	ps.Incr(PublishedUpdates)
	ps.Set(ActiveConnections, 7)
	ps.Decr(ActiveConnections)
	ps.Observe(ConnectionDuration, 12.5)

	assert.Equal(t, float64(2), testutil.ToFloat64(ps.counters[PublishedUpdates]))
	assert.Equal(t, float64(6), testutil.ToFloat64(ps.gauges[ActiveConnections]))
	assert.Equal(t, 1, testutil.CollectAndCount(ps.histograms[ConnectionDuration]))

	// unknown names are ignored
	ps.Incr("bogus")
	ps.Set("bogus", 1)
	ps.Observe("bogus", 1)
}

func TestNewPrometheusStats_MetricsEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	ps := NewPrometheusStats(mux)
	ps.Incr(ExpiredCalls)

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "realtime_expired_calls_total 1")
}
