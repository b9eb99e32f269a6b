package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/club-booking-client/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveRequest("soft", "ok", 0.1)
	m.RecordRefresh("ok")
	m.RecordMutation("book", "rolled_back")
	m.RecordStatusLookupFailure()
	m.RecordSessionExpired()
	require.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest("critical", "ok", 0.2)
	m.ObserveRequest("critical", "ok", 0.3)
	m.RecordRefresh("throttled")
	m.RecordMutation("book", "confirmed")
	m.RecordStatusLookupFailure()

	require.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal().WithLabelValues("critical", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal().WithLabelValues("throttled")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.MutationsTotal().WithLabelValues("book", "confirmed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StatusLookupFailures()))
	require.Equal(t, 0.0, testutil.ToFloat64(m.SessionExpired()))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := metrics.New()
	m.RecordSessionExpired()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), metrics.MetricSessionExpiredTotal+" 1")
}
