// Package metrics exposes the client's counters on a private Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricRequestsTotal             = "club_client_requests_total"
	MetricRequestDurationSeconds    = "club_client_request_duration_seconds"
	MetricRefreshTotal              = "club_client_refresh_total"
	MetricMutationsTotal            = "club_client_mutations_total"
	MetricStatusLookupFailuresTotal = "club_client_status_lookup_failures_total"
	MetricSessionExpiredTotal       = "club_client_session_expired_total"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
	refreshTotal           *prometheus.CounterVec
	mutationsTotal         *prometheus.CounterVec
	statusLookupFailures   prometheus.Counter
	sessionExpired         prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "Outbound API requests by endpoint class and outcome.",
		}, []string{"class", "outcome"}),
		requestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDurationSeconds,
			Help:    "Outbound API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRefreshTotal,
			Help: "Credential refresh attempts by result.",
		}, []string{"result"}),
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricMutationsTotal,
			Help: "Optimistic booking mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		statusLookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStatusLookupFailuresTotal,
			Help: "Booking status lookups that degraded to not_booked.",
		}),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSessionExpiredTotal,
			Help: "Sessions cleared after an unrecoverable authorization failure.",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDurationSeconds,
		m.refreshTotal,
		m.mutationsTotal,
		m.statusLookupFailures,
		m.sessionExpired,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(class, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(class, outcome).Inc()
	m.requestDurationSeconds.WithLabelValues(class).Observe(seconds)
}

func (m *Metrics) RecordRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) RecordStatusLookupFailure() {
	if m == nil {
		return
	}
	m.statusLookupFailures.Inc()
}

func (m *Metrics) RecordSessionExpired() {
	if m == nil {
		return
	}
	m.sessionExpired.Inc()
}

// RequestsTotal, RefreshTotal and MutationsTotal expose the vectors for assertions.
func (m *Metrics) RequestsTotal() *prometheus.CounterVec  { return m.requestsTotal }
func (m *Metrics) RefreshTotal() *prometheus.CounterVec   { return m.refreshTotal }
func (m *Metrics) MutationsTotal() *prometheus.CounterVec { return m.mutationsTotal }
func (m *Metrics) StatusLookupFailures() prometheus.Counter {
	return m.statusLookupFailures
}
func (m *Metrics) SessionExpired() prometheus.Counter { return m.sessionExpired }
