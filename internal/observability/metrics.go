package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "complaints"

// Metrics groups the service's prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	mutations  *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	breaches   prometheus.Counter
}

// NewMetrics builds the collectors and registers them with reg. A nil reg
// falls back to the default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_errors_total",
				Help:      "HTTP errors by domain error code",
			},
			[]string{"method", "route", "code"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_mutations_total",
				Help:      "Committed ticket mutations by kind",
			},
			[]string{"kind"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_deliveries_total",
				Help:      "Notification delivery attempts by outcome",
			},
			[]string{"transport", "outcome"},
		),
		breaches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sla_breaches_total",
				Help:      "SLA breaches detected by the sweeper",
			},
		),
	}
	reg.MustRegister(m.requests, m.latency, m.errors, m.mutations, m.deliveries, m.breaches)
	return m
}

// RecordRequest counts a finished request and observes its latency.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts a rendered domain error.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, route, code).Inc()
}

// RecordMutation counts a committed lifecycle mutation.
func (m *Metrics) RecordMutation(kind string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind).Inc()
}

// RecordDelivery counts a notification delivery outcome.
func (m *Metrics) RecordDelivery(transport, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(transport, outcome).Inc()
}

// RecordSLABreach counts one newly detected breach.
func (m *Metrics) RecordSLABreach() {
	if m == nil {
		return
	}
	m.breaches.Inc()
}
