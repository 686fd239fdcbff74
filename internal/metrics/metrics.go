// Package metrics exposes Prometheus metrics for the session lifecycle and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "user_admin"

// Metrics is a no-op when disabled or nil.
type Metrics struct {
	enabled  bool
	registry *prometheus.Registry

	loginsTotal        *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	gateDecisionsTotal *prometheus.CounterVec
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	eventsForwarded    *prometheus.CounterVec
}

// New creates the metrics on a dedicated registry.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}
	if !enabled {
		return m
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(m.registry)

	m.loginsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Login attempts by result",
	}, []string{"result"})

	m.verificationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_verifications_total",
		Help:      "Token verifications by result",
	}, []string{"result"})

	m.gateDecisionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Route gate decisions by outcome",
	}, []string{"outcome"})

	m.requestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	m.requestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.eventsForwarded = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_forwarded_total",
		Help:      "Directory change events forwarded to the broker by result",
	}, []string{"result"})

	return m
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// RecordLogin counts a login attempt; result is "success", "invalid" or "error".
func (m *Metrics) RecordLogin(result string) {
	if !m.Enabled() {
		return
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

// RecordVerification counts a token verification; result is "valid",
// "missing", "malformed", "signature" or "expired".
func (m *Metrics) RecordVerification(result string) {
	if !m.Enabled() {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordGateDecision(outcome string) {
	if !m.Enabled() {
		return
	}
	m.gateDecisionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordEventForwarded(ok bool) {
	if !m.Enabled() {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.eventsForwarded.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method string, route string, status int, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
