// Package metrics provides Prometheus metrics for the emulator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the emulator.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Routing metrics
	RouteDecisionsTotal *prometheus.CounterVec
	ConfigReloadsTotal  *prometheus.CounterVec

	// Authentication metrics
	AuthRequestsTotal *prometheus.CounterVec

	// IdP metrics
	IdPRequestsTotal   *prometheus.CounterVec
	IdPRequestDuration *prometheus.HistogramVec

	// Registry for metrics
	Registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewBuildInfoCollector())

	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swa_emulator_http_requests_total",
				Help: "Total number of HTTP requests by dispatch kind",
			},
			[]string{"method", "kind", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swa_emulator_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "kind"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "swa_emulator_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		RouteDecisionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swa_emulator_route_decisions_total",
				Help: "Total number of routing decisions by kind",
			},
			[]string{"kind"},
		),
		ConfigReloadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swa_emulator_config_reloads_total",
				Help: "Total number of staticwebapp.config.json reloads",
			},
			[]string{"status"},
		),

		AuthRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swa_emulator_auth_requests_total",
				Help: "Total number of /.auth requests",
			},
			[]string{"provider", "type", "status"},
		),

		IdPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swa_emulator_idp_requests_total",
				Help: "Total number of identity provider calls",
			},
			[]string{"provider", "operation", "status"},
		),
		IdPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swa_emulator_idp_request_duration_seconds",
				Help:    "Identity provider call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
	}
}

// Handler returns an HTTP handler for serving Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		Registry:          m.Registry,
		EnableOpenMetrics: true,
	})
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, kind, status string, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, kind, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, kind).Observe(seconds)
}

// RecordDecision records a routing decision.
func (m *Metrics) RecordDecision(kind string) {
	m.RouteDecisionsTotal.WithLabelValues(kind).Inc()
}

// RecordConfigReload records a configuration reload attempt.
func (m *Metrics) RecordConfigReload(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ConfigReloadsTotal.WithLabelValues(status).Inc()
}

// RecordAuthRequest records an authentication request.
func (m *Metrics) RecordAuthRequest(provider, authType, status string) {
	m.AuthRequestsTotal.WithLabelValues(provider, authType, status).Inc()
}

// RecordIdPRequest records an IdP call and its duration.
func (m *Metrics) RecordIdPRequest(provider, operation, status string, seconds float64) {
	m.IdPRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	m.IdPRequestDuration.WithLabelValues(provider, operation).Observe(seconds)
}

// InFlightInc increments the in-flight request counter.
func (m *Metrics) InFlightInc() {
	m.HTTPRequestsInFlight.Inc()
}

// InFlightDec decrements the in-flight request counter.
func (m *Metrics) InFlightDec() {
	m.HTTPRequestsInFlight.Dec()
}
