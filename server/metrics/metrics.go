// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Translation outcomes recorded in TranslationsTotal.
const (
	OutcomeSuccess      = "success"
	OutcomeAdapterError = "adapter_error"
	OutcomeDecodeError  = "decode_error"
	OutcomeCircuitOpen  = "circuit_open"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ActiveRequests    *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec
	RateLimitHits     prometheus.Counter
	TranslationsTotal *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
	QueueDepth        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarjuman_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tarjuman_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tarjuman_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarjuman_errors_total",
				Help: "Total number of error responses by error type",
			},
			[]string{"type"},
		),
		// Not labelled by client: addresses are unbounded. The client is
		// in the "Rate limit exceeded" log line instead.
		RateLimitHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tarjuman_rate_limit_hits_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		TranslationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarjuman_translations_total",
				Help: "Total number of translation attempts by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tarjuman_upstream_duration_seconds",
				Help: "Duration of calls to the generation service in seconds",
				// Reasoning models are slow; DefBuckets stop at 10s.
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120},
			},
			[]string{"backend"},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tarjuman_queue_depth",
				Help: "Number of translate requests waiting in the queue",
			},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize some default metrics
	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestDuration.WithLabelValues("/health").Observe(0)
	m.ActiveRequests.WithLabelValues("/api/translate").Add(0)
	for _, outcome := range []string{OutcomeSuccess, OutcomeAdapterError, OutcomeDecodeError, OutcomeCircuitOpen} {
		m.TranslationsTotal.WithLabelValues(outcome).Add(0)
	}

	return m
}

// Registry returns the registry so other components (the circuit breaker)
// can add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false, // Disable OpenMetrics format to avoid escaping=values
	})
}
