package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "loopviz"

// Metrics are the service's Prometheus collectors. Each server registers
// its own set so several can live in one process.
type Metrics struct {
	// RequestsTotal counts requests by route, method and status code.
	RequestsTotal *prometheus.CounterVec
	// ParseDurationSeconds measures analyzer time by outcome
	// (ok, syntax_error, error).
	ParseDurationSeconds *prometheus.HistogramVec
	// RateLimitedTotal counts requests rejected by the limiter.
	RateLimitedTotal prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		ParseDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "analyzer",
				Name:      "parse_duration_seconds",
				Help:      "Time spent analyzing one program",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"outcome"},
		),
		RateLimitedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}
}
