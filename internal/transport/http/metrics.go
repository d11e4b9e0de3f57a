package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the HTTP surface
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RedirectOutcomes    *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
}

// NewMetrics registers the HTTP metrics against the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpulse_http_requests_total",
			Help: "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkpulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		RedirectOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpulse_redirect_outcomes_total",
			Help: "Redirect resolutions by outcome.",
		}, []string{"outcome"}),
		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpulse_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter, by action.",
		}, []string{"action"}),
	}
}
