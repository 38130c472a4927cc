// Package metrics provides Prometheus metrics for the HTTP server and the dose log.
// HTTP request performance:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Dose log activity:
//   - doses_logged_total: Counter with route label
//   - dose_log_failures_total: Counter with kind label
//   - history_saves_total: Counter with status label (success, error)
//   - users_tracked: Gauge of users held in memory
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	DosesLoggedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doses_logged_total",
			Help: "Doses appended to a history",
		},
		[]string{"route"},
	)

	DoseLogFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dose_log_failures_total",
			Help: "Dose strings that could not be logged",
		},
		[]string{"kind"},
	)

	HistorySavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_saves_total",
			Help: "User history saves to the store",
		},
		[]string{"status"},
	)

	UsersTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "users_tracked",
			Help: "Users held in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(DosesLoggedTotal)
	prometheus.MustRegister(DoseLogFailuresTotal)
	prometheus.MustRegister(HistorySavesTotal)
	prometheus.MustRegister(UsersTracked)
}
