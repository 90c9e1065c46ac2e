// Package metrics exposes the module's Prometheus instrumentation: fixed
// HTTP-level collectors consumed by the transport middleware, and a Recorder
// that implements the core metrics contract for service operations.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "approvals_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_http_errors_total",
			Help: "Total HTTP error responses by text code",
		},
		[]string{"code"},
	)

	AuthFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "approvals_auth_failures_total",
			Help: "Total rejected authentication attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestDuration, HTTPRequestsTotal,
		HTTPErrorsTotal, AuthFailuresTotal,
	)
}
