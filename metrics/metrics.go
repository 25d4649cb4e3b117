// Package metrics provides Prometheus metrics for the reconciliation
// service: the HTTP server metrics plus pipeline and terminology-client
// instrumentation.
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
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
			Help: "Total number of rate limiter buckets (IPs seen recently)",
		},
	)

	TerminologyRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminology_request_total",
			Help: "Total requests to the terminology server",
		},
		[]string{"operation", "status"},
	)

	TerminologyRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "terminology_request_duration_seconds",
			Help:    "Terminology server request latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Duration of a full reconciliation run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	AttributeRuleTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attribute_match_rule_total",
			Help: "Attribute-match rule outcomes per reconciliation",
		},
		[]string{"rule"},
	)

	TermRuleTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "term_match_rule_total",
			Help: "Term-match rule outcomes per reconciliation",
		},
		[]string{"rule"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(TerminologyRequestTotals)
	prometheus.MustRegister(TerminologyRequestDuration)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(AttributeRuleTotals)
	prometheus.MustRegister(TermRuleTotals)
}
