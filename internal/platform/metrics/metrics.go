// Package metrics holds the Prometheus collectors exported on /metrics.
// They are registered with the default registry at init.
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

	RateLimiterBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets",
			Help: "Number of live per-client rate limiter buckets",
		},
	)

	ItemTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_item_transitions_total",
			Help: "Item approve/revert attempts by outcome",
		},
		[]string{"action", "result"},
	)

	ReceiptsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipts_generated_total",
			Help: "Receipt PDFs generated",
		},
		[]string{"result"},
	)

	InvoicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoices_total",
			Help: "Invoice lifecycle events",
		},
		[]string{"event"},
	)

	HousekeepingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housekeeping_runs_total",
			Help: "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBuckets)
	prometheus.MustRegister(ItemTransitions)
	prometheus.MustRegister(ReceiptsGenerated)
	prometheus.MustRegister(InvoicesTotal)
	prometheus.MustRegister(HousekeepingRuns)
}

// Result labels a best-effort counter by whether err is nil.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
