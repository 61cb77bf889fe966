// Package observability provides Prometheus metrics for the adapter.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridgate_requests_total",
		Help: "Total requests handled, by endpoint and status code.",
	}, []string{"endpoint", "status"})

	pollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridgate_poll_attempts_total",
		Help: "Total status polls issued against the grid.",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridgate_job_duration_seconds",
		Help:    "End-to-end duration of grid jobs from submit to final text.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridgate_active_streams",
		Help: "Number of SSE streams currently open.",
	})
)

// IncRequest records one handled request.
func IncRequest(endpoint, status string) {
	requestsTotal.WithLabelValues(endpoint, status).Inc()
}

// IncPollAttempts records one status poll.
func IncPollAttempts() {
	pollAttempts.Inc()
}

// ObserveJobDuration records a completed job's submit-to-text duration.
func ObserveJobDuration(d time.Duration) {
	jobDuration.Observe(d.Seconds())
}

// StreamStarted marks an SSE stream as open.
func StreamStarted() {
	activeStreams.Inc()
}

// StreamEnded marks an SSE stream as closed.
func StreamEnded() {
	activeStreams.Dec()
}
