package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "businesshub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "businesshub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "businesshub_operations_total",
		Help: "Count of business-level operations by operation and result",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "businesshub_operation_duration_seconds",
		Help:    "Duration of business-level operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	pendingJoinRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "businesshub_pending_join_requests",
		Help: "Number of pending join requests across all businesses",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "businesshub_events_published_total",
		Help: "Count of notification events published by type and result",
	}, []string{"type", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveOperation records a business operation outcome and its duration.
// Result is "success" or the error class (forbidden, not_found, conflict...).
func ObserveOperation(operation, result string, duration time.Duration) {
	operationsTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetPendingJoinRequests sets the pending join-request gauge.
func SetPendingJoinRequests(count int64) {
	if count < 0 {
		count = 0
	}
	pendingJoinRequests.Set(float64(count))
}

// ObserveEventPublished records an event publish attempt.
func ObserveEventPublished(eventType, result string) {
	eventsPublished.WithLabelValues(eventType, result).Inc()
}
