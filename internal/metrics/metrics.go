// Package metrics holds the Prometheus collectors of the blog backend. They
// are registered with the default registry on import and served on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blog_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blog_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// Generator
	GeneratorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_generator_requests_total",
			Help: "Calls to the generative text API by model and outcome",
		},
		[]string{"model", "outcome"}, // ok, not_found, rejected, error
	)

	GeneratorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blog_generator_duration_seconds",
			Help:    "End-to-end draft generation time in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
	)

	GeneratorRegenerations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_generator_regenerations_total",
			Help: "Drafts discarded for exceeding the word cap",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blog_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Content
	PostOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_post_operations_total",
			Help: "Post writes by operation and outcome",
		},
		[]string{"operation", "outcome"}, // create|update|delete|like|view, ok|error
	)

	UploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_uploaded_bytes_total",
			Help: "Bytes accepted by the file upload endpoints",
		},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge up or down.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordGeneratorCall counts one upstream call.
func RecordGeneratorCall(model, outcome string) {
	GeneratorRequests.WithLabelValues(model, outcome).Inc()
}

// RecordPostOperation counts a post write.
func RecordPostOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PostOperations.WithLabelValues(operation, outcome).Inc()
}
