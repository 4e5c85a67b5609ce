package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics collects HTTP request metrics for the ID service API.
//
// All methods are safe to call on a nil receiver, which is what
// NewAPIMetrics returns when metrics are disabled.
type APIMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

// NewAPIMetrics creates a new Prometheus-backed APIMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAPIMetrics() *APIMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &APIMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbuilder_api_requests_total",
				Help: "Total number of API requests by endpoint and result code",
			},
			[]string{"endpoint", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idbuilder_api_request_duration_seconds",
				Help:    "API request duration in seconds by endpoint",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		requestsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "idbuilder_api_requests_in_flight",
				Help: "Number of API requests currently being served",
			},
		),
	}
}

// RecordRequest records a completed API request.
//
// endpoint is the route pattern (e.g. "/v1/id/{key}"), code is the
// service result code (0 for success).
func (m *APIMetrics) RecordRequest(endpoint string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight request gauge.
func (m *APIMetrics) RecordRequestStart() {
	if m == nil {
		return
	}
	m.requestsInFlight.Inc()
}

// RecordRequestEnd decrements the in-flight request gauge.
func (m *APIMetrics) RecordRequestEnd() {
	if m == nil {
		return
	}
	m.requestsInFlight.Dec()
}
