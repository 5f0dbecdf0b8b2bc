package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP and planning collectors.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec
	activeRequests  prometheus.Gauge
	planRequests    *prometheus.CounterVec
	planRetries     prometheus.Counter
	planDuration    prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_requests",
				Help: "Number of active HTTP requests",
			},
		),
		planRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutriplan_plan_requests_total",
				Help: "Meal plan requests by outcome",
			},
			[]string{"outcome"},
		),
		planRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nutriplan_plan_retries_total",
				Help: "Meal plans that needed a continuation call",
			},
		),
		planDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nutriplan_plan_duration_seconds",
				Help:    "End-to-end meal plan generation time",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 240},
			},
		),
	}
	reg.MustRegister(
		m.requestDuration,
		m.requestCount,
		m.activeRequests,
		m.planRequests,
		m.planRetries,
		m.planDuration,
	)
	return m
}

// RecordRequest records request metrics
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
	m.requestCount.WithLabelValues(method, path, statusStr).Inc()
}

func (m *Metrics) IncActive() { m.activeRequests.Inc() }
func (m *Metrics) DecActive() { m.activeRequests.Dec() }

// ObservePlan records the outcome of one planning request.
func (m *Metrics) ObservePlan(outcome string, retried bool, duration time.Duration) {
	m.planRequests.WithLabelValues(outcome).Inc()
	if retried {
		m.planRetries.Inc()
	}
	m.planDuration.Observe(duration.Seconds())
}
