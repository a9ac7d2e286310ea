// File: internal/metrics/prometheus.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Poller metrics
	PollsTotal   *prometheus.CounterVec
	PollDuration *prometheus.HistogramVec
	TargetStatus *prometheus.GaugeVec

	// Engine metrics
	EvaluationsTotal    *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	AlertsOpenedTotal   prometheus.Counter
	AlertsResolvedTotal prometheus.Counter
	ActiveAlerts        prometheus.Gauge
	SuppressedEvents    prometheus.Counter

	// Delivery metrics
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec

	// Storage metrics
	DatabaseOperations *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics
	MemoryUsage    prometheus.Gauge
	GoroutineCount prometheus.Gauge
	Uptime         prometheus.Gauge
}

// NewMetrics creates and registers all application metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PollsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auspex_polls_total",
				Help: "Total number of SNMP polls by status",
			},
			[]string{"status"},
		),
		PollDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auspex_poll_duration_seconds",
				Help:    "SNMP poll round-trip duration",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"status"},
		),
		TargetStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "auspex_target_up",
				Help: "Current target availability (1 = up, 0 = down)",
			},
			[]string{"target"},
		),
		EvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auspex_evaluations_total",
				Help: "Total number of poll observation evaluations by result",
			},
			[]string{"result"},
		),
		EvaluationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auspex_evaluation_duration_seconds",
				Help:    "Alert evaluation duration per observation",
				Buckets: prometheus.DefBuckets,
			},
		),
		AlertsOpenedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auspex_alerts_opened_total",
				Help: "Total number of alerts opened",
			},
		),
		AlertsResolvedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auspex_alerts_resolved_total",
				Help: "Total number of alerts resolved",
			},
		),
		ActiveAlerts: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "auspex_active_alerts",
				Help: "Number of currently active alerts",
			},
		),
		SuppressedEvents: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auspex_suppressed_events_total",
				Help: "Total number of alert events withheld by suppression windows",
			},
		),
		DeliveriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auspex_deliveries_total",
				Help: "Total number of notification delivery attempts by channel type and outcome",
			},
			[]string{"channel_type", "outcome"},
		),
		DeliveryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auspex_delivery_duration_seconds",
				Help:    "Notification delivery attempt duration",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"channel_type"},
		),
		DatabaseOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auspex_database_operations_total",
				Help: "Total number of database operations by type and status",
			},
			[]string{"operation", "status"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auspex_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auspex_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "auspex_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),
		GoroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "auspex_goroutines",
				Help: "Current number of goroutines",
			},
		),
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "auspex_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),
	}
}

// RecordPoll records an SNMP poll outcome
func (m *Metrics) RecordPoll(status string, duration time.Duration) {
	m.PollsTotal.WithLabelValues(status).Inc()
	m.PollDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// UpdateTargetStatus sets the availability gauge for a target
func (m *Metrics) UpdateTargetStatus(target string, up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	m.TargetStatus.WithLabelValues(target).Set(value)
}

// RecordEvaluation records one poll observation evaluation
func (m *Metrics) RecordEvaluation(result string, duration time.Duration) {
	m.EvaluationsTotal.WithLabelValues(result).Inc()
	m.EvaluationDuration.Observe(duration.Seconds())
}

// RecordAlertOpened records an opened alert
func (m *Metrics) RecordAlertOpened() {
	m.AlertsOpenedTotal.Inc()
	m.ActiveAlerts.Inc()
}

// RecordAlertResolved records a resolved alert
func (m *Metrics) RecordAlertResolved() {
	m.AlertsResolvedTotal.Inc()
	m.ActiveAlerts.Dec()
}

// RecordSuppressed records an alert event withheld by a suppression window
func (m *Metrics) RecordSuppressed() {
	m.SuppressedEvents.Inc()
}

// RecordDelivery records one delivery attempt
func (m *Metrics) RecordDelivery(channelType, outcome string, duration time.Duration) {
	m.DeliveriesTotal.WithLabelValues(channelType, outcome).Inc()
	m.DeliveryDuration.WithLabelValues(channelType).Observe(duration.Seconds())
}

// RecordDatabaseOperation records a database operation
func (m *Metrics) RecordDatabaseOperation(operation, status string) {
	m.DatabaseOperations.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
