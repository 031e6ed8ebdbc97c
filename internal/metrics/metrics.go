// Package metrics exposes the advisory service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AdvisoryMetrics contains Prometheus metrics for the advisory service.
// A nil *AdvisoryMetrics is valid and records nothing.
type AdvisoryMetrics struct {
	registry *prometheus.Registry

	sensorReadingsTotal     *prometheus.CounterVec
	sensorAlertsTotal       *prometheus.CounterVec
	providerFallbacksTotal  *prometheus.CounterVec
	notificationDeliveries  *prometheus.CounterVec
	notificationsSuppressed *prometheus.CounterVec
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
}

// NewAdvisoryMetrics creates and registers the advisory metrics
func NewAdvisoryMetrics(registry *prometheus.Registry) (*AdvisoryMetrics, error) {
	m := &AdvisoryMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AdvisoryMetrics) initMetrics() {
	m.sensorReadingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_sensor_readings_total",
			Help: "Total number of ingested sensor readings",
		},
		[]string{"sensor_type"},
	)

	m.sensorAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_sensor_alerts_total",
			Help: "Total number of alerts raised on ingest",
		},
		[]string{"alert_type"}, // critical, warning, maintenance
	)

	m.providerFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_provider_fallbacks_total",
			Help: "Total number of upstream failures replaced by synthetic or reference data",
		},
		[]string{"provider"},
	)

	m.notificationDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_notification_deliveries_total",
			Help: "Per channel notification delivery outcomes",
		},
		[]string{"channel", "status"},
	)

	m.notificationsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_notifications_suppressed_total",
			Help: "Scheduled notifications held back by subscriber preferences",
		},
		[]string{"reason"}, // quiet_hours, frequency, inactive
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "advisory_http_request_duration_seconds",
			Help: "Time taken to serve HTTP requests",
			// 5ms to ~10s
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route"},
	)
}

// Describe implements the Collector interface
func (m *AdvisoryMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sensorReadingsTotal.Describe(ch)
	m.sensorAlertsTotal.Describe(ch)
	m.providerFallbacksTotal.Describe(ch)
	m.notificationDeliveries.Describe(ch)
	m.notificationsSuppressed.Describe(ch)
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *AdvisoryMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sensorReadingsTotal.Collect(ch)
	m.sensorAlertsTotal.Collect(ch)
	m.providerFallbacksTotal.Collect(ch)
	m.notificationDeliveries.Collect(ch)
	m.notificationsSuppressed.Collect(ch)
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
}

// Registry returns the registry the collectors were registered with.
func (m *AdvisoryMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *AdvisoryMetrics) RecordSensorReading(sensorType string) {
	if m == nil {
		return
	}
	m.sensorReadingsTotal.WithLabelValues(sensorType).Inc()
}

func (m *AdvisoryMetrics) RecordSensorAlert(alertType string) {
	if m == nil {
		return
	}
	m.sensorAlertsTotal.WithLabelValues(alertType).Inc()
}

func (m *AdvisoryMetrics) RecordProviderFallback(provider string) {
	if m == nil {
		return
	}
	m.providerFallbacksTotal.WithLabelValues(provider).Inc()
}

func (m *AdvisoryMetrics) RecordNotificationDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.notificationDeliveries.WithLabelValues(channel, status).Inc()
}

func (m *AdvisoryMetrics) RecordNotificationSuppressed(reason string) {
	if m == nil {
		return
	}
	m.notificationsSuppressed.WithLabelValues(reason).Inc()
}

func (m *AdvisoryMetrics) RecordHTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
