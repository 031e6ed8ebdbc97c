package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordNotificationDelivery(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewAdvisoryMetrics(registry)
	require.NoError(t, err)

	m.RecordNotificationDelivery("sms", "failed")
	m.RecordNotificationDelivery("sms", "failed")
	m.RecordNotificationDelivery("push", "delivered")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.notificationDeliveries.WithLabelValues("sms", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notificationDeliveries.WithLabelValues("push", "delivered")))
}

func TestRecordSensorReadingAndAlert(t *testing.T) {
	m, err := NewAdvisoryMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordSensorReading("soil_moisture")
	m.RecordSensorAlert("critical")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.sensorReadingsTotal.WithLabelValues("soil_moisture")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sensorAlertsTotal.WithLabelValues("critical")))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *AdvisoryMetrics
	assert.NotPanics(t, func() {
		m.RecordSensorReading("humidity")
		m.RecordProviderFallback("openweather")
		m.RecordHTTPRequest("GET", "/checkhealth", "200", 0.01)
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewAdvisoryMetrics(registry)
	require.NoError(t, err)

	_, err = NewAdvisoryMetrics(registry)
	assert.Error(t, err)
}
