package models

import "time"

type SensorType string

const (
	SoilMoisture    SensorType = "soil_moisture"
	SoilTemperature SensorType = "soil_temperature"
	SoilPH          SensorType = "soil_ph"
	AirTemperature  SensorType = "air_temperature"
	Humidity        SensorType = "humidity"
	LightIntensity  SensorType = "light_intensity"
)

// SensorTypes lists every supported type in a stable order.
var SensorTypes = []SensorType{
	SoilMoisture,
	SoilTemperature,
	SoilPH,
	AirTemperature,
	Humidity,
	LightIntensity,
}

// SensorReadingRequest is the raw ingest payload before normalization.
type SensorReadingRequest struct {
	FarmID       string     `json:"farmId"`
	SensorID     string     `json:"sensorId"`
	SensorType   string     `json:"sensorType"`
	Value        *float64   `json:"value"`
	Unit         string     `json:"unit,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	BatteryLevel *float64   `json:"batteryLevel,omitempty"`
}

type SensorReading struct {
	ID           string     `json:"id"`
	FarmID       string     `json:"farmId"`
	SensorID     string     `json:"sensorId"`
	SensorType   SensorType `json:"sensorType"`
	Value        float64    `json:"value"`
	Unit         string     `json:"unit"`
	Timestamp    time.Time  `json:"timestamp"`
	BatteryLevel *float64   `json:"batteryLevel,omitempty"`
}

type AggregateSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// DailyAggregate is the per (farm, sensorType, date) rollup.
type DailyAggregate struct {
	FarmID     string            `json:"farmId"`
	SensorType SensorType        `json:"sensorType"`
	Date       string            `json:"date"` // YYYY-MM-DD
	Count      int               `json:"count"`
	Sum        float64           `json:"sum"`
	Min        float64           `json:"min"`
	Max        float64           `json:"max"`
	Average    float64           `json:"average"`
	Samples    []AggregateSample `json:"samples"`
}

// Add folds one reading into the aggregate.
func (a *DailyAggregate) Add(ts time.Time, value float64) {
	if a.Count == 0 {
		a.Min = value
		a.Max = value
	} else {
		a.Min = min(a.Min, value)
		a.Max = max(a.Max, value)
	}
	a.Count++
	a.Sum += value
	a.Average = a.Sum / float64(a.Count)
	a.Samples = append(a.Samples, AggregateSample{Timestamp: ts, Value: value})
}

type AlertType string

const (
	AlertCritical    AlertType = "critical"
	AlertWarning     AlertType = "warning"
	AlertMaintenance AlertType = "maintenance"
)

// ThresholdTier is the single tier a value falls into. At most one tier fires
// per reading.
type ThresholdTier string

const (
	TierNone         ThresholdTier = "none"
	TierCriticalLow  ThresholdTier = "critical_low"
	TierWarningLow   ThresholdTier = "warning_low"
	TierCriticalHigh ThresholdTier = "critical_high"
	TierWarningHigh  ThresholdTier = "warning_high"
)

type Alert struct {
	Type       AlertType     `json:"type"`
	Severity   string        `json:"severity"`
	Tier       ThresholdTier `json:"tier,omitempty"`
	SensorID   string        `json:"sensorId"`
	SensorType SensorType    `json:"sensorType"`
	Value      float64       `json:"value"`
	Message    string        `json:"message"`
	Action     string        `json:"action"`
	Timestamp  time.Time     `json:"timestamp"`
}

// DerivedMetrics are sensor specific range lookups, keyed by metric name.
type DerivedMetrics map[string]string

type IngestResult struct {
	Reading         SensorReading  `json:"reading"`
	Alerts          []Alert        `json:"alerts"`
	DerivedMetrics  DerivedMetrics `json:"derivedMetrics"`
	Recommendations []string       `json:"recommendations"`
}

type SensorStatus string

const (
	SensorOnline  SensorStatus = "online"
	SensorDelayed SensorStatus = "delayed"
	SensorOffline SensorStatus = "offline"
)

type SensorSnapshot struct {
	Reading SensorReading `json:"reading"`
	Status  SensorStatus  `json:"status"`
	Tier    ThresholdTier `json:"tier"`
}

type LatestSensorData struct {
	FarmID       string                        `json:"farmId"`
	Sensors      map[SensorType]SensorSnapshot `json:"sensors"`
	HealthScore  float64                       `json:"healthScore"`
	ActiveAlerts int                           `json:"activeAlerts"`
	LastUpdated  *time.Time                    `json:"lastUpdated,omitempty"`
}

type SensorHistory struct {
	FarmID     string           `json:"farmId"`
	Start      string           `json:"start"`
	End        string           `json:"end"`
	Aggregates []DailyAggregate `json:"aggregates"`
}
