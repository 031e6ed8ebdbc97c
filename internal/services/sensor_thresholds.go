package services

import (
	"fmt"

	"farm-advisory/internal/models"
)

// Thresholds is the four tier table plus the optimal band of one sensor type.
type Thresholds struct {
	CriticalLow  float64
	WarningLow   float64
	WarningHigh  float64
	CriticalHigh float64
	OptimalMin   float64
	OptimalMax   float64
	Unit         string
}

func (t Thresholds) Midpoint() float64 {
	return (t.OptimalMin + t.OptimalMax) / 2
}

var SensorThresholds = map[models.SensorType]Thresholds{
	models.SoilMoisture:    {CriticalLow: 15, WarningLow: 25, WarningHigh: 70, CriticalHigh: 85, OptimalMin: 40, OptimalMax: 60, Unit: "%"},
	models.SoilTemperature: {CriticalLow: 5, WarningLow: 10, WarningHigh: 30, CriticalHigh: 35, OptimalMin: 15, OptimalMax: 25, Unit: "°C"},
	models.SoilPH:          {CriticalLow: 4.5, WarningLow: 5.5, WarningHigh: 7.5, CriticalHigh: 8.5, OptimalMin: 6.0, OptimalMax: 7.0, Unit: "pH"},
	models.AirTemperature:  {CriticalLow: 0, WarningLow: 5, WarningHigh: 35, CriticalHigh: 40, OptimalMin: 18, OptimalMax: 28, Unit: "°C"},
	models.Humidity:        {CriticalLow: 20, WarningLow: 30, WarningHigh: 80, CriticalHigh: 90, OptimalMin: 40, OptimalMax: 70, Unit: "%"},
	models.LightIntensity:  {CriticalLow: 1000, WarningLow: 5000, WarningHigh: 80000, CriticalHigh: 100000, OptimalMin: 20000, OptimalMax: 50000, Unit: "lux"},
}

// ClassifyThreshold returns the single tier v falls into. Checks run in the
// fixed order critical_low, warning_low, critical_high, warning_high so the
// lowest crossed tier wins.
func ClassifyThreshold(sensorType models.SensorType, v float64) models.ThresholdTier {
	t, ok := SensorThresholds[sensorType]
	if !ok {
		return models.TierNone
	}
	switch {
	case v < t.CriticalLow:
		return models.TierCriticalLow
	case v < t.WarningLow:
		return models.TierWarningLow
	case v > t.CriticalHigh:
		return models.TierCriticalHigh
	case v > t.WarningHigh:
		return models.TierWarningHigh
	default:
		return models.TierNone
	}
}

func tierAlertType(tier models.ThresholdTier) (models.AlertType, string) {
	switch tier {
	case models.TierCriticalLow, models.TierCriticalHigh:
		return models.AlertCritical, "high"
	default:
		return models.AlertWarning, "medium"
	}
}

var tierActions = map[models.SensorType]map[models.ThresholdTier]string{
	models.SoilMoisture: {
		models.TierCriticalLow:  "Immediate irrigation required",
		models.TierWarningLow:   "Schedule irrigation within 24 hours",
		models.TierCriticalHigh: "Stop irrigation and improve field drainage",
		models.TierWarningHigh:  "Reduce irrigation frequency",
	},
	models.SoilTemperature: {
		models.TierCriticalLow:  "Apply mulch or row covers to insulate the soil",
		models.TierWarningLow:   "Delay sowing until the soil warms up",
		models.TierCriticalHigh: "Irrigate and shade the beds to cool the soil",
		models.TierWarningHigh:  "Apply mulch to reduce soil heating",
	},
	models.SoilPH: {
		models.TierCriticalLow:  "Apply agricultural lime urgently",
		models.TierWarningLow:   "Apply lime to raise soil pH",
		models.TierCriticalHigh: "Apply gypsum or elemental sulfur urgently",
		models.TierWarningHigh:  "Add organic matter or sulfur to lower pH",
	},
	models.AirTemperature: {
		models.TierCriticalLow:  "Protect crops from frost immediately",
		models.TierWarningLow:   "Prepare frost protection for tonight",
		models.TierCriticalHigh: "Irrigate in the evening and provide shade immediately",
		models.TierWarningHigh:  "Increase irrigation and watch for heat stress",
	},
	models.Humidity: {
		models.TierCriticalLow:  "Increase irrigation to offset very dry air",
		models.TierWarningLow:   "Monitor crops for water stress",
		models.TierCriticalHigh: "Improve ventilation and apply preventive fungicide",
		models.TierWarningHigh:  "Scout for fungal disease",
	},
	models.LightIntensity: {
		models.TierCriticalLow:  "Check the sensor for obstruction or heavy shading",
		models.TierWarningLow:   "Consider pruning or supplemental lighting",
		models.TierCriticalHigh: "Install shade netting to prevent sun scald",
		models.TierWarningHigh:  "Monitor leaves for sun scald",
	},
}

func tierMessage(sensorType models.SensorType, tier models.ThresholdTier, value float64, unit string) string {
	var side string
	switch tier {
	case models.TierCriticalLow:
		side = "critically low"
	case models.TierWarningLow:
		side = "low"
	case models.TierCriticalHigh:
		side = "critically high"
	case models.TierWarningHigh:
		side = "high"
	}
	return fmt.Sprintf("%s is %s at %.1f%s", sensorLabel(sensorType), side, value, unit)
}

func sensorLabel(sensorType models.SensorType) string {
	switch sensorType {
	case models.SoilMoisture:
		return "Soil moisture"
	case models.SoilTemperature:
		return "Soil temperature"
	case models.SoilPH:
		return "Soil pH"
	case models.AirTemperature:
		return "Air temperature"
	case models.Humidity:
		return "Humidity"
	case models.LightIntensity:
		return "Light intensity"
	default:
		return string(sensorType)
	}
}

func categorize(v float64, cutoffs []float64, labels []string) string {
	for i, c := range cutoffs {
		if v < c {
			return labels[i]
		}
	}
	return labels[len(labels)-1]
}

// DeriveMetrics computes the sensor specific range lookups.
func DeriveMetrics(sensorType models.SensorType, v float64) models.DerivedMetrics {
	switch sensorType {
	case models.SoilMoisture:
		return models.DerivedMetrics{
			"waterStress":       categorize(v, []float64{25, 40}, []string{"high", "moderate", "none"}),
			"irrigationUrgency": categorize(v, []float64{15, 25, 40}, []string{"immediate", "within_24h", "within_3_days", "not_needed"}),
		}
	case models.SoilTemperature:
		return models.DerivedMetrics{
			"germination":  categorize(v, []float64{10, 15, 30, 35}, []string{"poor", "marginal", "optimal", "marginal", "poor"}),
			"rootActivity": categorize(v, []float64{10, 30}, []string{"low", "normal", "stressed"}),
		}
	case models.SoilPH:
		return models.DerivedMetrics{
			"phCategory":           categorize(v, []float64{5.5, 6.5, 7.5}, []string{"acidic", "slightly_acidic", "neutral", "alkaline"}),
			"nutrientAvailability": categorize(v, []float64{5.5, 6.0, 7.0, 7.5}, []string{"limited", "moderate", "optimal", "moderate", "limited"}),
		}
	case models.AirTemperature:
		return models.DerivedMetrics{
			"heatStress": categorize(v, []float64{30, 35}, []string{"low", "moderate", "high"}),
			"frostRisk":  categorize(v, []float64{2, 5}, []string{"high", "moderate", "low"}),
		}
	case models.Humidity:
		return models.DerivedMetrics{
			"diseasePressure":     categorize(v, []float64{65, 80}, []string{"low", "moderate", "high"}),
			"transpirationDemand": categorize(v, []float64{30, 60}, []string{"high", "moderate", "low"}),
		}
	case models.LightIntensity:
		return models.DerivedMetrics{
			"photosynthesis": categorize(v, []float64{5000, 20000, 50000}, []string{"low", "moderate", "optimal", "saturated"}),
		}
	default:
		return models.DerivedMetrics{}
	}
}
