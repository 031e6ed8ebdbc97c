package services

import (
	"math"
	"time"

	"farm-advisory/internal/models"
)

const (
	magnusA = 17.27
	magnusB = 237.7

	// DefaultGDDBase is the base temperature (°C) for growing-degree-days.
	DefaultGDDBase = 10.0

	heatIndexThreshold = 27.0
	wetDayPrecipMM     = 1.0
	chillHoursPerDay   = 8
)

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// DewPoint uses the Magnus approximation. The result never exceeds t.
func DewPoint(t, rh float64) float64 {
	if rh <= 0 {
		rh = 1
	}
	rh = math.Min(rh, 100)

	alpha := (magnusA*t)/(magnusB+t) + math.Log(rh/100)
	dp := round(magnusB*alpha/(magnusA-alpha), 1)
	return math.Min(dp, t)
}

// HeatIndex applies the Rothfusz regression from 27 °C upward and returns t
// unchanged below that.
func HeatIndex(t, rh float64) float64 {
	if t < heatIndexThreshold {
		return t
	}
	rh = clamp(rh, 0, 100)

	f := t*9/5 + 32
	hi := -42.379 +
		2.04901523*f +
		10.14333127*rh -
		0.22475541*f*rh -
		0.00683783*f*f -
		0.05481717*rh*rh +
		0.00122874*f*f*rh +
		0.00085282*f*rh*rh -
		0.00000199*f*f*rh*rh

	c := math.Round((hi - 32) * 5 / 9)
	if math.IsNaN(c) || c < t {
		return t
	}
	return c
}

// Evapotranspiration is a Hargreaves style ET0 proxy in mm/day, not a
// Penman-Monteith model.
func Evapotranspiration(t, dailyRange, rh, wind float64) float64 {
	et0 := 0.0023 * (t + 17.8) * math.Sqrt(math.Abs(dailyRange)) * (rh / 100) * (wind*0.36 + 1)
	return round(math.Max(0, et0), 2)
}

func SoilTemperature(air, cloudiness float64) float64 {
	return round(air*0.9*(1-cloudiness/100*0.2)+2, 1)
}

func dayAverage(d models.ForecastDay) float64 {
	if d.TempAvg != 0 || (d.TempMin == 0 && d.TempMax == 0) {
		return d.TempAvg
	}
	return (d.TempMin + d.TempMax) / 2
}

// GrowingDegreeDays sums max(0, avg-base) over the forecast. A base <= 0
// falls back to DefaultGDDBase.
func GrowingDegreeDays(days []models.ForecastDay, base float64) float64 {
	if base <= 0 {
		base = DefaultGDDBase
	}
	var gdd float64
	for _, d := range days {
		gdd += math.Max(0, dayAverage(d)-base)
	}
	return round(gdd, 1)
}

func ChillHours(days []models.ForecastDay) int {
	hours := 0
	for _, d := range days {
		if d.TempMin >= 0 && d.TempMin <= 7 {
			hours += chillHoursPerDay
		}
	}
	return hours
}

func CountWetDays(days []models.ForecastDay) int {
	wet := 0
	for _, d := range days {
		if d.Precipitation > wetDayPrecipMM {
			wet++
		}
	}
	return wet
}

func PestRisk(avgTemp, avgHumidity float64) models.RiskLevel {
	switch {
	case avgTemp >= 25 && avgTemp <= 35 && avgHumidity > 70:
		return models.RiskHigh
	case avgTemp >= 20 && avgTemp <= 35 && avgHumidity > 50:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func DiseaseRisk(avgHumidity float64, wetDays int) models.RiskLevel {
	switch {
	case avgHumidity > 80 && wetDays >= 3:
		return models.RiskHigh
	case avgHumidity > 65 || wetDays >= 2:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func PlantingWindow(avgTemp, avgHumidity float64, wetDays int) models.WindowQuality {
	switch {
	case avgTemp >= 20 && avgTemp <= 30 && avgHumidity >= 50 && avgHumidity <= 80 && wetDays <= 2:
		return models.WindowExcellent
	case avgTemp >= 15 && avgTemp <= 32 && wetDays <= 3:
		return models.WindowGood
	case avgTemp >= 10 && avgTemp <= 35:
		return models.WindowFair
	default:
		return models.WindowPoor
	}
}

func HarvestReadiness(avgHumidity float64, wetDays int) models.WindowQuality {
	switch {
	case wetDays == 0 && avgHumidity < 60:
		return models.WindowExcellent
	case wetDays <= 1 && avgHumidity < 75:
		return models.WindowGood
	case wetDays <= 3:
		return models.WindowFair
	default:
		return models.WindowPoor
	}
}

// IrrigationNeed is ET0 minus the average daily rainfall of the window.
func IrrigationNeed(et0 float64, days []models.ForecastDay) float64 {
	if len(days) == 0 {
		return et0
	}
	var rain float64
	for _, d := range days {
		rain += d.Precipitation
	}
	return round(math.Max(0, et0-rain/float64(len(days))), 2)
}

// ComputeIndices derives every agronomic index from one observation and a
// forecast window. An empty forecast falls back to the observation alone.
func ComputeIndices(obs models.WeatherObservation, forecast []models.ForecastDay, now time.Time) models.AgronomicIndices {
	avgTemp, avgHumidity := obs.Temperature, obs.Humidity
	dailyRange := obs.TempMax - obs.TempMin
	if len(forecast) > 0 {
		var sumT, sumH float64
		for _, d := range forecast {
			sumT += dayAverage(d)
			sumH += d.Humidity
		}
		avgTemp = sumT / float64(len(forecast))
		avgHumidity = sumH / float64(len(forecast))
		dailyRange = forecast[0].TempMax - forecast[0].TempMin
	}

	wetDays := CountWetDays(forecast)
	et0 := Evapotranspiration(obs.Temperature, dailyRange, obs.Humidity, obs.WindSpeed)

	return models.AgronomicIndices{
		Location:           obs.Location,
		DewPoint:           DewPoint(obs.Temperature, obs.Humidity),
		HeatIndex:          HeatIndex(obs.Temperature, obs.Humidity),
		Evapotranspiration: et0,
		SoilTemperature:    SoilTemperature(obs.Temperature, obs.Cloudiness),
		GrowingDegreeDays:  GrowingDegreeDays(forecast, DefaultGDDBase),
		ChillHours:         ChillHours(forecast),
		PestRisk:           PestRisk(avgTemp, avgHumidity),
		DiseaseRisk:        DiseaseRisk(avgHumidity, wetDays),
		PlantingWindow:     PlantingWindow(avgTemp, avgHumidity, wetDays),
		HarvestReadiness:   HarvestReadiness(avgHumidity, wetDays),
		IrrigationNeed:     IrrigationNeed(et0, forecast),
		WetDays:            wetDays,
		AverageTemperature: round(avgTemp, 1),
		AverageHumidity:    round(avgHumidity, 1),
		ForecastDays:       len(forecast),
		Source:             obs.Source,
		ComputedAt:         now,
	}
}
