package services

import (
	"math"
	"testing"
	"time"

	"farm-advisory/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeatIndex_BelowThresholdIsIdentity(t *testing.T) {
	for _, temp := range []float64{-5, 0, 10.5, 20, 26.9} {
		for _, rh := range []float64{0, 35, 80, 100} {
			assert.Equal(t, temp, HeatIndex(temp, rh), "t=%v rh=%v", temp, rh)
		}
	}
}

func TestHeatIndex_NeverBelowTemperature(t *testing.T) {
	for temp := 27.0; temp <= 50; temp += 0.5 {
		for rh := 0.0; rh <= 100; rh += 5 {
			hi := HeatIndex(temp, rh)
			require.False(t, math.IsNaN(hi) || math.IsInf(hi, 0), "t=%v rh=%v", temp, rh)
			assert.GreaterOrEqual(t, hi, temp, "t=%v rh=%v", temp, rh)
		}
	}
}

func TestHeatIndex_KnownValue(t *testing.T) {
	// 32 °C at 70% RH is roughly 40-41 °C on the NWS chart.
	assert.Equal(t, 40.0, HeatIndex(32, 70))
}

func TestDewPoint_NeverAboveTemperature(t *testing.T) {
	for temp := -20.0; temp <= 50; temp += 2.5 {
		for rh := 0.0; rh <= 100; rh += 10 {
			assert.LessOrEqual(t, DewPoint(temp, rh), temp, "t=%v rh=%v", temp, rh)
		}
	}
}

func TestDewPoint_KnownValue(t *testing.T) {
	assert.InDelta(t, 13.8, DewPoint(25, 50), 0.05)
	assert.Equal(t, 20.0, DewPoint(20, 100))
}

func TestGrowingDegreeDays_MonotonicAndNonNegative(t *testing.T) {
	var days []models.ForecastDay
	prev := 0.0
	for i, avg := range []float64{5, 12, 18, 9, 25, 30, 11} {
		days = append(days, models.ForecastDay{TempAvg: avg})
		gdd := GrowingDegreeDays(days, DefaultGDDBase)
		assert.GreaterOrEqual(t, gdd, 0.0)
		assert.GreaterOrEqual(t, gdd, prev, "day %d", i)
		prev = gdd
	}
	assert.Equal(t, 2.0+8+15+20+1, prev)
}

func TestGrowingDegreeDays_DerivesAverageFromMinMax(t *testing.T) {
	days := []models.ForecastDay{{TempMin: 14, TempMax: 26}}
	assert.Equal(t, 10.0, GrowingDegreeDays(days, 0))
}

func TestChillHoursAndWetDays(t *testing.T) {
	days := []models.ForecastDay{
		{TempMin: -1, Precipitation: 0},
		{TempMin: 0, Precipitation: 1},
		{TempMin: 7, Precipitation: 1.5},
		{TempMin: 8, Precipitation: 12},
	}
	assert.Equal(t, 16, ChillHours(days))
	assert.Equal(t, 2, CountWetDays(days))
}

func TestEvapotranspirationAndSoilTemperature(t *testing.T) {
	assert.Equal(t, 0.0, Evapotranspiration(-40, 10, 50, 2))
	et0 := Evapotranspiration(30, 9, 60, 3)
	assert.InDelta(t, 0.0023*47.8*3*0.6*2.08, et0, 0.01)
	assert.Equal(t, 29.0, SoilTemperature(30, 0))
	assert.Equal(t, 26.3, SoilTemperature(30, 50))
}

func TestRiskClassifiers(t *testing.T) {
	assert.Equal(t, models.RiskHigh, PestRisk(28, 75))
	assert.Equal(t, models.RiskMedium, PestRisk(22, 60))
	assert.Equal(t, models.RiskLow, PestRisk(15, 90))

	assert.Equal(t, models.RiskHigh, DiseaseRisk(85, 3))
	assert.Equal(t, models.RiskMedium, DiseaseRisk(70, 0))
	assert.Equal(t, models.RiskMedium, DiseaseRisk(40, 2))
	assert.Equal(t, models.RiskLow, DiseaseRisk(40, 1))

	assert.Equal(t, models.WindowExcellent, PlantingWindow(25, 60, 1))
	assert.Equal(t, models.WindowGood, PlantingWindow(31, 40, 3))
	assert.Equal(t, models.WindowFair, PlantingWindow(12, 40, 5))
	assert.Equal(t, models.WindowPoor, PlantingWindow(40, 40, 0))

	assert.Equal(t, models.WindowExcellent, HarvestReadiness(50, 0))
	assert.Equal(t, models.WindowGood, HarvestReadiness(70, 1))
	assert.Equal(t, models.WindowFair, HarvestReadiness(90, 3))
	assert.Equal(t, models.WindowPoor, HarvestReadiness(90, 4))
}

func TestComputeIndices(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	obs := models.WeatherObservation{
		Location:    "Pune",
		Temperature: 30,
		Humidity:    60,
		WindSpeed:   3,
		Cloudiness:  50,
		Source:      models.SourceSynthetic,
	}
	forecast := []models.ForecastDay{
		{TempMin: 22, TempMax: 31, TempAvg: 26, Humidity: 60, Precipitation: 0},
		{TempMin: 21, TempMax: 30, TempAvg: 25, Humidity: 70, Precipitation: 4},
	}

	idx := ComputeIndices(obs, forecast, now)

	assert.Equal(t, "Pune", idx.Location)
	assert.Equal(t, 31.0, idx.GrowingDegreeDays)
	assert.Equal(t, 1, idx.WetDays)
	assert.Equal(t, 25.5, idx.AverageTemperature)
	assert.Equal(t, 65.0, idx.AverageHumidity)
	assert.Equal(t, models.RiskMedium, idx.PestRisk)
	assert.Equal(t, models.WindowExcellent, idx.PlantingWindow)
	assert.Equal(t, Evapotranspiration(30, 9, 60, 3), idx.Evapotranspiration)
	assert.Equal(t, 0.0, idx.IrrigationNeed)
	assert.Equal(t, 2, idx.ForecastDays)
	assert.Equal(t, models.SourceSynthetic, idx.Source)
	assert.Equal(t, now, idx.ComputedAt)
}
