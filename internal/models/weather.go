package models

import (
	"fmt"
	"time"
)

// DataSource tells the caller whether a payload came from a live integration
// or from the synthetic fallback.
type DataSource string

const (
	SourceOpenWeather DataSource = "openweather"
	SourceSynthetic   DataSource = "synthetic"
	SourceGemini      DataSource = "gemini"
	SourceReference   DataSource = "reference"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherObservation is an immutable snapshot produced per request.
type WeatherObservation struct {
	Location      string      `json:"location"`
	Temperature   float64     `json:"temperature"`
	TempMin       float64     `json:"tempMin"`
	TempMax       float64     `json:"tempMax"`
	FeelsLike     float64     `json:"feelsLike"`
	Humidity      float64     `json:"humidity"`
	Pressure      float64     `json:"pressure"`
	WindSpeed     float64     `json:"windSpeed"`
	WindDirection float64     `json:"windDirection"`
	Cloudiness    float64     `json:"cloudiness"`
	Description   string      `json:"description"`
	Timestamp     time.Time   `json:"timestamp"`
	Coordinates   Coordinates `json:"coordinates"`
	Source        DataSource  `json:"source"`
}

type ForecastDay struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	TempMin       float64 `json:"tempMin"`
	TempMax       float64 `json:"tempMax"`
	TempAvg       float64 `json:"tempAvg"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"` // mm
	WindSpeed     float64 `json:"windSpeed"`
	Description   string  `json:"description"`
}

type Forecast struct {
	Location string        `json:"location"`
	Days     []ForecastDay `json:"days"`
	Source   DataSource    `json:"source"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

type WindowQuality string

const (
	WindowPoor      WindowQuality = "Poor"
	WindowFair      WindowQuality = "Fair"
	WindowGood      WindowQuality = "Good"
	WindowExcellent WindowQuality = "Excellent"
)

// AgronomicIndices are derived from one observation plus a forecast window.
type AgronomicIndices struct {
	Location           string        `json:"location"`
	DewPoint           float64       `json:"dewPoint"`
	HeatIndex          float64       `json:"heatIndex"`
	Evapotranspiration float64       `json:"evapotranspiration"`
	SoilTemperature    float64       `json:"soilTemperature"`
	GrowingDegreeDays  float64       `json:"growingDegreeDays"`
	ChillHours         int           `json:"chillHours"`
	PestRisk           RiskLevel     `json:"pestRisk"`
	DiseaseRisk        RiskLevel     `json:"diseaseRisk"`
	PlantingWindow     WindowQuality `json:"plantingWindow"`
	HarvestReadiness   WindowQuality `json:"harvestReadiness"`
	IrrigationNeed     float64       `json:"irrigationNeed"` // mm/day
	WetDays            int           `json:"wetDays"`
	AverageTemperature float64       `json:"averageTemperature"`
	AverageHumidity    float64       `json:"averageHumidity"`
	ForecastDays       int           `json:"forecastDays"`
	Source             DataSource    `json:"source"`
	ComputedAt         time.Time     `json:"computedAt"`
}

// FormatCoordinates renders a "lat,lon" location string.
func FormatCoordinates(c Coordinates) string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}
