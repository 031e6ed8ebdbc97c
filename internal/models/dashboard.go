package models

import "time"

// FarmDashboard aggregates everything the farm overview screen shows. A branch
// that could not be loaded is left empty and named in Warnings.
type FarmDashboard struct {
	Farm            *FarmProfile         `json:"farm"`
	Weather         *WeatherObservation  `json:"weather,omitempty"`
	Indices         *AgronomicIndices    `json:"indices,omitempty"`
	Recommendations []CropRecommendation `json:"recommendations"`
	Sensors         *LatestSensorData    `json:"sensors,omitempty"`
	Prices          []MarketPriceSample  `json:"prices"`
	Warnings        []string             `json:"warnings,omitempty"`
	GeneratedAt     time.Time            `json:"generatedAt"`
}
