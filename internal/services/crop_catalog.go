package services

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"farm-advisory/internal/models"
)

type valueRange struct {
	Min float64
	Max float64
}

func (r valueRange) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// distance is how far v lies outside the range, 0 inside.
func (r valueRange) distance(v float64) float64 {
	switch {
	case v < r.Min:
		return r.Min - v
	case v > r.Max:
		return v - r.Max
	default:
		return 0
	}
}

type cropProfile struct {
	Name           string
	Temperature    valueRange // °C
	Rainfall       valueRange // mm per season
	SoilPH         valueRange
	Soils          []string
	Seasons        []string
	HumidityMax    float64
	BaseYield      float64 // quintal/ha
	GrowthDuration int     // days
	WaterNeed      string
}

var cropCatalog = []cropProfile{
	{Name: "rice", Temperature: valueRange{20, 35}, Rainfall: valueRange{1000, 2000}, SoilPH: valueRange{5.5, 7.0},
		Soils: []string{"clay", "loam", "alluvial"}, Seasons: []string{"kharif"}, HumidityMax: 95, BaseYield: 40, GrowthDuration: 120, WaterNeed: "high"},
	{Name: "wheat", Temperature: valueRange{12, 25}, Rainfall: valueRange{300, 750}, SoilPH: valueRange{6.0, 7.5},
		Soils: []string{"loam", "clay", "alluvial"}, Seasons: []string{"rabi"}, HumidityMax: 70, BaseYield: 35, GrowthDuration: 125, WaterNeed: "medium"},
	{Name: "maize", Temperature: valueRange{18, 32}, Rainfall: valueRange{500, 1000}, SoilPH: valueRange{5.5, 7.5},
		Soils: []string{"loam", "sandy", "alluvial"}, Seasons: []string{"kharif", "zaid"}, HumidityMax: 80, BaseYield: 30, GrowthDuration: 100, WaterNeed: "medium"},
	{Name: "cotton", Temperature: valueRange{21, 35}, Rainfall: valueRange{500, 1000}, SoilPH: valueRange{6.0, 8.0},
		Soils: []string{"black", "alluvial", "loam"}, Seasons: []string{"kharif"}, HumidityMax: 75, BaseYield: 18, GrowthDuration: 170, WaterNeed: "medium"},
	{Name: "sugarcane", Temperature: valueRange{20, 35}, Rainfall: valueRange{1500, 2500}, SoilPH: valueRange{6.0, 7.5},
		Soils: []string{"loam", "alluvial", "black"}, Seasons: []string{"kharif", "zaid"}, HumidityMax: 90, BaseYield: 700, GrowthDuration: 330, WaterNeed: "high"},
	{Name: "soybean", Temperature: valueRange{20, 30}, Rainfall: valueRange{600, 1000}, SoilPH: valueRange{6.0, 7.5},
		Soils: []string{"loam", "black"}, Seasons: []string{"kharif"}, HumidityMax: 80, BaseYield: 12, GrowthDuration: 100, WaterNeed: "medium"},
	{Name: "tomato", Temperature: valueRange{18, 30}, Rainfall: valueRange{400, 800}, SoilPH: valueRange{6.0, 7.0},
		Soils: []string{"loam", "sandy", "red"}, Seasons: []string{"rabi", "zaid"}, HumidityMax: 70, BaseYield: 250, GrowthDuration: 90, WaterNeed: "medium"},
	{Name: "onion", Temperature: valueRange{13, 28}, Rainfall: valueRange{350, 700}, SoilPH: valueRange{6.0, 7.5},
		Soils: []string{"loam", "alluvial", "red"}, Seasons: []string{"rabi"}, HumidityMax: 70, BaseYield: 200, GrowthDuration: 130, WaterNeed: "medium"},
	{Name: "potato", Temperature: valueRange{15, 25}, Rainfall: valueRange{300, 600}, SoilPH: valueRange{5.0, 6.5},
		Soils: []string{"sandy", "loam"}, Seasons: []string{"rabi"}, HumidityMax: 80, BaseYield: 220, GrowthDuration: 100, WaterNeed: "medium"},
	{Name: "chickpea", Temperature: valueRange{15, 28}, Rainfall: valueRange{250, 500}, SoilPH: valueRange{6.0, 8.0},
		Soils: []string{"loam", "black", "sandy"}, Seasons: []string{"rabi"}, HumidityMax: 65, BaseYield: 10, GrowthDuration: 110, WaterNeed: "low"},
}

func findCrop(name string) (cropProfile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range cropCatalog {
		if c.Name == name {
			return c, true
		}
	}
	return cropProfile{}, false
}

const (
	weightTemperature = 30.0
	weightRainfall    = 25.0
	weightSoilPH      = 20.0
	weightSoil        = 15.0
	weightSeason      = 10.0
	humidityPenalty   = 5.0
)

// rangeScore gives the full weight inside r and decays linearly to 0 at one
// range width outside it.
func rangeScore(v float64, r valueRange, weight float64) float64 {
	width := r.Max - r.Min
	if width <= 0 {
		width = 1
	}
	return weight * math.Max(0, 1-r.distance(v)/width)
}

func isIrrigated(irrigationType string) bool {
	switch strings.ToLower(strings.TrimSpace(irrigationType)) {
	case "", "none", "rainfed":
		return false
	default:
		return true
	}
}

func suitabilityLabel(score float64) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}

// ScoreCrop rates one crop against the profile on a 0-100 scale. Unknown
// inputs earn half of their weight.
func ScoreCrop(crop cropProfile, in models.CropProfileInput) models.CropRecommendation {
	var score float64
	reasons := []string{}

	if in.Temperature != nil {
		score += rangeScore(*in.Temperature, crop.Temperature, weightTemperature)
		if crop.Temperature.contains(*in.Temperature) {
			reasons = append(reasons, fmt.Sprintf("Temperature %.1f°C is within the ideal %.0f-%.0f°C", *in.Temperature, crop.Temperature.Min, crop.Temperature.Max))
		} else {
			reasons = append(reasons, fmt.Sprintf("Temperature %.1f°C is outside the ideal %.0f-%.0f°C", *in.Temperature, crop.Temperature.Min, crop.Temperature.Max))
		}
	} else {
		score += weightTemperature / 2
	}

	switch {
	case in.Rainfall != nil && crop.Rainfall.contains(*in.Rainfall):
		score += weightRainfall
		reasons = append(reasons, "Seasonal rainfall matches crop water needs")
	case in.Rainfall != nil && *in.Rainfall < crop.Rainfall.Min && isIrrigated(in.IrrigationType):
		score += weightRainfall
		reasons = append(reasons, "Irrigation can cover the rainfall shortfall")
	case in.Rainfall != nil:
		score += rangeScore(*in.Rainfall, crop.Rainfall, weightRainfall)
		reasons = append(reasons, fmt.Sprintf("Rainfall %.0f mm is outside the preferred %.0f-%.0f mm", *in.Rainfall, crop.Rainfall.Min, crop.Rainfall.Max))
	case isIrrigated(in.IrrigationType):
		score += weightRainfall
	default:
		score += weightRainfall / 2
	}

	if in.SoilPH != nil {
		score += rangeScore(*in.SoilPH, crop.SoilPH, weightSoilPH)
		if crop.SoilPH.contains(*in.SoilPH) {
			reasons = append(reasons, fmt.Sprintf("Soil pH %.1f suits this crop", *in.SoilPH))
		}
	} else {
		score += weightSoilPH / 2
	}

	soil := strings.ToLower(in.SoilType)
	switch {
	case soil == "":
		score += weightSoil / 2
	case slices.ContainsFunc(crop.Soils, func(s string) bool { return strings.Contains(soil, s) }):
		score += weightSoil
		reasons = append(reasons, fmt.Sprintf("Grows well in %s soil", in.SoilType))
	}

	season := strings.ToLower(strings.TrimSpace(in.Season))
	switch {
	case season == "":
		score += weightSeason / 2
	case slices.Contains(crop.Seasons, season):
		score += weightSeason
		reasons = append(reasons, fmt.Sprintf("Suited to the %s season", season))
	}

	if in.Humidity != nil && *in.Humidity > crop.HumidityMax {
		score -= humidityPenalty
		reasons = append(reasons, "High humidity raises disease pressure")
	}

	score = round(clamp(score, 0, 100), 1)
	return models.CropRecommendation{
		Crop:           crop.Name,
		Score:          score,
		Suitability:    suitabilityLabel(score),
		Reasons:        reasons,
		ExpectedYield:  crop.BaseYield,
		GrowthDuration: crop.GrowthDuration,
		WaterNeed:      crop.WaterNeed,
	}
}

// RankCrops scores the whole catalog and keeps the best limit entries,
// highest score first.
func RankCrops(in models.CropProfileInput, limit int) []models.CropRecommendation {
	recs := make([]models.CropRecommendation, 0, len(cropCatalog))
	for _, crop := range cropCatalog {
		recs = append(recs, ScoreCrop(crop, in))
	}
	slices.SortStableFunc(recs, func(a, b models.CropRecommendation) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.Crop, b.Crop)
		}
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// rangeFactor is 1 inside r and falls by step per unit outside, never below floor.
func rangeFactor(v *float64, r valueRange, step, floor float64) float64 {
	if v == nil {
		return 1
	}
	return round(math.Max(floor, 1-step*r.distance(*v)), 3)
}

var irrigationFactors = map[string]float64{
	"drip":      1.15,
	"sprinkler": 1.10,
	"canal":     1.05,
	"flood":     1.05,
	"rainfed":   0.95,
}

// YieldFactorsFor returns the multipliers applied to the base yield.
func YieldFactorsFor(crop cropProfile, in models.YieldPredictionInput) models.YieldFactors {
	rainfall := 1.0
	if in.Rainfall != nil {
		width := crop.Rainfall.Max - crop.Rainfall.Min
		rainfall = round(math.Max(0.5, 1-0.5*crop.Rainfall.distance(*in.Rainfall)/width), 3)
		if *in.Rainfall < crop.Rainfall.Min && isIrrigated(in.IrrigationType) {
			rainfall = 1
		}
	}

	irrigation := 1.0
	if f, ok := irrigationFactors[strings.ToLower(strings.TrimSpace(in.IrrigationType))]; ok {
		irrigation = f
	}
	fertilizer := 1.0
	if in.FertilizerUsed {
		fertilizer = 1.2
	}

	return models.YieldFactors{
		Rainfall:    rainfall,
		Temperature: rangeFactor(in.Temperature, crop.Temperature, 0.05, 0.5),
		SoilPH:      rangeFactor(in.SoilPH, crop.SoilPH, 0.1, 0.6),
		Irrigation:  irrigation,
		Fertilizer:  fertilizer,
	}
}
