package models

// CropProfileInput is the environment a recommendation is scored against.
// Nil fields are filled from current weather when possible.
type CropProfileInput struct {
	Location       string   `json:"location"`
	SoilType       string   `json:"soilType"`
	SoilPH         *float64 `json:"soilPh,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	Rainfall       *float64 `json:"rainfall,omitempty"` // mm per season
	Season         string   `json:"season,omitempty"`   // kharif | rabi | zaid
	FarmSize       float64  `json:"farmSize,omitempty"` // hectares
	IrrigationType string   `json:"irrigationType,omitempty"`
}

type CropRecommendation struct {
	Crop           string   `json:"crop"`
	Score          float64  `json:"score"`
	Suitability    string   `json:"suitability"`
	Reasons        []string `json:"reasons"`
	ExpectedYield  float64  `json:"expectedYield"` // quintal/ha
	GrowthDuration int      `json:"growthDuration"`
	WaterNeed      string   `json:"waterNeed"`
}

type CropRecommendations struct {
	Inputs          CropProfileInput     `json:"inputs"`
	Recommendations []CropRecommendation `json:"recommendations"`
	WeatherSource   DataSource           `json:"weatherSource,omitempty"`
}

type CropImageRequest struct {
	ImageData string `json:"imageData"` // base64, optionally a data: URL
	CropType  string `json:"cropType"`
}

type CropDiagnosis struct {
	CropType   string     `json:"cropType"`
	Disease    string     `json:"disease"`
	Confidence float64    `json:"confidence"`
	Severity   string     `json:"severity"`
	Symptoms   []string   `json:"symptoms"`
	Treatment  []string   `json:"treatment"`
	Prevention []string   `json:"prevention"`
	ImageURL   string     `json:"imageUrl,omitempty"`
	Source     DataSource `json:"source"`
}

type YieldPredictionInput struct {
	Crop           string   `json:"crop"`
	Area           float64  `json:"area"` // hectares
	SoilPH         *float64 `json:"soilPh,omitempty"`
	Rainfall       *float64 `json:"rainfall,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	IrrigationType string   `json:"irrigationType,omitempty"`
	FertilizerUsed bool     `json:"fertilizerUsed"`
}

type YieldFactors struct {
	Rainfall    float64 `json:"rainfall"`
	Temperature float64 `json:"temperature"`
	SoilPH      float64 `json:"soilPh"`
	Irrigation  float64 `json:"irrigation"`
	Fertilizer  float64 `json:"fertilizer"`
}

type YieldPrediction struct {
	Crop             string       `json:"crop"`
	Area             float64      `json:"area"`
	YieldPerHectare  float64      `json:"yieldPerHectare"`
	TotalYield       float64      `json:"totalYield"`
	Unit             string       `json:"unit"`
	Confidence       float64      `json:"confidence"`
	Factors          YieldFactors `json:"factors"`
	Recommendations  []string     `json:"recommendations"`
	EstimatedRevenue float64      `json:"estimatedRevenue,omitempty"`
}
