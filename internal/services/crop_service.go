package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"time"

	"farm-advisory/internal/ai/gemini"
	"farm-advisory/internal/database/minio"
	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"

	"github.com/google/uuid"
)

const (
	maxRecommendations = 5
	imageURLExpiry     = 24 * time.Hour
	yieldUnit          = "quintal"
)

// ImageStore persists uploaded crop photos. *minio.MinioClient satisfies it.
type ImageStore interface {
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error
	GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error)
}

// VisionModel diagnoses a single image. *gemini.GeminiClientSelector satisfies it.
type VisionModel interface {
	AnalyzeImage(ctx context.Context, prompt string, image []byte) (map[string]any, error)
}

type ICropService interface {
	GetCropRecommendations(ctx context.Context, profile models.CropProfileInput) (*models.CropRecommendations, error)
	AnalyzeCropImage(ctx context.Context, req models.CropImageRequest) (*models.CropDiagnosis, error)
	PredictYield(ctx context.Context, input models.YieldPredictionInput) (*models.YieldPrediction, error)
	VisionMode() models.DataSource
}

type CropService struct {
	weather IWeatherService
	images  ImageStore
	vision  VisionModel
	metrics *metrics.AdvisoryMetrics
}

// NewCropService wires the optional collaborators. Pass untyped nil for
// images or vision to disable them.
func NewCropService(weather IWeatherService, images ImageStore, vision VisionModel, m *metrics.AdvisoryMetrics) *CropService {
	return &CropService{
		weather: weather,
		images:  images,
		vision:  vision,
		metrics: m,
	}
}

func (s *CropService) VisionMode() models.DataSource {
	if s.vision == nil {
		return models.SourceReference
	}
	return models.SourceGemini
}

func (s *CropService) GetCropRecommendations(ctx context.Context, profile models.CropProfileInput) (*models.CropRecommendations, error) {
	if profile.SoilPH != nil && (*profile.SoilPH < 0 || *profile.SoilPH > 14) {
		return nil, invalid("soilPh", "must be between 0 and 14")
	}
	if profile.Humidity != nil && (*profile.Humidity < 0 || *profile.Humidity > 100) {
		return nil, invalid("humidity", "must be between 0 and 100")
	}
	if profile.Rainfall != nil && *profile.Rainfall < 0 {
		return nil, invalid("rainfall", "must not be negative")
	}

	result := &models.CropRecommendations{}
	location := strings.TrimSpace(profile.Location)
	if s.weather != nil && location != "" && (profile.Temperature == nil || profile.Humidity == nil) {
		obs, err := s.weather.GetCurrentWeather(ctx, location)
		if err != nil {
			slog.Warn("Weather lookup for recommendations failed", "location", location, "error", err)
		} else {
			if profile.Temperature == nil {
				t := obs.Temperature
				profile.Temperature = &t
			}
			if profile.Humidity == nil {
				h := obs.Humidity
				profile.Humidity = &h
			}
			result.WeatherSource = obs.Source
		}
	}

	result.Inputs = profile
	result.Recommendations = RankCrops(profile, maxRecommendations)
	return result, nil
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		if i := strings.Index(data, ","); i >= 0 {
			data = data[i+1:]
		}
	}
	if data == "" {
		return nil, invalid("imageData", "is required")
	}
	image, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, invalid("imageData", "is not valid base64: %v", err)
	}
	if len(image) == 0 {
		return nil, invalid("imageData", "decodes to an empty image")
	}
	return image, nil
}

func (s *CropService) AnalyzeCropImage(ctx context.Context, req models.CropImageRequest) (*models.CropDiagnosis, error) {
	image, err := decodeImage(req.ImageData)
	if err != nil {
		return nil, err
	}
	cropType := normalizeCrop(req.CropType)
	if cropType == "" {
		cropType = "unknown"
	}

	imageURL := s.storeImage(ctx, cropType, image)

	var diagnosis *models.CropDiagnosis
	if s.vision != nil {
		raw, err := s.vision.AnalyzeImage(ctx, gemini.CropDiagnosisPrompt(cropType), image)
		if err != nil {
			slog.Warn("Vision model failed, using reference diagnosis", "crop", cropType, "error", err)
			s.metrics.RecordProviderFallback(string(models.SourceGemini))
		} else {
			diagnosis = diagnosisFromModel(raw)
		}
	}
	if diagnosis == nil {
		diagnosis = ReferenceDiagnosis(image)
	}

	diagnosis.CropType = cropType
	diagnosis.ImageURL = imageURL
	return diagnosis, nil
}

// storeImage uploads the photo and returns a presigned URL, or "" when
// storage is unavailable.
func (s *CropService) storeImage(ctx context.Context, cropType string, image []byte) string {
	if s.images == nil {
		return ""
	}
	mimeType := gemini.DetectImageMIMEType(image)
	object := fmt.Sprintf("%s/%s.%s", cropType, uuid.NewString(), gemini.ImageExtension(mimeType))

	if err := s.images.UploadBytes(ctx, minio.CropImagesBucket, object, image, mimeType); err != nil {
		slog.Warn("Crop image upload failed", "object", object, "error", err)
		return ""
	}
	url, err := s.images.GetPresignedURL(ctx, minio.CropImagesBucket, object, imageURLExpiry)
	if err != nil {
		slog.Warn("Crop image presign failed", "object", object, "error", err)
		return ""
	}
	return url
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func diagnosisFromModel(raw map[string]any) *models.CropDiagnosis {
	d := &models.CropDiagnosis{
		Symptoms:   stringList(raw["symptoms"]),
		Treatment:  stringList(raw["treatment"]),
		Prevention: stringList(raw["prevention"]),
		Source:     models.SourceGemini,
	}
	d.Disease, _ = raw["disease"].(string)
	if d.Disease == "" {
		d.Disease = "Unknown"
	}
	d.Severity, _ = raw["severity"].(string)
	if conf, ok := raw["confidence"].(float64); ok {
		d.Confidence = round(clamp(conf, 0, 100), 1)
	}
	return d
}

var referenceDiagnoses = []models.CropDiagnosis{
	{
		Disease: "Leaf Blight", Confidence: 72, Severity: "Medium",
		Symptoms:   []string{"Brown lesions with yellow halos", "Drying leaf margins"},
		Treatment:  []string{"Spray mancozeb 2.5 g/l at 10 day intervals", "Remove infected leaves"},
		Prevention: []string{"Use certified seed", "Avoid overhead irrigation late in the day"},
	},
	{
		Disease: "Powdery Mildew", Confidence: 68, Severity: "Low",
		Symptoms:   []string{"White powdery patches on leaves", "Curling of young leaves"},
		Treatment:  []string{"Apply wettable sulphur 3 g/l", "Improve air circulation"},
		Prevention: []string{"Maintain plant spacing", "Avoid excess nitrogen"},
	},
	{
		Disease: "Bacterial Leaf Spot", Confidence: 65, Severity: "Medium",
		Symptoms:   []string{"Water soaked spots turning dark", "Leaf drop in severe cases"},
		Treatment:  []string{"Spray copper oxychloride 3 g/l", "Destroy crop debris"},
		Prevention: []string{"Rotate crops", "Disinfect tools between fields"},
	},
	{
		Disease: "Nutrient Deficiency (Nitrogen)", Confidence: 60, Severity: "Low",
		Symptoms:   []string{"Uniform yellowing of older leaves", "Stunted growth"},
		Treatment:  []string{"Top dress urea at 20 kg/acre", "Apply foliar urea 2%"},
		Prevention: []string{"Soil test before sowing", "Split nitrogen applications"},
	},
	{
		Disease: "Healthy", Confidence: 80, Severity: "None",
		Symptoms:   []string{"No visible disease symptoms"},
		Treatment:  []string{"No treatment needed"},
		Prevention: []string{"Continue regular scouting"},
	},
}

// ReferenceDiagnosis picks a canned entry by FNV-32a of the image, so the same
// photo always yields the same answer.
func ReferenceDiagnosis(image []byte) *models.CropDiagnosis {
	h := fnv.New32a()
	_, _ = h.Write(image)
	entry := referenceDiagnoses[h.Sum32()%uint32(len(referenceDiagnoses))]

	d := entry
	d.Symptoms = append([]string(nil), entry.Symptoms...)
	d.Treatment = append([]string(nil), entry.Treatment...)
	d.Prevention = append([]string(nil), entry.Prevention...)
	d.Source = models.SourceReference
	return &d
}

func yieldConfidence(in models.YieldPredictionInput) float64 {
	confidence := 90.0
	for _, missing := range []bool{in.Rainfall == nil, in.Temperature == nil, in.SoilPH == nil} {
		if missing {
			confidence -= 10
		}
	}
	return math.Max(50, confidence)
}

func yieldAdvice(crop cropProfile, in models.YieldPredictionInput, f models.YieldFactors) []string {
	var advice []string
	if f.SoilPH < 1 && in.SoilPH != nil {
		if *in.SoilPH < crop.SoilPH.Min {
			advice = append(advice, "Apply agricultural lime to raise soil pH")
		} else {
			advice = append(advice, "Apply gypsum or organic matter to lower soil pH")
		}
	}
	if f.Rainfall < 1 {
		advice = append(advice, "Plan supplementary irrigation for the rainfall gap")
	}
	if f.Irrigation <= 1 {
		advice = append(advice, "Drip irrigation can raise yield by up to 15%")
	}
	if !in.FertilizerUsed {
		advice = append(advice, "Follow a soil-test based fertilizer schedule")
	}
	if f.Temperature < 1 {
		advice = append(advice, fmt.Sprintf("Adjust sowing dates toward the %.0f-%.0f°C window", crop.Temperature.Min, crop.Temperature.Max))
	}
	if len(advice) == 0 {
		advice = append(advice, "Conditions are favourable, maintain current practices")
	}
	return advice
}

func (s *CropService) PredictYield(_ context.Context, in models.YieldPredictionInput) (*models.YieldPrediction, error) {
	crop, ok := findCrop(in.Crop)
	if !ok {
		return nil, invalid("crop", "unsupported crop %q", in.Crop)
	}
	if in.Area <= 0 {
		return nil, invalid("area", "must be greater than 0")
	}

	f := YieldFactorsFor(crop, in)
	perHectare := round(crop.BaseYield*f.Rainfall*f.Temperature*f.SoilPH*f.Irrigation*f.Fertilizer, 2)
	total := round(perHectare*in.Area, 2)

	prediction := &models.YieldPrediction{
		Crop:            crop.Name,
		Area:            in.Area,
		YieldPerHectare: perHectare,
		TotalYield:      total,
		Unit:            yieldUnit,
		Confidence:      yieldConfidence(in),
		Factors:         f,
		Recommendations: yieldAdvice(crop, in, f),
	}
	if market, err := lookupCrop(crop.Name); err == nil {
		prediction.EstimatedRevenue = round(total*market.BasePrice, 2)
	}
	return prediction, nil
}
