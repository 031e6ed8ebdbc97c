package services

import (
	"context"
	"encoding/base64"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImageStore struct {
	mu      sync.Mutex
	objects map[string]string // object -> content type
	err     error
}

func (f *fakeImageStore) UploadBytes(_ context.Context, bucket, object string, _ []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[bucket+"/"+object] = contentType
	return nil
}

func (f *fakeImageStore) GetPresignedURL(_ context.Context, bucket, object string, _ time.Duration) (string, error) {
	return "https://files.example.test/" + bucket + "/" + object, nil
}

type fakeVision struct {
	result map[string]any
	err    error
	prompt string
}

func (f *fakeVision) AnalyzeImage(_ context.Context, prompt string, _ []byte) (map[string]any, error) {
	f.prompt = prompt
	return f.result, f.err
}

type fakeWeather struct {
	IWeatherService
	calls int
	obs   models.WeatherObservation
}

func (f *fakeWeather) GetCurrentWeather(_ context.Context, _ string) (*models.WeatherObservation, error) {
	f.calls++
	obs := f.obs
	return &obs, nil
}

func ptr(v float64) *float64 { return &v }

var pngImage = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3, 4}

func TestRankCrops_SortedWithNameTieBreak(t *testing.T) {
	recs := RankCrops(models.CropProfileInput{
		Temperature: ptr(28),
		Humidity:    ptr(85),
		Rainfall:    ptr(1500),
		SoilPH:      ptr(6.5),
		SoilType:    "Clay loam",
		Season:      "Kharif",
	}, maxRecommendations)

	require.Len(t, recs, maxRecommendations)
	assert.Equal(t, "rice", recs[0].Crop)
	assert.Equal(t, 100.0, recs[0].Score)
	assert.Equal(t, "Excellent", recs[0].Suitability)
	assert.Equal(t, "sugarcane", recs[1].Crop)
	assert.Equal(t, 100.0, recs[1].Score)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
}

func TestRankCrops_UnknownInputsEarnHalf(t *testing.T) {
	recs := RankCrops(models.CropProfileInput{}, maxRecommendations)

	require.Len(t, recs, maxRecommendations)
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Crop
		assert.Equal(t, 50.0, r.Score)
		assert.Equal(t, "Fair", r.Suitability)
	}
	assert.Equal(t, []string{"chickpea", "cotton", "maize", "onion", "potato"}, names)
}

func TestScoreCrop_HumidityPenalty(t *testing.T) {
	chickpea, ok := findCrop("Chickpea")
	require.True(t, ok)

	rec := ScoreCrop(chickpea, models.CropProfileInput{Humidity: ptr(90)})
	assert.Equal(t, 45.0, rec.Score)
	assert.Contains(t, rec.Reasons, "High humidity raises disease pressure")
}

func TestScoreCrop_IrrigationCoversRainfallShortfall(t *testing.T) {
	rice, _ := findCrop("rice")
	dry := ScoreCrop(rice, models.CropProfileInput{Rainfall: ptr(600)})
	irrigated := ScoreCrop(rice, models.CropProfileInput{Rainfall: ptr(600), IrrigationType: "canal"})

	assert.Greater(t, irrigated.Score, dry.Score)
	assert.Contains(t, irrigated.Reasons, "Irrigation can cover the rainfall shortfall")
}

func TestGetCropRecommendations_FillsFromWeather(t *testing.T) {
	weather := &fakeWeather{obs: models.WeatherObservation{Temperature: 22, Humidity: 60, Source: models.SourceSynthetic}}
	svc := NewCropService(weather, nil, nil, nil)

	result, err := svc.GetCropRecommendations(context.Background(), models.CropProfileInput{Location: "Nashik", Season: "rabi"})
	require.NoError(t, err)
	require.NotNil(t, result.Inputs.Temperature)
	assert.Equal(t, 22.0, *result.Inputs.Temperature)
	assert.Equal(t, 60.0, *result.Inputs.Humidity)
	assert.Equal(t, models.SourceSynthetic, result.WeatherSource)
	assert.Len(t, result.Recommendations, maxRecommendations)

	_, err = svc.GetCropRecommendations(context.Background(), models.CropProfileInput{
		Location: "Nashik", Temperature: ptr(20), Humidity: ptr(50),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, weather.calls, "weather is not fetched when both values are given")
}

func TestGetCropRecommendations_Invalid(t *testing.T) {
	svc := NewCropService(nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.GetCropRecommendations(ctx, models.CropProfileInput{SoilPH: ptr(15)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.GetCropRecommendations(ctx, models.CropProfileInput{Humidity: ptr(-1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.GetCropRecommendations(ctx, models.CropProfileInput{Rainfall: ptr(-5)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyzeCropImage_UsesVisionModel(t *testing.T) {
	images := &fakeImageStore{}
	vision := &fakeVision{result: map[string]any{
		"disease":    "Early Blight",
		"confidence": 87.5,
		"severity":   "High",
		"symptoms":   []any{"Concentric rings on leaves"},
		"treatment":  []any{"Chlorothalonil spray"},
		"prevention": []any{"Crop rotation"},
	}}
	svc := NewCropService(nil, images, vision, nil)

	data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngImage)
	d, err := svc.AnalyzeCropImage(context.Background(), models.CropImageRequest{ImageData: data, CropType: "Tomato"})
	require.NoError(t, err)

	assert.Equal(t, models.SourceGemini, d.Source)
	assert.Equal(t, "tomato", d.CropType)
	assert.Equal(t, "Early Blight", d.Disease)
	assert.Equal(t, 87.5, d.Confidence)
	assert.Equal(t, []string{"Concentric rings on leaves"}, d.Symptoms)
	assert.Contains(t, vision.prompt, "Declared crop: tomato")

	require.Len(t, images.objects, 1)
	for object, contentType := range images.objects {
		assert.True(t, strings.HasPrefix(object, "crop-images/tomato/"), object)
		assert.True(t, strings.HasSuffix(object, ".png"), object)
		assert.Equal(t, "image/png", contentType)
		assert.Equal(t, "https://files.example.test/"+object, d.ImageURL)
	}
}

func TestAnalyzeCropImage_FallsBackToReference(t *testing.T) {
	m, err := metrics.NewAdvisoryMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	svc := NewCropService(nil, &fakeImageStore{err: errors.New("bucket offline")}, &fakeVision{err: errors.New("quota exceeded")}, m)

	data := base64.StdEncoding.EncodeToString(pngImage)
	d, err := svc.AnalyzeCropImage(context.Background(), models.CropImageRequest{ImageData: data})
	require.NoError(t, err)

	assert.Equal(t, models.SourceReference, d.Source)
	assert.Equal(t, "unknown", d.CropType)
	assert.Empty(t, d.ImageURL)
	assert.Equal(t, ReferenceDiagnosis(pngImage).Disease, d.Disease)

	count, err := testutil.GatherAndCount(m.Registry(), "advisory_provider_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReferenceDiagnosis_Deterministic(t *testing.T) {
	h := fnv.New32a()
	_, _ = h.Write(pngImage)
	want := referenceDiagnoses[h.Sum32()%uint32(len(referenceDiagnoses))]

	first := ReferenceDiagnosis(pngImage)
	second := ReferenceDiagnosis(pngImage)
	assert.Equal(t, want.Disease, first.Disease)
	assert.Equal(t, first, second)
	assert.Equal(t, models.SourceReference, first.Source)

	first.Treatment[0] = "changed"
	assert.NotEqual(t, "changed", ReferenceDiagnosis(pngImage).Treatment[0])
}

func TestAnalyzeCropImage_InvalidInput(t *testing.T) {
	svc := NewCropService(nil, nil, nil, nil)
	for _, data := range []string{"", "   ", "%%%not-base64%%%", "data:image/png;base64,"} {
		_, err := svc.AnalyzeCropImage(context.Background(), models.CropImageRequest{ImageData: data})
		assert.ErrorIs(t, err, ErrInvalidInput, "input %q", data)
	}
}

func TestVisionMode(t *testing.T) {
	assert.Equal(t, models.SourceReference, NewCropService(nil, nil, nil, nil).VisionMode())
	assert.Equal(t, models.SourceGemini, NewCropService(nil, nil, &fakeVision{}, nil).VisionMode())
}

func TestPredictYield(t *testing.T) {
	svc := NewCropService(nil, nil, nil, nil)

	p, err := svc.PredictYield(context.Background(), models.YieldPredictionInput{
		Crop: "Wheat", Area: 2, IrrigationType: "drip", FertilizerUsed: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "wheat", p.Crop)
	assert.Equal(t, 1.15, p.Factors.Irrigation)
	assert.Equal(t, 1.2, p.Factors.Fertilizer)
	assert.InDelta(t, 48.3, p.YieldPerHectare, 0.001)
	assert.InDelta(t, 96.6, p.TotalYield, 0.001)
	assert.Equal(t, "quintal", p.Unit)
	assert.Equal(t, 60.0, p.Confidence)
	assert.InDelta(t, 96.6*2275, p.EstimatedRevenue, 0.01)
}

func TestPredictYield_PenaltiesAndAdvice(t *testing.T) {
	svc := NewCropService(nil, nil, nil, nil)

	p, err := svc.PredictYield(context.Background(), models.YieldPredictionInput{
		Crop: "wheat", Area: 1, SoilPH: ptr(8.5), Rainfall: ptr(200),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.Factors.SoilPH)
	assert.Equal(t, 0.889, p.Factors.Rainfall)
	assert.Equal(t, 1.0, p.Factors.Temperature)
	assert.Equal(t, 80.0, p.Confidence)
	assert.Contains(t, p.Recommendations, "Apply gypsum or organic matter to lower soil pH")
	assert.Contains(t, p.Recommendations, "Plan supplementary irrigation for the rainfall gap")
	assert.Less(t, p.YieldPerHectare, 35.0)
}

func TestPredictYield_Invalid(t *testing.T) {
	svc := NewCropService(nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.PredictYield(ctx, models.YieldPredictionInput{Crop: "durian", Area: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.PredictYield(ctx, models.YieldPredictionInput{Crop: "rice", Area: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
