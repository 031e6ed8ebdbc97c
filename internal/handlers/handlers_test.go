package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farm-advisory/internal/config"
	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"
	"farm-advisory/internal/repository"
	"farm-advisory/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Source string `json:"source"`
	} `json:"meta"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type downStore struct {
	repository.Store
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestRouter(t *testing.T, store repository.Store, jwtService *services.JWTService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := metrics.NewAdvisoryMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	notifications := services.NewNotificationService(repository.NewNotificationRepository(store), m)
	weather := services.NewWeatherService(config.WeatherConfig{Provider: "synthetic", CurrentTTL: time.Minute, ForecastTTL: time.Minute}, store, services.NewSyntheticDataSource(rand.New(rand.NewPCG(1, 2)), nil), m)
	crops := services.NewCropService(weather, nil, nil, m)
	iot := services.NewIoTService(repository.NewSensorRepository(store), notifications, m, rand.New(rand.NewPCG(3, 4)))
	market := services.NewMarketService(config.MarketConfig{Provider: "synthetic", PricesTTL: time.Minute}, store, services.NewSyntheticMarketSource(rand.New(rand.NewPCG(5, 6))), notifications)
	farms := services.NewFarmService(repository.NewFarmRepository(store))

	return NewRouter(Handlers{
		Weather:      NewWeatherHandler(weather),
		Crop:         NewCropHandler(crops),
		IoT:          NewIoTHandler(iot),
		Market:       NewMarketHandler(market),
		Farm:         NewFarmHandler(farms, services.NewDashboardService(farms, weather, crops, iot, market), services.NewAdvisoryService(farms, weather, crops, notifications)),
		Notification: NewNotificationHandler(notifications),
		Health:       NewHealthHandler(store, weather, crops, notifications, "direct"),
	}, NewMiddleware(jwtService), m)
}

func do(t *testing.T, router *gin.Engine, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") != "" && bytes.HasPrefix(rec.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func asUser(id string, roles ...string) map[string]string {
	h := map[string]string{"X-User-ID": id}
	if len(roles) > 0 {
		h["X-User-Roles"] = roles[0]
	}
	return h
}

func TestWeatherRoutes(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)

	rec, env := do(t, router, http.MethodGet, publicPrefix+"/weather/current?location=Pune", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "synthetic", env.Meta.Source)
	var obs models.WeatherObservation
	require.NoError(t, json.Unmarshal(env.Data, &obs))
	assert.Equal(t, models.SourceSynthetic, obs.Source)

	rec, env = do(t, router, http.MethodGet, publicPrefix+"/weather/forecast?location=Pune&days=3", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var forecast models.Forecast
	require.NoError(t, json.Unmarshal(env.Data, &forecast))
	assert.Len(t, forecast.Days, 3)

	rec, _ = do(t, router, http.MethodGet, publicPrefix+"/weather/indices?location=Pune", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWeatherRoutes_BadRequests(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)

	rec, env := do(t, router, http.MethodGet, publicPrefix+"/weather/current", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	rec, _ = do(t, router, http.MethodGet, publicPrefix+"/weather/forecast?location=Pune&days=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCropRoutes(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)

	rec, env := do(t, router, http.MethodPost, publicPrefix+"/crops/recommendations",
		map[string]any{"soilType": "loam", "soilPh": 6.5, "temperature": 22, "humidity": 50, "rainfall": 600}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs models.CropRecommendations
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	assert.Len(t, recs.Recommendations, 5)

	image := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', 1, 2, 3})
	rec, env = do(t, router, http.MethodPost, publicPrefix+"/crops/diagnose", map[string]any{"imageData": image, "cropType": "tomato"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reference", env.Meta.Source)

	rec, _ = do(t, router, http.MethodPost, publicPrefix+"/crops/diagnose", map[string]any{"imageData": "%%%"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, router, http.MethodPost, publicPrefix+"/crops/yield", map[string]any{"crop": "wheat", "area": 2}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prediction models.YieldPrediction
	require.NoError(t, json.Unmarshal(env.Data, &prediction))
	assert.Equal(t, "quintal", prediction.Unit)

	rec, _ = do(t, router, http.MethodPost, publicPrefix+"/crops/yield", map[string]any{"crop": "durian", "area": 2}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIoTRoutes(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)

	rec, env := do(t, router, http.MethodPost, publicPrefix+"/iot/readings",
		map[string]any{"farmId": "farm-1", "sensorId": "s-1", "sensorType": "soil_moisture", "value": 12}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var result models.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.NotEmpty(t, result.Alerts)

	rec, env = do(t, router, http.MethodGet, publicPrefix+"/iot/farms/farm-1/latest", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var latest models.LatestSensorData
	require.NoError(t, json.Unmarshal(env.Data, &latest))
	assert.Contains(t, latest.Sensors, models.SoilMoisture)

	rec, _ = do(t, router, http.MethodGet, publicPrefix+"/iot/farms/farm-1/history?start=2026-07-10", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodGet, publicPrefix+"/iot/farms/farm-1/history?start=yesterday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, router, http.MethodPost, publicPrefix+"/iot/farms/farm-1/simulate", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var simulated []models.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &simulated))
	assert.Len(t, simulated, len(models.SensorTypes))

	rec, _ = do(t, router, http.MethodPost, publicPrefix+"/iot/readings", map[string]any{"farmId": "farm-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketRoutes(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)

	rec, env := do(t, router, http.MethodGet, publicPrefix+"/market/prices?crop=wheat&region=punjab", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prices []models.MarketPriceSample
	require.NoError(t, json.Unmarshal(env.Data, &prices))
	require.Len(t, prices, 1)
	assert.Equal(t, "wheat", prices[0].Crop)

	rec, _ = do(t, router, http.MethodGet, publicPrefix+"/market/trends?crop=onion&timeframe=7d", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodGet, publicPrefix+"/market/trends?crop=onion&timeframe=1y", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, router, http.MethodGet, publicPrefix+"/market/demand-supply?crop=rice", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodPost, protectedPrefix+"/market/price-alerts", nil, asUser("farmer-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = do(t, router, http.MethodPost, protectedPrefix+"/market/price-alerts", nil, asUser("scheduler", models.RoleService))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFarmRoutes(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)
	farm := map[string]any{"farmId": "farm-7", "name": "Canal plot", "location": "Pune", "soilType": "loam", "crops": []string{"wheat"}}

	rec, _ := do(t, router, http.MethodPut, protectedPrefix+"/farms", farm, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := do(t, router, http.MethodPut, protectedPrefix+"/farms", farm, asUser("farmer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var saved models.FarmProfile
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, "farmer-1", saved.OwnerID)

	rec, _ = do(t, router, http.MethodGet, protectedPrefix+"/farms/farm-7", nil, asUser("farmer-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodGet, protectedPrefix+"/farms/farm-7", nil, asUser("farmer-2"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, env = do(t, router, http.MethodGet, protectedPrefix+"/farms/missing", nil, asUser("farmer-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, env = do(t, router, http.MethodGet, protectedPrefix+"/farms/farm-7/dashboard", nil, asUser("farmer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var dash models.FarmDashboard
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.NotNil(t, dash.Weather)
	assert.Len(t, dash.Prices, 1)

	rec, env = do(t, router, http.MethodPost, protectedPrefix+"/farms/farm-7/advisories", nil, asUser("farmer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var run models.AdvisoryRun
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, "farm-7", run.FarmID)
	assert.False(t, run.AdvisorySent, "owner has no subscription yet")
}

func TestNotificationRoutes(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)

	sub := map[string]any{"farmId": "farm-1", "channels": []string{"push"}, "contact": map[string]any{"deviceToken": "tok"}}
	rec, env := do(t, router, http.MethodPost, protectedPrefix+"/notifications/subscribe", sub, asUser("farmer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var saved models.NotificationSubscription
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, "farmer-1", saved.UserID)

	rec, _ = do(t, router, http.MethodPost, protectedPrefix+"/notifications/subscribe",
		map[string]any{"userId": "farmer-1", "channels": []string{"fax"}}, asUser("farmer-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, router, http.MethodGet, protectedPrefix+"/notifications/farmer-1", nil, asUser("farmer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(env.Data))

	rec, _ = do(t, router, http.MethodGet, protectedPrefix+"/notifications/farmer-1", nil, asUser("farmer-2"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, router, http.MethodPut, protectedPrefix+"/notifications/farmer-1/nope/read", nil, asUser("farmer-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	trigger := map[string]any{"type": "scheduled", "title": "Morning briefing", "message": "Check soil moisture"}
	rec, _ = do(t, router, http.MethodPost, protectedPrefix+"/notifications/scheduled", trigger, asUser("farmer-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, env = do(t, router, http.MethodPost, protectedPrefix+"/notifications/scheduled", trigger, asUser("scheduler", models.RoleService))
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.ScheduledResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Considered)
}

func TestJWTProtectedRoutes(t *testing.T) {
	jwtService := services.NewJWTService("test-secret")
	router := newTestRouter(t, repository.NewMemoryStore(), jwtService)

	rec, _ := do(t, router, http.MethodGet, protectedPrefix+"/notifications/farmer-1", nil, asUser("farmer-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "headers are not trusted once JWT is configured")

	token, err := jwtService.GenerateNewToken("farmer-1", []string{models.RoleFarmer}, time.Hour)
	require.NoError(t, err)
	rec, _ = do(t, router, http.MethodGet, protectedPrefix+"/notifications/farmer-1", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodGet, protectedPrefix+"/notifications/farmer-1", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckHealth(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)
	rec, env := do(t, router, http.MethodGet, "/checkhealth", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "memory", status.Store)
	assert.Equal(t, models.SourceSynthetic, status.WeatherProvider)
	assert.Equal(t, models.SourceReference, status.VisionModel)
	assert.Empty(t, status.Channels)

	router = newTestRouter(t, downStore{repository.NewMemoryStore()}, nil)
	rec, env = do(t, router, http.MethodGet, "/checkhealth", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.StoreError)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryStore(), nil)
	do(t, router, http.MethodGet, "/checkhealth", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/checkhealth"`)
}
