package handlers

import (
	"net/http"

	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

type WeatherHandler struct {
	weatherService services.IWeatherService
}

func NewWeatherHandler(weatherService services.IWeatherService) *WeatherHandler {
	return &WeatherHandler{weatherService: weatherService}
}

func (h *WeatherHandler) RegisterRoutes(public *gin.RouterGroup) {
	weather := public.Group("/weather")
	weather.GET("/current", h.GetCurrentWeather)
	weather.GET("/forecast", h.GetForecast)
	weather.GET("/indices", h.GetAgriculturalIndices)
}

func (h *WeatherHandler) GetCurrentWeather(c *gin.Context) {
	obs, err := h.weatherService.GetCurrentWeather(c.Request.Context(), c.Query("location"))
	if err != nil {
		respondError(c, err, "Failed to fetch weather data")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(obs, string(obs.Source)))
}

// GetForecast passes days through untouched; the service clamps it to 1..7
// and treats 0 as the default window.
func (h *WeatherHandler) GetForecast(c *gin.Context) {
	days, err := utils.GetQueryParamAsInt(c, "days", 0)
	if err != nil {
		badRequest(c, "days must be a non-negative integer")
		return
	}

	forecast, err := h.weatherService.GetForecast(c.Request.Context(), c.Query("location"), days)
	if err != nil {
		respondError(c, err, "Failed to fetch forecast")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(forecast, string(forecast.Source)))
}

func (h *WeatherHandler) GetAgriculturalIndices(c *gin.Context) {
	indices, err := h.weatherService.GetAgriculturalIndices(c.Request.Context(), c.Query("location"))
	if err != nil {
		respondError(c, err, "Failed to compute agricultural indices")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(indices, string(indices.Source)))
}
