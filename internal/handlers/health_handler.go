package handlers

import (
	"context"
	"net/http"
	"time"

	"farm-advisory/internal/models"
	"farm-advisory/internal/repository"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

const storePingTimeout = 2 * time.Second

// ChannelLister reports which notification channels have a sender wired.
type ChannelLister interface {
	AvailableChannels() []models.Channel
}

type HealthStatus struct {
	Status          string            `json:"status"`
	Store           string            `json:"store"`
	StoreError      string            `json:"storeError,omitempty"`
	WeatherProvider models.DataSource `json:"weatherProvider"`
	MarketProvider  models.DataSource `json:"marketProvider"`
	VisionModel     models.DataSource `json:"visionModel"`
	Channels        []models.Channel  `json:"channels"`
	Dispatch        string            `json:"dispatch"`
	Uptime          string            `json:"uptime"`
}

type HealthHandler struct {
	store     repository.Store
	weather   services.IWeatherService
	crops     services.ICropService
	channels  ChannelLister
	dispatch  string
	startedAt time.Time
}

func NewHealthHandler(store repository.Store, weather services.IWeatherService, crops services.ICropService, channels ChannelLister, dispatch string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		weather:   weather,
		crops:     crops,
		channels:  channels,
		dispatch:  dispatch,
		startedAt: time.Now(),
	}
}

func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/checkhealth", h.CheckHealth)
}

// CheckHealth answers 503 only when the store is unreachable. Provider
// fallbacks are reported but never make the service unhealthy.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	status := HealthStatus{
		Status:          "healthy",
		Store:           h.store.Driver(),
		WeatherProvider: h.weather.ProviderName(),
		MarketProvider:  models.SourceSynthetic,
		VisionModel:     h.crops.VisionMode(),
		Channels:        h.channels.AvailableChannels(),
		Dispatch:        h.dispatch,
		Uptime:          time.Since(h.startedAt).Round(time.Second).String(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storePingTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		status.Status = "unhealthy"
		status.StoreError = err.Error()
		c.JSON(http.StatusServiceUnavailable, utils.CreateSuccessResponse(status))
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(status))
}
