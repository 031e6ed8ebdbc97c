package handlers

import (
	"farm-advisory/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	publicPrefix    = "/advisory/public/api/v2"
	protectedPrefix = "/advisory/protected/api/v2"
)

type Handlers struct {
	Weather      *WeatherHandler
	Crop         *CropHandler
	IoT          *IoTHandler
	Market       *MarketHandler
	Farm         *FarmHandler
	Notification *NotificationHandler
	Health       *HealthHandler
}

// NewRouter mounts every handler on a fresh engine. Public routes need no
// identity; protected routes go through the auth middleware.
func NewRouter(h Handlers, middleware *Middleware, m *metrics.AdvisoryMetrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), RequestMetrics(m))

	public := router.Group(publicPrefix)
	protected := router.Group(protectedPrefix, middleware.RequireUser())

	h.Weather.RegisterRoutes(public)
	h.Crop.RegisterRoutes(public)
	h.IoT.RegisterRoutes(public)
	h.Market.RegisterRoutes(public, protected)
	h.Farm.RegisterRoutes(protected)
	h.Notification.RegisterRoutes(protected)
	h.Health.RegisterRoutes(router)

	if m != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	}
	return router
}
