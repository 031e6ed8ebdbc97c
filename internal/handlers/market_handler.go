package handlers

import (
	"net/http"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

type MarketHandler struct {
	marketService services.IMarketService
}

func NewMarketHandler(marketService services.IMarketService) *MarketHandler {
	return &MarketHandler{marketService: marketService}
}

func (h *MarketHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	market := public.Group("/market")
	market.GET("/prices", h.GetCurrentPrices)
	market.GET("/trends", h.GetMarketTrends)
	market.GET("/demand-supply", h.GetDemandSupplyAnalysis)

	protected.POST("/market/price-alerts", RequireRole(models.RoleService), h.SendPriceAlerts)
}

func (h *MarketHandler) GetCurrentPrices(c *gin.Context) {
	prices, err := h.marketService.GetCurrentPrices(c.Request.Context(), c.Query("crop"), c.Query("region"))
	if err != nil {
		respondError(c, err, "Failed to fetch market prices")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(prices, string(models.SourceSynthetic)))
}

func (h *MarketHandler) GetMarketTrends(c *gin.Context) {
	trend, err := h.marketService.GetMarketTrends(c.Request.Context(), c.Query("crop"), c.Query("timeframe"))
	if err != nil {
		respondError(c, err, "Failed to compute market trend")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(trend, string(trend.Source)))
}

func (h *MarketHandler) GetDemandSupplyAnalysis(c *gin.Context) {
	analysis, err := h.marketService.GetDemandSupplyAnalysis(c.Request.Context(), c.Query("crop"))
	if err != nil {
		respondError(c, err, "Failed to analyze demand and supply")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(analysis, string(analysis.Source)))
}

// SendPriceAlerts quotes current prices and notifies subscribers about every
// move past the alert threshold.
func (h *MarketHandler) SendPriceAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	prices, err := h.marketService.GetCurrentPrices(ctx, c.Query("crop"), c.Query("region"))
	if err != nil {
		respondError(c, err, "Failed to fetch market prices")
		return
	}
	sent := h.marketService.NotifyPriceMovements(ctx, prices)
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{
		"quoted":        len(prices),
		"notifications": sent,
	}))
}
