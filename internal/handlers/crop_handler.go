package handlers

import (
	"net/http"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

// maxImageBody bounds a base64 crop photo upload.
const maxImageBody = 12 << 20

type CropHandler struct {
	cropService services.ICropService
}

func NewCropHandler(cropService services.ICropService) *CropHandler {
	return &CropHandler{cropService: cropService}
}

func (h *CropHandler) RegisterRoutes(public *gin.RouterGroup) {
	crops := public.Group("/crops")
	crops.POST("/recommendations", h.GetCropRecommendations)
	crops.POST("/diagnose", h.AnalyzeCropImage)
	crops.POST("/yield", h.PredictYield)
}

func (h *CropHandler) GetCropRecommendations(c *gin.Context) {
	var profile models.CropProfileInput
	if err := c.ShouldBindJSON(&profile); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	recs, err := h.cropService.GetCropRecommendations(c.Request.Context(), profile)
	if err != nil {
		respondError(c, err, "Failed to compute crop recommendations")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(recs, string(recs.WeatherSource)))
}

func (h *CropHandler) AnalyzeCropImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBody)

	var req models.CropImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	diagnosis, err := h.cropService.AnalyzeCropImage(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to analyze crop image")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(diagnosis, string(diagnosis.Source)))
}

func (h *CropHandler) PredictYield(c *gin.Context) {
	var input models.YieldPredictionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	prediction, err := h.cropService.PredictYield(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, "Failed to predict yield")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(prediction))
}
