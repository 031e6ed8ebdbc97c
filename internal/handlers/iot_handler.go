package handlers

import (
	"net/http"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

type IoTHandler struct {
	iotService services.IIoTService
}

func NewIoTHandler(iotService services.IIoTService) *IoTHandler {
	return &IoTHandler{iotService: iotService}
}

func (h *IoTHandler) RegisterRoutes(public *gin.RouterGroup) {
	iot := public.Group("/iot")
	iot.POST("/readings", h.SubmitSensorReading)
	iot.GET("/farms/:farmId/latest", h.GetLatestSensorData)
	iot.GET("/farms/:farmId/history", h.GetSensorHistory)
	iot.POST("/farms/:farmId/simulate", h.SimulateIoTData)
}

func (h *IoTHandler) SubmitSensorReading(c *gin.Context) {
	var req models.SensorReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.iotService.Ingest(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to ingest sensor reading")
		return
	}
	c.JSON(http.StatusCreated, utils.CreateSuccessResponse(result))
}

func (h *IoTHandler) GetLatestSensorData(c *gin.Context) {
	latest, err := h.iotService.GetLatestSensorData(c.Request.Context(), c.Param("farmId"))
	if err != nil {
		respondError(c, err, "Failed to load sensor data")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(latest))
}

func (h *IoTHandler) GetSensorHistory(c *gin.Context) {
	start, err := utils.GetQueryParamAsTime(c, "start")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	end, err := utils.GetQueryParamAsTime(c, "end")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	history, err := h.iotService.GetSensorHistory(c.Request.Context(), c.Param("farmId"), start, end)
	if err != nil {
		respondError(c, err, "Failed to load sensor history")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(history))
}

func (h *IoTHandler) SimulateIoTData(c *gin.Context) {
	results, err := h.iotService.SimulateIoTData(c.Request.Context(), c.Param("farmId"))
	if err != nil {
		respondError(c, err, "Failed to simulate sensor data")
		return
	}
	c.JSON(http.StatusCreated, utils.CreateSuccessResponseWithSource(results, string(models.SourceSynthetic)))
}
