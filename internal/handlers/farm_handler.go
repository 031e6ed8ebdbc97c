package handlers

import (
	"net/http"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

type FarmHandler struct {
	farmService      services.IFarmService
	dashboardService services.IDashboardService
	advisoryService  services.IAdvisoryService
}

func NewFarmHandler(farmService services.IFarmService, dashboardService services.IDashboardService, advisoryService services.IAdvisoryService) *FarmHandler {
	return &FarmHandler{
		farmService:      farmService,
		dashboardService: dashboardService,
		advisoryService:  advisoryService,
	}
}

func (h *FarmHandler) RegisterRoutes(protected *gin.RouterGroup) {
	farms := protected.Group("/farms")
	farms.PUT("", h.SaveFarmProfile)
	farms.GET("/:farmId", h.GetFarmProfile)
	farms.GET("/:farmId/dashboard", h.GetDashboard)
	farms.POST("/:farmId/advisories", h.RunAdvisory)
}

// authorizedFarm loads the farm and checks the caller owns it. It writes the
// response itself when the farm cannot be returned.
func (h *FarmHandler) authorizedFarm(c *gin.Context) (*models.FarmProfile, bool) {
	farm, err := h.farmService.GetFarmProfile(c.Request.Context(), c.Param("farmId"))
	if err != nil {
		respondError(c, err, "Failed to load farm profile")
		return nil, false
	}
	if farm.OwnerID != "" && !canActFor(c, farm.OwnerID) {
		forbidden(c)
		return nil, false
	}
	return farm, true
}

func (h *FarmHandler) SaveFarmProfile(c *gin.Context) {
	var profile models.FarmProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if profile.OwnerID == "" {
		profile.OwnerID = userIDFrom(c)
	}
	if !canActFor(c, profile.OwnerID) {
		forbidden(c)
		return
	}

	saved, err := h.farmService.SaveFarmProfile(c.Request.Context(), profile)
	if err != nil {
		respondError(c, err, "Failed to save farm profile")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(saved))
}

func (h *FarmHandler) GetFarmProfile(c *gin.Context) {
	farm, ok := h.authorizedFarm(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(farm))
}

func (h *FarmHandler) GetDashboard(c *gin.Context) {
	if _, ok := h.authorizedFarm(c); !ok {
		return
	}
	dashboard, err := h.dashboardService.GetDashboard(c.Request.Context(), c.Param("farmId"))
	if err != nil {
		respondError(c, err, "Failed to build farm dashboard")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(dashboard))
}

func (h *FarmHandler) RunAdvisory(c *gin.Context) {
	if _, ok := h.authorizedFarm(c); !ok {
		return
	}
	run, err := h.advisoryService.RunFarmAdvisory(c.Request.Context(), c.Param("farmId"))
	if err != nil {
		respondError(c, err, "Failed to run farm advisory")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponseWithSource(run, string(run.WeatherSource)))
}
