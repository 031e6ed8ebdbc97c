package handlers

import (
	"net/http"
	"time"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService services.INotificationService
}

func NewNotificationHandler(notificationService services.INotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) RegisterRoutes(protected *gin.RouterGroup) {
	notifications := protected.Group("/notifications")
	notifications.POST("/subscribe", h.Subscribe)
	notifications.POST("/scheduled", RequireRole(models.RoleService), h.TriggerScheduled)
	notifications.GET("/:userId", h.GetUserNotifications)
	notifications.PUT("/:userId/:id/read", h.MarkAsRead)
}

func (h *NotificationHandler) Subscribe(c *gin.Context) {
	var sub models.NotificationSubscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if sub.UserID == "" {
		sub.UserID = userIDFrom(c)
	}
	if !canActFor(c, sub.UserID) {
		forbidden(c)
		return
	}

	saved, err := h.notificationService.Subscribe(c.Request.Context(), sub)
	if err != nil {
		respondError(c, err, "Failed to save subscription")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(saved))
}

func (h *NotificationHandler) GetUserNotifications(c *gin.Context) {
	userID := c.Param("userId")
	if !canActFor(c, userID) {
		forbidden(c)
		return
	}

	notifications, err := h.notificationService.GetUserNotifications(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to load notifications")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(notifications))
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID := c.Param("userId")
	if !canActFor(c, userID) {
		forbidden(c)
		return
	}

	n, err := h.notificationService.MarkAsRead(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to update notification")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(n))
}

func (h *NotificationHandler) TriggerScheduled(c *gin.Context) {
	var req models.ScheduledNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.notificationService.SendScheduled(c.Request.Context(), req, time.Now())
	if err != nil {
		respondError(c, err, "Failed to send scheduled notifications")
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(result))
}
