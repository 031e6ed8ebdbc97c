package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto the shared error envelope. Anything
// unclassified is logged and reported with the fallback message only.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, err.Error()))
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, utils.CreateErrorResponse(utils.CodeNotFound, err.Error()))
	case errors.Is(err, services.ErrNoChannelAvailable):
		c.JSON(http.StatusServiceUnavailable, utils.CreateErrorResponse(utils.CodeUnavailable, err.Error()))
	default:
		slog.Error(fallback, "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse(utils.CodeInternalError, fallback))
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, message))
}
