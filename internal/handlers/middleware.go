package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userID"
	ctxRoles  = "roles"
)

// Middleware authenticates protected routes. With a JWT service it expects a
// bearer token; without one it trusts the X-User-ID and X-User-Roles headers
// set by the gateway's forward-auth.
type Middleware struct {
	jwtService *services.JWTService
}

func NewMiddleware(jwtService *services.JWTService) *Middleware {
	return &Middleware{jwtService: jwtService}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, utils.CreateErrorResponse(utils.CodeUnauthorized, message))
}

func splitRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.jwtService == nil {
			userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
			if userID == "" {
				abortUnauthorized(c, "X-User-ID header required")
				return
			}
			c.Set(ctxUserID, userID)
			c.Set(ctxRoles, splitRoles(c.GetHeader("X-User-Roles")))
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header required")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.jwtService.VerifyToken(tokenString)
		if err != nil {
			slog.Warn("Token validation failed", "path", c.Request.URL.Path, "error", err)
			abortUnauthorized(c, "token validation failed")
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRoles, claims.Roles)
		c.Next()
	}
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func hasRole(c *gin.Context, role string) bool {
	for _, r := range c.GetStringSlice(ctxRoles) {
		if r == role {
			return true
		}
	}
	return false
}

// canActFor reports whether the caller may read or change userID's data.
func canActFor(c *gin.Context, userID string) bool {
	return userIDFrom(c) == userID || hasRole(c, models.RoleService)
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, utils.CreateErrorResponse(utils.CodeForbidden, "not allowed for this user"))
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasRole(c, role) {
			forbidden(c)
			return
		}
		c.Next()
	}
}

// RequestMetrics records one observation per request keyed by the matched
// route template, so path parameters do not explode label cardinality.
func RequestMetrics(m *metrics.AdvisoryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
