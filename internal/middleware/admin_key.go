package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// AdminKeyHeader carries the maintenance API key
const AdminKeyHeader = "X-Admin-Key"

// SuspiciousActivityLogger records security events
type SuspiciousActivityLogger interface {
	LogSuspiciousActivity(ctx context.Context, userID *uuid.UUID, activity string, meta models.RequestMeta, details map[string]interface{}) error
}

// RequireAdminKey guards maintenance routes with a bcrypt-hashed API key.
// With no hash configured the routes are disabled.
func RequireAdminKey(keyHash string, auditor SuspiciousActivityLogger, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   "admin_disabled",
				"message": "Admin API is not configured",
				"code":    "ADMIN_DISABLED",
			})
			return
		}

		if utils.CheckAPIKey(keyHash, c.GetHeader(AdminKeyHeader)) {
			c.Next()
			return
		}

		meta := utils.GetRequestMeta(c)
		logger.WithFields(logrus.Fields{
			"ip":   meta.IPAddress,
			"path": c.Request.URL.Path,
		}).Warn("Rejected admin request with invalid key")
		if auditor != nil {
			details := map[string]interface{}{"path": c.Request.URL.Path}
			if err := auditor.LogSuspiciousActivity(c.Request.Context(), nil, "invalid_admin_key", meta, details); err != nil {
				logger.WithError(err).Error("Failed to audit invalid admin key")
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Invalid admin key",
			"code":    "INVALID_ADMIN_KEY",
		})
	}
}
