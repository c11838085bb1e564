package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// UserEnsurer mirrors identity-provider users into the local users table
type UserEnsurer interface {
	EnsureUser(ctx context.Context, id uuid.UUID, role models.UserRole) (*models.User, error)
}

// UserSync upserts the authenticated actor once per process and role,
// so bookings and settings can reference the user row.
func UserSync(users UserEnsurer, logger *logrus.Logger) gin.HandlerFunc {
	var synced sync.Map // uuid.UUID -> models.UserRole

	return func(c *gin.Context) {
		userCtx, ok := GetUserContext(c)
		if !ok {
			c.Next()
			return
		}

		if role, seen := synced.Load(userCtx.UserID); seen && role == userCtx.Role {
			c.Next()
			return
		}

		if _, err := users.EnsureUser(c.Request.Context(), userCtx.UserID, userCtx.Role); err != nil {
			logger.WithError(err).WithField("user_id", userCtx.UserID).Error("Failed to sync user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Something went wrong, please retry",
				"code":    "INTERNAL_ERROR",
			})
			return
		}
		synced.Store(userCtx.UserID, userCtx.Role)
		c.Next()
	}
}
