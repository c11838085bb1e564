package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/middleware"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// SettingsAPI reads and edits a user's contact and payment settings
type SettingsAPI interface {
	GetSettings(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, req models.UpdateUserSettingsRequest) (*models.User, error)
}

// SettingsHandler handles the caller's own settings and working hours
type SettingsHandler struct {
	settings  SettingsAPI
	catalogue CatalogueAPI
	logger    *logrus.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settings SettingsAPI, catalogue CatalogueAPI, logger *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings:  settings,
		catalogue: catalogue,
		logger:    logger,
	}
}

// GetSettings handles GET /api/v1/users/me/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.settings.GetSettings(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, "get_settings", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateSettings handles PUT /api/v1/users/me/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.UpdateUserSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	user, err := h.settings.UpdateSettings(c.Request.Context(), userCtx.UserID, req)
	if err != nil {
		respondError(c, h.logger, "update_settings", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetWorkingHours handles GET /api/v1/providers/me/working-hours
func (h *SettingsHandler) GetWorkingHours(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	hours, err := h.catalogue.GetWorkingHours(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, "get_working_hours", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"windows":        hours,
		"using_defaults": len(hours) == 0,
	})
}

// ReplaceWorkingHours handles PUT /api/v1/providers/me/working-hours.
// An empty list reverts to the default business hours.
func (h *SettingsHandler) ReplaceWorkingHours(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.ReplaceWorkingHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	hours, err := h.catalogue.ReplaceWorkingHours(c.Request.Context(), userCtx.UserID, req)
	if err != nil {
		respondError(c, h.logger, "replace_working_hours", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"windows":        hours,
		"using_defaults": len(hours) == 0,
	})
}
