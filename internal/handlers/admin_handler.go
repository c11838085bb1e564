package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// CronAPI runs and reports maintenance jobs
type CronAPI interface {
	RunNow(ctx context.Context, job string) error
	GetJobStatus() map[string]interface{}
}

// AdminJobAuditor records manually triggered jobs
type AdminJobAuditor interface {
	LogAdminJob(ctx context.Context, job string, meta models.RequestMeta) error
}

// AdminHandler handles maintenance requests guarded by the admin key
type AdminHandler struct {
	cron    CronAPI
	auditor AdminJobAuditor
	logger  *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cron CronAPI, auditor AdminJobAuditor, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		cron:    cron,
		auditor: auditor,
		logger:  logger,
	}
}

// RunCronJob handles POST /api/v1/admin/cron/:job
func (h *AdminHandler) RunCronJob(c *gin.Context) {
	if h.cron == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "cron_disabled",
			Message: "Cron service is disabled",
			Code:    "CRON_DISABLED",
		})
		return
	}

	job := c.Param("job")
	if h.auditor != nil {
		if err := h.auditor.LogAdminJob(c.Request.Context(), job, utils.GetRequestMeta(c)); err != nil {
			h.logger.WithError(err).Error("AUDIT ERROR [LogAdminJob]")
		}
	}

	if err := h.cron.RunNow(c.Request.Context(), job); err != nil {
		respondError(c, h.logger, "run_cron_job", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":    job,
		"status": "completed",
	})
}

// CronStatus handles GET /api/v1/admin/cron/status
func (h *AdminHandler) CronStatus(c *gin.Context) {
	if h.cron == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, h.cron.GetJobStatus())
}
