package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/middleware"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// CatalogueAPI manages services and provider working hours
type CatalogueAPI interface {
	CreateService(ctx context.Context, providerID uuid.UUID, req models.CreateServiceRequest) (*models.Service, error)
	UpdateService(ctx context.Context, providerID, serviceID uuid.UUID, req models.UpdateServiceRequest) (*models.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ListServices(ctx context.Context, p services.ListServicesParams) ([]models.Service, error)
	GetWorkingHours(ctx context.Context, providerID uuid.UUID) ([]models.WorkingHours, error)
	ReplaceWorkingHours(ctx context.Context, providerID uuid.UUID, req models.ReplaceWorkingHoursRequest) ([]models.WorkingHours, error)
}

// AvailabilityAPI computes free slots of a service
type AvailabilityAPI interface {
	GetAvailability(ctx context.Context, serviceID uuid.UUID, from, to time.Time) ([]models.Slot, error)
}

// ServiceHandler handles the public catalogue, provider edits and availability
type ServiceHandler struct {
	catalogue    CatalogueAPI
	availability AvailabilityAPI
	logger       *logrus.Logger
}

// NewServiceHandler creates a new ServiceHandler
func NewServiceHandler(catalogue CatalogueAPI, availability AvailabilityAPI, logger *logrus.Logger) *ServiceHandler {
	return &ServiceHandler{
		catalogue:    catalogue,
		availability: availability,
		logger:       logger,
	}
}

// ListServices handles GET /api/v1/services?category=&provider_id=&limit=&offset=
func (h *ServiceHandler) ListServices(c *gin.Context) {
	params := services.ListServicesParams{Category: c.Query("category")}

	if raw := c.Query("provider_id"); raw != "" {
		providerID, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "Invalid provider_id: must be a UUID")
			return
		}
		params.ProviderID = &providerID
	}

	var ok bool
	if params.Limit, ok = intQuery(c, "limit"); !ok {
		return
	}
	if params.Offset, ok = intQuery(c, "offset"); !ok {
		return
	}

	list, err := h.catalogue.ListServices(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.logger, "list_services", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"services": list,
		"count":    len(list),
	})
}

// GetService handles GET /api/v1/services/:id
func (h *ServiceHandler) GetService(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	service, err := h.catalogue.GetService(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get_service", err)
		return
	}
	c.JSON(http.StatusOK, service)
}

// CreateService handles POST /api/v1/services (providers only)
func (h *ServiceHandler) CreateService(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	service, err := h.catalogue.CreateService(c.Request.Context(), userCtx.UserID, req)
	if err != nil {
		respondError(c, h.logger, "create_service", err)
		return
	}
	c.JSON(http.StatusCreated, service)
}

// UpdateService handles PUT /api/v1/services/:id (owner only)
func (h *ServiceHandler) UpdateService(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	service, err := h.catalogue.UpdateService(c.Request.Context(), userCtx.UserID, id, req)
	if err != nil {
		respondError(c, h.logger, "update_service", err)
		return
	}
	c.JSON(http.StatusOK, service)
}

// GetAvailability returns the free slots of a service
// @Summary Service availability
// @Description Free slots of the service's duration inside [from, to), in UTC
// @Tags Services
// @Produce json
// @Param id path string true "Service ID"
// @Param from query string true "RFC 3339 start of range"
// @Param to query string true "RFC 3339 end of range"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/services/{id}/availability [get]
func (h *ServiceHandler) GetAvailability(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	if from == nil || to == nil {
		badRequest(c, "from and to are required")
		return
	}

	slots, err := h.availability.GetAvailability(c.Request.Context(), id, *from, *to)
	if err != nil {
		respondError(c, h.logger, "get_availability", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service_id": id,
		"slots":      slots,
	})
}
