package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/middleware"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/services"
	"github.com/localserve/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// BookingAPI is the booking engine as seen by HTTP handlers
type BookingAPI interface {
	CreateBooking(ctx context.Context, p services.CreateBookingParams) (*models.Booking, error)
	TransitionBooking(ctx context.Context, p services.TransitionParams) (*models.Booking, error)
	GetBooking(ctx context.Context, id, actorID uuid.UUID) (*models.Booking, error)
	ListBookings(ctx context.Context, p services.ListBookingsParams) ([]models.Booking, error)
	GetBookingHistory(ctx context.Context, id, actorID uuid.UUID) ([]models.BookingEvent, error)
	GetPaymentInstructions(ctx context.Context, id, actorID uuid.UUID) (*models.PaymentInstructions, error)
}

// BookingHandler handles booking creation, listing and transitions
type BookingHandler struct {
	bookings BookingAPI
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingAPI, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		logger:   logger,
	}
}

// CreateBooking reserves a slot for the caller
// @Summary Create a booking
// @Description Reserve [start_time, end_time) with the service's provider. New bookings are PENDING and UNPAID.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.Booking
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Slot no longer available"
// @Security BearerAuth
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		badRequest(c, "Invalid service_id: must be a UUID")
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), services.CreateBookingParams{
		ServiceID:  serviceID,
		CustomerID: userCtx.UserID,
		ActorRole:  userCtx.Role,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Notes:      req.Notes,
		Meta:       utils.GetRequestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, "create_booking", err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// ListBookings handles GET /api/v1/bookings?as=&status=&from=&to=&limit=&offset=
// "as" defaults to PROVIDER for provider accounts and CUSTOMER otherwise.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	as := models.UserRole(strings.ToUpper(c.Query("as")))
	if as == "" {
		as = models.UserRoleCustomer
		if userCtx.Role == models.UserRoleProvider {
			as = models.UserRoleProvider
		}
	}

	params := services.ListBookingsParams{ActorID: userCtx.UserID, As: as}
	if status := c.Query("status"); status != "" {
		s := models.BookingStatus(strings.ToUpper(status))
		params.Status = &s
	}

	var ok bool
	if params.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if params.To, ok = timeQuery(c, "to"); !ok {
		return
	}
	if params.Limit, ok = intQuery(c, "limit"); !ok {
		return
	}
	if params.Offset, ok = intQuery(c, "offset"); !ok {
		return
	}

	bookings, err := h.bookings.ListBookings(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.logger, "list_bookings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), id, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, "get_booking", err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// TransitionBooking moves a booking's status or payment status
// @Summary Transition a booking
// @Description Apply a STATUS or PAYMENT transition. Authority is derived from the caller's relationship to the booking.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.TransitionBookingRequest true "Transition"
// @Success 200 {object} models.Booking
// @Failure 403 {object} ErrorResponse "Not permitted"
// @Failure 409 {object} ErrorResponse "State changed"
// @Failure 425 {object} ErrorResponse "Not yet due"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/transitions [post]
func (h *BookingHandler) TransitionBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.TransitionBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	booking, err := h.bookings.TransitionBooking(c.Request.Context(), services.TransitionParams{
		BookingID: id,
		ActorID:   userCtx.UserID,
		ActorRole: userCtx.Role,
		Transition: models.Transition{
			Kind:         models.TransitionKind(strings.ToUpper(req.Kind)),
			To:           strings.ToUpper(req.To),
			ExpectedFrom: req.ExpectedFrom,
			Reason:       req.Reason,
		},
		Meta: utils.GetRequestMeta(c),
	})
	if err != nil {
		respondError(c, h.logger, "transition_booking", err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GetBookingEvents handles GET /api/v1/bookings/:id/events
func (h *BookingHandler) GetBookingEvents(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	history, err := h.bookings.GetBookingHistory(c.Request.Context(), id, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, "booking_events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": history})
}

// GetPaymentInstructions handles GET /api/v1/bookings/:id/payment-instructions
func (h *BookingHandler) GetPaymentInstructions(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	instructions, err := h.bookings.GetPaymentInstructions(c.Request.Context(), id, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, "payment_instructions", err)
		return
	}
	c.JSON(http.StatusOK, instructions)
}
