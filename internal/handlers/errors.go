package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// statusFor maps service errors onto HTTP responses. Business errors keep
// their message; anything unrecognised is an infrastructure failure.
func statusFor(err error) (int, ErrorResponse) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: ve.Error(), Code: "VALIDATION_ERROR"}
	case errors.Is(err, models.ErrOverlap):
		return http.StatusConflict, ErrorResponse{Error: "slot_unavailable", Message: err.Error(), Code: "SLOT_UNAVAILABLE"}
	case errors.Is(err, models.ErrInvalidActor):
		return http.StatusForbidden, ErrorResponse{Error: "invalid_actor", Message: err.Error(), Code: "INVALID_ACTOR"}
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict, ErrorResponse{Error: "invalid_state", Message: err.Error(), Code: "INVALID_STATE"}
	case errors.Is(err, models.ErrNotYetDue):
		return http.StatusTooEarly, ErrorResponse{Error: "not_yet_due", Message: err.Error(), Code: "NOT_YET_DUE"}
	case errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrServiceNotFound),
		errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error(), Code: "NOT_FOUND"}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Something went wrong, please retry",
		Code:    "INTERNAL_ERROR",
	}
}

// respondError writes the mapped error. Infrastructure failures are logged
// with their cause, which is never sent to the client.
func respondError(c *gin.Context, logger *logrus.Logger, operation string, err error) {
	status, body := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"operation": operation,
			"path":      c.Request.URL.Path,
		}).WithError(err).Error("Request failed")
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
		Code:    "INVALID_REQUEST",
	})
}

// uuidParam parses a path parameter, answering 400 when it is not a UUID
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// timeQuery parses an optional RFC 3339 query parameter
func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		badRequest(c, "Invalid "+name+": expected RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}

// intQuery parses an optional integer query parameter
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "Invalid "+name+": must be an integer")
		return 0, false
	}
	return n, true
}
