package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/database"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// maxTxAttempts bounds retries of a transaction aborted by a serialization failure or deadlock
const maxTxAttempts = 3

// ReservationStore atomically checks a provider's calendar and inserts a booking
type ReservationStore interface {
	Reserve(ctx context.Context, booking *models.Booking, event *models.BookingEvent) error
}

// ReserveRequest is a request to hold [StartTime, EndTime) on a provider's calendar
type ReserveRequest struct {
	ServiceID  uuid.UUID
	CustomerID uuid.UUID
	ProviderID uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Notes      *string
	ActorRole  models.UserRole
	Meta       models.RequestMeta
}

// ConflictGuard is the only path by which bookings are created. Two
// reservations for the same provider with intersecting intervals can never
// both succeed; the loser gets models.ErrOverlap.
type ConflictGuard struct {
	store   ReservationStore
	logger  *logrus.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewConflictGuard creates a conflict guard. timeout bounds each reservation
// transaction; zero means the caller's context alone applies.
func NewConflictGuard(store ReservationStore, logger *logrus.Logger, timeout time.Duration) *ConflictGuard {
	return &ConflictGuard{
		store:   store,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// TryReserve creates a PENDING/UNPAID booking for the interval or fails with models.ErrOverlap
func (g *ConflictGuard) TryReserve(ctx context.Context, req ReserveRequest) (*models.Booking, error) {
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()
	if !end.After(start) {
		return nil, models.NewValidationError("end_time", "must be after start_time")
	}

	now := g.now().UTC()
	booking := &models.Booking{
		ID:            uuid.New(),
		ServiceID:     req.ServiceID,
		CustomerID:    req.CustomerID,
		ProviderID:    req.ProviderID,
		StartTime:     start,
		EndTime:       end,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	event := &models.BookingEvent{
		ID:        uuid.New(),
		BookingID: booking.ID,
		ActorID:   req.CustomerID,
		ActorRole: req.ActorRole,
		Kind:      models.BookingEventCreated,
		ToValue:   string(models.BookingStatusPending),
		IPAddress: optional(req.Meta.IPAddress),
		UserAgent: optional(req.Meta.UserAgent),
		CreatedAt: now,
	}

	err := withRetry(ctx, g.logger, "reserve", func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.store.Reserve(ctx, booking, event)
	})
	if err != nil {
		if errors.Is(err, models.ErrOverlap) {
			g.logger.WithFields(logrus.Fields{
				"provider_id": req.ProviderID,
				"start_time":  start,
				"end_time":    end,
			}).Info("Reservation rejected: interval overlaps an active booking")
			return nil, models.ErrOverlap
		}
		return nil, fmt.Errorf("failed to reserve slot: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"provider_id": booking.ProviderID,
		"start_time":  start,
	}).Info("Booking reserved")
	return booking, nil
}

// withRetry runs fn again when the database aborted it for a transient concurrency reason
func withRetry(ctx context.Context, logger *logrus.Logger, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !database.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt,
			"error":     err.Error(),
		}).Warn("Transient database conflict, retrying")
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
