package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/models"
)

// Event types published after a booking change is committed
const (
	TypeBookingCreated        = "booking.created"
	TypeBookingStatusChanged  = "booking.status_changed"
	TypeBookingPaymentChanged = "booking.payment_changed"
)

// BookingEvent is the message body published to downstream consumers
type BookingEvent struct {
	ID            uuid.UUID            `json:"id"`
	Type          string               `json:"type"`
	BookingID     uuid.UUID            `json:"booking_id"`
	ServiceID     uuid.UUID            `json:"service_id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	ProviderID    uuid.UUID            `json:"provider_id"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	Status        models.BookingStatus `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	From          string               `json:"from,omitempty"`
	ActorID       uuid.UUID            `json:"actor_id"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NewBookingEvent builds the message for booking b. from is the previous
// value of the axis that moved and is empty for creations.
func NewBookingEvent(eventType string, b models.Booking, from string, actorID uuid.UUID, at time.Time) BookingEvent {
	return BookingEvent{
		ID:            uuid.New(),
		Type:          eventType,
		BookingID:     b.ID,
		ServiceID:     b.ServiceID,
		CustomerID:    b.CustomerID,
		ProviderID:    b.ProviderID,
		StartTime:     b.StartTime.UTC(),
		EndTime:       b.EndTime.UTC(),
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		From:          from,
		ActorID:       actorID,
		OccurredAt:    at.UTC(),
	}
}

// TypeForTransition maps a transition axis to its event type
func TypeForTransition(kind models.TransitionKind) string {
	if kind == models.TransitionKindPayment {
		return TypeBookingPaymentChanged
	}
	return TypeBookingStatusChanged
}

// Publisher delivers booking events. Publishing happens after commit, so a
// failure is reported to the caller but never undoes the change.
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close() error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BookingEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
