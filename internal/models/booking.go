package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// IsValid reports whether s is a known booking status
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further status transitions are possible
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// PaymentStatus represents the out-of-band payment confirmation state
type PaymentStatus string

const (
	PaymentStatusUnpaid             PaymentStatus = "UNPAID"
	PaymentStatusCustomerMarkedPaid PaymentStatus = "CUSTOMER_MARKED_PAID"
	PaymentStatusProviderConfirmed  PaymentStatus = "PROVIDER_CONFIRMED"
)

// IsValid reports whether s is a known payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusCustomerMarkedPaid, PaymentStatusProviderConfirmed:
		return true
	}
	return false
}

// IsTerminal reports whether no further payment transitions are possible
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusProviderConfirmed
}

// Booking is a reserved [StartTime, EndTime) interval on a provider's calendar.
// ProviderID is copied from the service at creation so conflict checks never join.
type Booking struct {
	ID                 uuid.UUID     `db:"id" json:"id"`
	ServiceID          uuid.UUID     `db:"service_id" json:"service_id"`
	CustomerID         uuid.UUID     `db:"customer_id" json:"customer_id"`
	ProviderID         uuid.UUID     `db:"provider_id" json:"provider_id"`
	StartTime          time.Time     `db:"start_time" json:"start_time"`
	EndTime            time.Time     `db:"end_time" json:"end_time"`
	Status             BookingStatus `db:"status" json:"status"`
	PaymentStatus      PaymentStatus `db:"payment_status" json:"payment_status"`
	Notes              *string       `db:"notes" json:"notes,omitempty"`
	CancelledBy        *uuid.UUID    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// Interval returns the half-open time range the booking occupies
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// IsParticipant reports whether userID is the customer or the provider of the booking
func (b *Booking) IsParticipant(userID uuid.UUID) bool {
	return b.CustomerID == userID || b.ProviderID == userID
}

// BookingFilter narrows booking listings
type BookingFilter struct {
	CustomerID *uuid.UUID
	ProviderID *uuid.UUID
	Status     *BookingStatus
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// TransitionKind selects which axis of the booking a transition moves
type TransitionKind string

const (
	TransitionKindStatus  TransitionKind = "STATUS"
	TransitionKindPayment TransitionKind = "PAYMENT"
)

// Transition is a requested move of either the status or the payment status.
// ExpectedFrom, when set, must match the value the caller last observed.
type Transition struct {
	Kind         TransitionKind `json:"kind"`
	To           string         `json:"to"`
	ExpectedFrom *string        `json:"expected_from,omitempty"`
	Reason       *string        `json:"reason,omitempty"`
}

// StatusTransition builds a transition of the status axis
func StatusTransition(to BookingStatus) Transition {
	return Transition{Kind: TransitionKindStatus, To: string(to)}
}

// PaymentTransition builds a transition of the payment axis
func PaymentTransition(to PaymentStatus) Transition {
	return Transition{Kind: TransitionKindPayment, To: string(to)}
}

// ============================================================================
// AUDIT TRAIL
// ============================================================================

// BookingEventKind classifies an entry in a booking's audit trail
type BookingEventKind string

const (
	BookingEventCreated BookingEventKind = "CREATED"
	BookingEventStatus  BookingEventKind = "STATUS"
	BookingEventPayment BookingEventKind = "PAYMENT"
)

// BookingEvent is an append-only record written in the same transaction as the change it describes
type BookingEvent struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	BookingID uuid.UUID        `db:"booking_id" json:"booking_id"`
	ActorID   uuid.UUID        `db:"actor_id" json:"actor_id"`
	ActorRole UserRole         `db:"actor_role" json:"actor_role"`
	Kind      BookingEventKind `db:"kind" json:"kind"`
	FromValue *string          `db:"from_value" json:"from_value,omitempty"`
	ToValue   string           `db:"to_value" json:"to_value"`
	IPAddress *string          `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent *string          `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// BookingMutation computes the next state of a locked booking and the audit
// event describing it. Returning an error aborts the enclosing transaction.
type BookingMutation func(current Booking) (Booking, *BookingEvent, error)

// RequestMeta is the client context recorded alongside booking events
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// CreateBookingRequest is the body of POST /bookings.
// EndTime may be omitted; it is derived from the service duration.
type CreateBookingRequest struct {
	ServiceID string     `json:"service_id" binding:"required"`
	StartTime time.Time  `json:"start_time" binding:"required"`
	EndTime   *time.Time `json:"end_time"`
	Notes     *string    `json:"notes"`
}

// TransitionBookingRequest is the body of POST /bookings/:id/transitions
type TransitionBookingRequest struct {
	Kind         string  `json:"kind" binding:"required"`
	To           string  `json:"to" binding:"required"`
	ExpectedFrom *string `json:"expected_from"`
	Reason       *string `json:"reason"`
}
