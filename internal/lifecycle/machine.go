package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/models"
)

// Actor is the authenticated caller of a transition
type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
}

// party is the relationship an actor holds to one specific booking
type party int

const (
	partyNone party = iota
	partyCustomer
	partyProvider
)

// Policy holds the configurable parts of the transition rules
type Policy struct {
	// CustomerCancelConfirmed lets customers cancel bookings the provider already confirmed
	CustomerCancelConfirmed bool
	// CustomerCancelCutoff is how long before StartTime the customer may still cancel a confirmed booking
	CustomerCancelCutoff time.Duration
}

// Machine applies booking transitions. It is pure: it never touches storage,
// callers feed it the row they have locked and persist what it returns.
type Machine struct {
	policy Policy
}

// NewMachine creates a state machine with the given policy
func NewMachine(policy Policy) *Machine {
	return &Machine{policy: policy}
}

type statusEdge struct {
	from models.BookingStatus
	to   models.BookingStatus
}

type paymentEdge struct {
	from models.PaymentStatus
	to   models.PaymentStatus
}

// who may move a booking along each edge
var statusAuthority = map[statusEdge][]party{
	{models.BookingStatusPending, models.BookingStatusConfirmed}:   {partyProvider},
	{models.BookingStatusPending, models.BookingStatusCancelled}:   {partyCustomer, partyProvider},
	{models.BookingStatusConfirmed, models.BookingStatusCancelled}: {partyProvider, partyCustomer},
	{models.BookingStatusConfirmed, models.BookingStatusCompleted}: {partyProvider},
}

var paymentAuthority = map[paymentEdge][]party{
	{models.PaymentStatusUnpaid, models.PaymentStatusCustomerMarkedPaid}:            {partyCustomer},
	{models.PaymentStatusCustomerMarkedPaid, models.PaymentStatusProviderConfirmed}: {partyProvider},
}

// Apply validates t against the current booking and returns the updated copy.
//
// Checks run in a fixed order: the actor's relationship to this booking, the
// caller's expected current value, edge legality, edge authority and finally
// time gates. The first failing check decides the error.
func (m *Machine) Apply(current models.Booking, actor Actor, t models.Transition, now time.Time) (models.Booking, error) {
	p := relationship(current, actor)
	if p == partyNone {
		return current, &models.TransitionError{
			Err:    models.ErrInvalidActor,
			From:   currentValue(current, t.Kind),
			To:     t.To,
			Reason: "actor is neither the customer nor the provider of this booking",
		}
	}

	switch t.Kind {
	case models.TransitionKindStatus:
		return m.applyStatus(current, actor, p, t, now)
	case models.TransitionKindPayment:
		return m.applyPayment(current, p, t, now)
	default:
		return current, models.NewValidationError("kind", "unknown transition kind %q", t.Kind)
	}
}

func (m *Machine) applyStatus(current models.Booking, actor Actor, p party, t models.Transition, now time.Time) (models.Booking, error) {
	from := current.Status
	to := models.BookingStatus(t.To)
	if !to.IsValid() {
		return current, models.NewValidationError("to", "unknown booking status %q", t.To)
	}

	if err := checkExpected(string(from), t); err != nil {
		return current, err
	}

	edge := statusEdge{from: from, to: to}
	allowed, ok := statusAuthority[edge]
	if !ok {
		return current, &models.TransitionError{Err: models.ErrInvalidState, From: string(from), To: t.To}
	}
	if !contains(allowed, p) {
		return current, &models.TransitionError{Err: models.ErrInvalidActor, From: string(from), To: t.To}
	}

	if edge.from == models.BookingStatusConfirmed && edge.to == models.BookingStatusCancelled && p == partyCustomer {
		if err := m.checkCustomerCancel(current, now); err != nil {
			return current, err
		}
	}

	if to == models.BookingStatusCompleted && now.Before(current.EndTime) {
		return current, &models.TransitionError{
			Err:    models.ErrNotYetDue,
			From:   string(from),
			To:     t.To,
			Reason: "booking ends at " + current.EndTime.UTC().Format(time.RFC3339),
		}
	}

	next := current
	next.Status = to
	next.UpdatedAt = now
	if to == models.BookingStatusCancelled {
		cancelledBy := actor.ID
		next.CancelledBy = &cancelledBy
		next.CancellationReason = t.Reason
	}
	return next, nil
}

func (m *Machine) applyPayment(current models.Booking, p party, t models.Transition, now time.Time) (models.Booking, error) {
	from := current.PaymentStatus
	to := models.PaymentStatus(t.To)
	if !to.IsValid() {
		return current, models.NewValidationError("to", "unknown payment status %q", t.To)
	}

	if err := checkExpected(string(from), t); err != nil {
		return current, err
	}

	if current.Status == models.BookingStatusCancelled {
		return current, &models.TransitionError{
			Err:    models.ErrInvalidState,
			From:   string(from),
			To:     t.To,
			Reason: "payment is frozen on a cancelled booking",
		}
	}

	allowed, ok := paymentAuthority[paymentEdge{from: from, to: to}]
	if !ok {
		return current, &models.TransitionError{Err: models.ErrInvalidState, From: string(from), To: t.To}
	}
	if !contains(allowed, p) {
		return current, &models.TransitionError{Err: models.ErrInvalidActor, From: string(from), To: t.To}
	}

	next := current
	next.PaymentStatus = to
	next.UpdatedAt = now
	return next, nil
}

func (m *Machine) checkCustomerCancel(current models.Booking, now time.Time) error {
	if !m.policy.CustomerCancelConfirmed {
		return &models.TransitionError{
			Err:    models.ErrInvalidActor,
			From:   string(current.Status),
			To:     string(models.BookingStatusCancelled),
			Reason: "confirmed bookings can only be cancelled by the provider",
		}
	}
	deadline := current.StartTime.Add(-m.policy.CustomerCancelCutoff)
	if now.After(deadline) {
		return &models.TransitionError{
			Err:    models.ErrInvalidActor,
			From:   string(current.Status),
			To:     string(models.BookingStatusCancelled),
			Reason: "cancellation window closed at " + deadline.UTC().Format(time.RFC3339),
		}
	}
	return nil
}

// relationship resolves the actor against this booking's parties. The role
// claim must agree with the party it unlocks: only a PROVIDER token acts as the
// booking's provider, ADMIN holds no relationship, and a PROVIDER account that
// booked someone else's service acts as that booking's customer.
func relationship(b models.Booking, actor Actor) party {
	switch actor.Role {
	case models.UserRoleProvider:
		switch actor.ID {
		case b.ProviderID:
			return partyProvider
		case b.CustomerID:
			return partyCustomer
		}
	case models.UserRoleCustomer:
		if actor.ID == b.CustomerID {
			return partyCustomer
		}
	}
	return partyNone
}

func checkExpected(current string, t models.Transition) error {
	if t.ExpectedFrom != nil && *t.ExpectedFrom != current {
		return &models.TransitionError{
			Err:    models.ErrInvalidState,
			From:   current,
			To:     t.To,
			Reason: "expected " + *t.ExpectedFrom,
		}
	}
	return nil
}

func currentValue(b models.Booking, kind models.TransitionKind) string {
	if kind == models.TransitionKindPayment {
		return string(b.PaymentStatus)
	}
	return string(b.Status)
}

func contains(parties []party, p party) bool {
	for _, candidate := range parties {
		if candidate == p {
			return true
		}
	}
	return false
}
