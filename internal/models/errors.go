package models

import (
	"errors"
	"fmt"
)

// Business errors returned by the booking engine. Each is recoverable and
// carries an actionable message; anything else is an infrastructure failure.
var (
	// ErrOverlap means the requested interval intersects an active booking of the provider
	ErrOverlap = errors.New("slot no longer available")
	// ErrInvalidActor means the requester has no authority for the transition on this booking
	ErrInvalidActor = errors.New("not permitted to perform this action on the booking")
	// ErrInvalidState means the transition is not legal from the booking's current state
	ErrInvalidState = errors.New("booking state changed, please refresh")
	// ErrNotYetDue means a time-gated transition was requested too early
	ErrNotYetDue = errors.New("transition is not yet due, retry later")
)

// Lookup errors
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrServiceNotFound = errors.New("service not found")
	ErrUserNotFound    = errors.New("user not found")
)

// TransitionError wraps one of the business errors with the attempted move
type TransitionError struct {
	Err    error
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s -> %s: %s", e.Err.Error(), e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("%s: %s -> %s", e.Err.Error(), e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed or unacceptable request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsBusinessError reports whether err is one of the four recoverable booking errors
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInvalidActor) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrNotYetDue)
}
