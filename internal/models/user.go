package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole is the role claim supplied by the identity provider.
// It routes the UI; booking authority is decided per booking, not by role.
type UserRole string

const (
	UserRoleCustomer UserRole = "CUSTOMER"
	UserRoleProvider UserRole = "PROVIDER"
	UserRoleAdmin    UserRole = "ADMIN"
)

// IsValid reports whether r is a known role
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleCustomer, UserRoleProvider, UserRoleAdmin:
		return true
	}
	return false
}

// User mirrors an identity-provider account with marketplace settings attached
type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Role          UserRole  `db:"role" json:"role"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	PaymentQRCode *string   `db:"payment_qr_code" json:"payment_qr_code,omitempty"`
	PaymentNotes  *string   `db:"payment_notes" json:"payment_notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// UpdateUserSettingsRequest is the body of PUT /users/me/settings
type UpdateUserSettingsRequest struct {
	Phone         *string `json:"phone"`
	PaymentQRCode *string `json:"payment_qr_code"`
	PaymentNotes  *string `json:"payment_notes"`
}

// PaymentInstructions tells a customer how to pay the provider out-of-band
type PaymentInstructions struct {
	BookingID     uuid.UUID     `json:"booking_id"`
	ProviderID    uuid.UUID     `json:"provider_id"`
	PaymentQRCode *string       `json:"payment_qr_code,omitempty"`
	PaymentNotes  *string       `json:"payment_notes,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}
