package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

const maxPaymentNotesLength = 500

// UserStore persists the local mirror of identity-provider users
type UserStore interface {
	ContactLookup
	EnsureUser(ctx context.Context, id uuid.UUID, role models.UserRole) (*models.User, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, req models.UpdateUserSettingsRequest) (*models.User, error)
}

// UserService manages user contact and payment settings
type UserService struct {
	users  UserStore
	phones *validator.PhoneValidator
	logger *logrus.Logger
}

// NewUserService creates a new user service
func NewUserService(users UserStore, logger *logrus.Logger) *UserService {
	return &UserService{
		users:  users,
		phones: validator.NewPhoneValidator(),
		logger: logger,
	}
}

// GetSettings returns the caller's settings
func (s *UserService) GetSettings(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

// UpdateSettings validates and stores the provided settings.
// The payment QR code is an opaque URL to an image hosted elsewhere.
func (s *UserService) UpdateSettings(ctx context.Context, userID uuid.UUID, req models.UpdateUserSettingsRequest) (*models.User, error) {
	if req.Phone != nil {
		phone, err := s.phones.Validate(*req.Phone)
		if err != nil {
			return nil, models.NewValidationError("phone", "%s", err.Error())
		}
		req.Phone = &phone
	}
	if req.PaymentQRCode != nil {
		qr := strings.TrimSpace(*req.PaymentQRCode)
		u, err := url.Parse(qr)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return nil, models.NewValidationError("payment_qr_code", "must be an http(s) URL")
		}
		req.PaymentQRCode = &qr
	}
	if req.PaymentNotes != nil && len(*req.PaymentNotes) > maxPaymentNotesLength {
		return nil, models.NewValidationError("payment_notes", "must be at most %d characters", maxPaymentNotesLength)
	}

	user, err := s.users.UpdateSettings(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", userID).Info("User settings updated")
	return user, nil
}
