package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/pkg/sms"
	"github.com/sirupsen/logrus"
)

// ContactLookup resolves a user's contact details
type ContactLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// NotificationService sends SMS notices to the counterpart of a booking change
type NotificationService struct {
	gateway  sms.Gateway
	users    ContactLookup
	location *time.Location
	logger   *logrus.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(gateway sms.Gateway, users ContactLookup, location *time.Location, logger *logrus.Logger) *NotificationService {
	if location == nil {
		location = time.UTC
	}
	return &NotificationService{
		gateway:  gateway,
		users:    users,
		location: location,
		logger:   logger,
	}
}

// BookingCreated tells the provider about a new booking request
func (s *NotificationService) BookingCreated(ctx context.Context, b models.Booking) {
	s.notify(ctx, b.ProviderID, b.ID,
		fmt.Sprintf("New booking request for %s. Please confirm or decline in the app.", s.when(b)))
}

// BookingTransitioned tells the other party that actorID moved the booking
func (s *NotificationService) BookingTransitioned(ctx context.Context, b models.Booking, t models.Transition, actorID uuid.UUID) {
	recipient := b.CustomerID
	if actorID == b.CustomerID {
		recipient = b.ProviderID
	}

	message := transitionMessage(b, t, s.when(b))
	if message == "" {
		return
	}
	s.notify(ctx, recipient, b.ID, message)
}

func transitionMessage(b models.Booking, t models.Transition, when string) string {
	switch t.Kind {
	case models.TransitionKindStatus:
		switch models.BookingStatus(t.To) {
		case models.BookingStatusConfirmed:
			return fmt.Sprintf("Your booking for %s has been confirmed.", when)
		case models.BookingStatusCancelled:
			return fmt.Sprintf("The booking for %s has been cancelled.", when)
		case models.BookingStatusCompleted:
			return fmt.Sprintf("The booking for %s is marked as completed.", when)
		}
	case models.TransitionKindPayment:
		switch models.PaymentStatus(t.To) {
		case models.PaymentStatusCustomerMarkedPaid:
			return fmt.Sprintf("The customer marked the booking for %s as paid. Please verify and confirm.", when)
		case models.PaymentStatusProviderConfirmed:
			return fmt.Sprintf("Payment for the booking on %s has been confirmed. Thank you!", when)
		}
	}
	return ""
}

func (s *NotificationService) when(b models.Booking) string {
	return b.StartTime.In(s.location).Format("Mon 2 Jan 15:04")
}

// notify never fails the caller: the booking change is already committed
func (s *NotificationService) notify(ctx context.Context, userID, bookingID uuid.UUID, message string) {
	log := s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"user_id":    userID,
		"gateway":    s.gateway.GetName(),
	})

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Failed to look up notification recipient")
		return
	}
	if user == nil || user.Phone == nil || *user.Phone == "" {
		log.Debug("Recipient has no contact phone, skipping SMS")
		return
	}

	if err := s.gateway.Send(ctx, *user.Phone, message); err != nil {
		log.WithError(err).Warn("Failed to send booking SMS")
		return
	}
	log.Info("Booking SMS sent")
}
