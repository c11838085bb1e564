package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/events"
	"github.com/localserve/booking-backend/internal/lifecycle"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/scheduling"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxNotesLength   = 1000

	// post-commit side effects run on their own deadline so a cancelled
	// request does not drop them
	sideEffectTimeout = 10 * time.Second
)

// BookingStore is the persistence the booking service needs
type BookingStore interface {
	ReservationStore
	ApplyLocked(ctx context.Context, id uuid.UUID, mutate models.BookingMutation) (*models.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListActiveForProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	ListEvents(ctx context.Context, bookingID uuid.UUID) ([]models.BookingEvent, error)
}

// ServiceLookup resolves catalogue services
type ServiceLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
}

// WorkingHoursLookup resolves a provider's weekly schedule
type WorkingHoursLookup interface {
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]models.WorkingHours, error)
}

// BookingNotifier is told about committed booking changes
type BookingNotifier interface {
	BookingCreated(ctx context.Context, b models.Booking)
	BookingTransitioned(ctx context.Context, b models.Booking, t models.Transition, actorID uuid.UUID)
}

// TransitionAuditor records transitions rejected for lack of authority
type TransitionAuditor interface {
	LogRejectedTransition(ctx context.Context, r RejectedTransition) error
}

// BookingServiceDeps are the collaborators of BookingService
type BookingServiceDeps struct {
	Bookings     BookingStore
	Services     ServiceLookup
	WorkingHours WorkingHoursLookup
	Users        ContactLookup
	Guard        *ConflictGuard
	Machine      *lifecycle.Machine
	Publisher    events.Publisher
	Notifier     BookingNotifier
	Auditor      TransitionAuditor
	Logger       *logrus.Logger
}

// BookingServiceConfig holds scheduling parameters
type BookingServiceConfig struct {
	Location       *time.Location
	DefaultWindows []scheduling.DailyWindow
	MaxRange       time.Duration
}

// BookingService orchestrates availability, reservation and lifecycle transitions
type BookingService struct {
	bookings  BookingStore
	services  ServiceLookup
	hours     WorkingHoursLookup
	users     ContactLookup
	guard     *ConflictGuard
	machine   *lifecycle.Machine
	publisher events.Publisher
	notifier  BookingNotifier
	auditor   TransitionAuditor
	logger    *logrus.Logger
	cfg       BookingServiceConfig
	now       func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(deps BookingServiceDeps, cfg BookingServiceConfig) *BookingService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	return &BookingService{
		bookings:  deps.Bookings,
		services:  deps.Services,
		hours:     deps.WorkingHours,
		users:     deps.Users,
		guard:     deps.Guard,
		machine:   deps.Machine,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		auditor:   deps.Auditor,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ============================================================================
// AVAILABILITY
// ============================================================================

// GetAvailability returns the free slots of a service within [from, to).
// Slots that already started are omitted.
func (s *BookingService) GetAvailability(ctx context.Context, serviceID uuid.UUID, from, to time.Time) ([]models.Slot, error) {
	from, to = from.UTC(), to.UTC()
	if s.cfg.MaxRange > 0 && to.Sub(from) > s.cfg.MaxRange {
		return nil, models.NewValidationError("to", "range may not exceed %d days", int(s.cfg.MaxRange.Hours()/24))
	}

	service, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, models.ErrServiceNotFound
	}
	if service.DurationMinutes <= 0 {
		return nil, models.NewValidationError("duration_minutes", "service %s has no positive duration configured", service.ID)
	}
	if !service.IsActive || !to.After(from) {
		return []models.Slot{}, nil
	}

	windows, err := s.providerWindows(ctx, service.ProviderID)
	if err != nil {
		return nil, err
	}

	active, err := s.bookings.ListActiveForProvider(ctx, service.ProviderID, from, to)
	if err != nil {
		return nil, err
	}

	slots := scheduling.Calculate(scheduling.Input{
		Duration: service.Duration(),
		Windows:  windows,
		Busy:     scheduling.BusyIntervals(active),
		From:     from,
		To:       to,
		Location: s.cfg.Location,
	})

	now := s.now().UTC()
	upcoming := slots[:0]
	for _, slot := range slots {
		if !slot.Start.Before(now) {
			upcoming = append(upcoming, slot)
		}
	}
	return upcoming, nil
}

func (s *BookingService) providerWindows(ctx context.Context, providerID uuid.UUID) ([]scheduling.DailyWindow, error) {
	hours, err := s.hours.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if len(hours) == 0 {
		return s.cfg.DefaultWindows, nil
	}
	return scheduling.WindowsFromWorkingHours(hours)
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBookingParams is a customer's request to book a service
type CreateBookingParams struct {
	ServiceID  uuid.UUID
	CustomerID uuid.UUID
	ActorRole  models.UserRole
	StartTime  time.Time
	EndTime    *time.Time
	Notes      *string
	Meta       models.RequestMeta
}

// CreateBooking validates the request against the service and reserves the slot
func (s *BookingService) CreateBooking(ctx context.Context, p CreateBookingParams) (*models.Booking, error) {
	service, err := s.services.GetByID(ctx, p.ServiceID)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, models.ErrServiceNotFound
	}
	if !service.IsActive {
		return nil, models.NewValidationError("service_id", "service is not accepting bookings")
	}
	if service.DurationMinutes <= 0 {
		return nil, models.NewValidationError("duration_minutes", "service %s has no positive duration configured", service.ID)
	}
	if p.CustomerID == service.ProviderID {
		return nil, models.NewValidationError("service_id", "providers cannot book their own service")
	}

	if p.StartTime.IsZero() {
		return nil, models.NewValidationError("start_time", "is required")
	}
	start := p.StartTime.UTC()
	end := start.Add(service.Duration())
	if p.EndTime != nil {
		if !p.EndTime.UTC().Equal(end) {
			return nil, models.NewValidationError("end_time", "must equal start_time plus the service duration of %d minutes", service.DurationMinutes)
		}
	}
	if start.Before(s.now()) {
		return nil, models.NewValidationError("start_time", "must be in the future")
	}
	if p.Notes != nil && utf8.RuneCountInString(*p.Notes) > maxNotesLength {
		return nil, models.NewValidationError("notes", "must be at most %d characters", maxNotesLength)
	}

	windows, err := s.providerWindows(ctx, service.ProviderID)
	if err != nil {
		return nil, err
	}
	if !scheduling.Covers(windows, models.Interval{Start: start, End: end}, s.cfg.Location) {
		return nil, models.NewValidationError("start_time", "falls outside the provider's working hours")
	}

	booking, err := s.guard.TryReserve(ctx, ReserveRequest{
		ServiceID:  service.ID,
		CustomerID: p.CustomerID,
		ProviderID: service.ProviderID,
		StartTime:  start,
		EndTime:    end,
		Notes:      p.Notes,
		ActorRole:  p.ActorRole,
		Meta:       p.Meta,
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.NewBookingEvent(events.TypeBookingCreated, *booking, "", p.CustomerID, booking.CreatedAt), func(ctx context.Context) {
		if s.notifier != nil {
			s.notifier.BookingCreated(ctx, *booking)
		}
	})
	return booking, nil
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// TransitionParams is a request by an actor to move a booking along one axis
type TransitionParams struct {
	BookingID  uuid.UUID
	ActorID    uuid.UUID
	ActorRole  models.UserRole
	Transition models.Transition
	Meta       models.RequestMeta
}

// TransitionBooking applies the transition to the locked, freshly read booking
func (s *BookingService) TransitionBooking(ctx context.Context, p TransitionParams) (*models.Booking, error) {
	t := p.Transition
	if t.Kind != models.TransitionKindStatus && t.Kind != models.TransitionKindPayment {
		return nil, models.NewValidationError("kind", "must be STATUS or PAYMENT")
	}
	if t.To == "" {
		return nil, models.NewValidationError("to", "is required")
	}

	actor := lifecycle.Actor{ID: p.ActorID, Role: p.ActorRole}
	var previous string

	mutate := func(current models.Booking) (models.Booking, *models.BookingEvent, error) {
		now := s.now().UTC()
		next, err := s.machine.Apply(current, actor, t, now)
		if err != nil {
			return current, nil, err
		}

		kind := models.BookingEventStatus
		previous = string(current.Status)
		if t.Kind == models.TransitionKindPayment {
			kind = models.BookingEventPayment
			previous = string(current.PaymentStatus)
		}
		from := previous

		return next, &models.BookingEvent{
			ID:        uuid.New(),
			BookingID: current.ID,
			ActorID:   p.ActorID,
			ActorRole: p.ActorRole,
			Kind:      kind,
			FromValue: &from,
			ToValue:   t.To,
			IPAddress: optional(p.Meta.IPAddress),
			UserAgent: optional(p.Meta.UserAgent),
			CreatedAt: now,
		}, nil
	}

	var updated *models.Booking
	err := withRetry(ctx, s.logger, "transition", func(ctx context.Context) error {
		var err error
		updated, err = s.bookings.ApplyLocked(ctx, p.BookingID, mutate)
		return err
	})
	if err != nil {
		s.logRejection(ctx, p, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"actor_id":   p.ActorID,
		"kind":       t.Kind,
		"from":       previous,
		"to":         t.To,
	}).Info("Booking transitioned")

	s.afterCommit(ctx, events.NewBookingEvent(events.TypeForTransition(t.Kind), *updated, previous, p.ActorID, updated.UpdatedAt), func(ctx context.Context) {
		if s.notifier != nil {
			s.notifier.BookingTransitioned(ctx, *updated, t, p.ActorID)
		}
	})
	return updated, nil
}

func (s *BookingService) logRejection(ctx context.Context, p TransitionParams, err error) {
	if !models.IsBusinessError(err) {
		return
	}

	fields := logrus.Fields{
		"booking_id": p.BookingID,
		"actor_id":   p.ActorID,
		"kind":       p.Transition.Kind,
		"to":         p.Transition.To,
		"error":      err.Error(),
	}
	s.logger.WithFields(fields).Info("Booking transition rejected")

	if !errors.Is(err, models.ErrInvalidActor) || s.auditor == nil {
		return
	}
	reason := err.Error()
	var te *models.TransitionError
	if errors.As(err, &te) && te.Reason != "" {
		reason = te.Reason
	}
	auditErr := s.auditor.LogRejectedTransition(ctx, RejectedTransition{
		BookingID:  p.BookingID,
		ActorID:    p.ActorID,
		ActorRole:  p.ActorRole,
		Transition: p.Transition,
		Reason:     reason,
		Meta:       p.Meta,
	})
	if auditErr != nil {
		s.logger.WithError(auditErr).Error("Failed to record rejected transition")
	}
}

// afterCommit publishes the event and runs notify. Failures are logged only.
func (s *BookingService) afterCommit(ctx context.Context, event events.BookingEvent, notify func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_id": event.BookingID,
			"type":       event.Type,
		}).WithError(err).Warn("Failed to publish booking event")
	}
	notify(ctx)
}

// ============================================================================
// QUERIES
// ============================================================================

// GetBooking returns a booking visible to one of its participants
func (s *BookingService) GetBooking(ctx context.Context, id, actorID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// non-participants get the same answer as for a missing booking
	if booking == nil || !booking.IsParticipant(actorID) {
		return nil, models.ErrBookingNotFound
	}
	return booking, nil
}

// ListBookingsParams selects the bookings of an actor in one of its roles
type ListBookingsParams struct {
	ActorID uuid.UUID
	As      models.UserRole // CUSTOMER or PROVIDER
	Status  *models.BookingStatus
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// ListBookings lists the actor's bookings, newest first
func (s *BookingService) ListBookings(ctx context.Context, p ListBookingsParams) ([]models.Booking, error) {
	filter := models.BookingFilter{
		Status: p.Status,
		From:   p.From,
		To:     p.To,
		Limit:  p.Limit,
		Offset: p.Offset,
	}

	switch p.As {
	case models.UserRoleCustomer:
		filter.CustomerID = &p.ActorID
	case models.UserRoleProvider:
		filter.ProviderID = &p.ActorID
	default:
		return nil, models.NewValidationError("as", "must be CUSTOMER or PROVIDER")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return nil, models.NewValidationError("status", "unknown booking status %q", *p.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return s.bookings.List(ctx, filter)
}

// GetBookingHistory returns the audit trail of a booking, oldest first
func (s *BookingService) GetBookingHistory(ctx context.Context, id, actorID uuid.UUID) ([]models.BookingEvent, error) {
	if _, err := s.GetBooking(ctx, id, actorID); err != nil {
		return nil, err
	}
	return s.bookings.ListEvents(ctx, id)
}

// GetPaymentInstructions returns the provider's payment QR and notes to the booking's customer
func (s *BookingService) GetPaymentInstructions(ctx context.Context, id, actorID uuid.UUID) (*models.PaymentInstructions, error) {
	booking, err := s.GetBooking(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if actorID != booking.CustomerID {
		return nil, fmt.Errorf("%w: payment instructions are shown to the booking's customer", models.ErrInvalidActor)
	}

	provider, err := s.users.GetUserByID(ctx, booking.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider payment settings: %w", err)
	}

	instructions := &models.PaymentInstructions{
		BookingID:     booking.ID,
		ProviderID:    booking.ProviderID,
		PaymentStatus: booking.PaymentStatus,
	}
	if provider != nil {
		instructions.PaymentQRCode = provider.PaymentQRCode
		instructions.PaymentNotes = provider.PaymentNotes
	}
	return instructions, nil
}
