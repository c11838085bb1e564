package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/database"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/scheduling"
	"github.com/sirupsen/logrus"
)

const maxTitleLength = 200

// ServiceStore persists catalogue services
type ServiceStore interface {
	ServiceLookup
	Create(ctx context.Context, service *models.Service) error
	Update(ctx context.Context, service *models.Service) error
	List(ctx context.Context, filter database.ServiceFilter) ([]models.Service, error)
}

// WorkingHoursStore persists provider weekly schedules
type WorkingHoursStore interface {
	WorkingHoursLookup
	Replace(ctx context.Context, providerID uuid.UUID, hours []models.WorkingHours) error
}

// CatalogueService manages provider-owned services and working hours
type CatalogueService struct {
	services ServiceStore
	hours    WorkingHoursStore
	logger   *logrus.Logger
	now      func() time.Time
}

// NewCatalogueService creates a new catalogue service
func NewCatalogueService(services ServiceStore, hours WorkingHoursStore, logger *logrus.Logger) *CatalogueService {
	return &CatalogueService{
		services: services,
		hours:    hours,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateService adds a service owned by providerID
func (s *CatalogueService) CreateService(ctx context.Context, providerID uuid.UUID, req models.CreateServiceRequest) (*models.Service, error) {
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	category, err := validateCategory(req.Category)
	if err != nil {
		return nil, err
	}
	price, err := validatePrice(req.BasePrice)
	if err != nil {
		return nil, err
	}
	if err := validateDuration(req.DurationMinutes); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	service := &models.Service{
		ID:              uuid.New(),
		ProviderID:      providerID,
		Title:           title,
		Category:        category,
		BasePrice:       price,
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.services.Create(ctx, service); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"service_id":  service.ID,
		"provider_id": providerID,
		"category":    category,
	}).Info("Service created")
	return service, nil
}

// UpdateService edits a service owned by providerID.
// Existing bookings keep the interval they were created with.
func (s *CatalogueService) UpdateService(ctx context.Context, providerID, serviceID uuid.UUID, req models.UpdateServiceRequest) (*models.Service, error) {
	service, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if service == nil || service.ProviderID != providerID {
		return nil, models.ErrServiceNotFound
	}

	if req.Title != nil {
		if service.Title, err = validateTitle(*req.Title); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		if service.Category, err = validateCategory(*req.Category); err != nil {
			return nil, err
		}
	}
	if req.BasePrice != nil {
		if service.BasePrice, err = validatePrice(*req.BasePrice); err != nil {
			return nil, err
		}
	}
	if req.DurationMinutes != nil {
		if err := validateDuration(*req.DurationMinutes); err != nil {
			return nil, err
		}
		service.DurationMinutes = *req.DurationMinutes
	}
	if req.IsActive != nil {
		service.IsActive = *req.IsActive
	}
	service.UpdatedAt = s.now().UTC()

	if err := s.services.Update(ctx, service); err != nil {
		return nil, err
	}
	return service, nil
}

// GetService returns a service by id
func (s *CatalogueService) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	service, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, models.ErrServiceNotFound
	}
	return service, nil
}

// ListServicesParams filters the public catalogue
type ListServicesParams struct {
	Category   string
	ProviderID *uuid.UUID
	Limit      int
	Offset     int
}

// ListServices lists active services
func (s *CatalogueService) ListServices(ctx context.Context, p ListServicesParams) ([]models.Service, error) {
	filter := database.ServiceFilter{
		ProviderID: p.ProviderID,
		ActiveOnly: true,
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
	if p.Category != "" {
		category, err := validateCategory(p.Category)
		if err != nil {
			return nil, err
		}
		filter.Category = &category
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
	return s.services.List(ctx, filter)
}

// GetWorkingHours returns the provider's weekly schedule
func (s *CatalogueService) GetWorkingHours(ctx context.Context, providerID uuid.UUID) ([]models.WorkingHours, error) {
	return s.hours.ListByProvider(ctx, providerID)
}

// ReplaceWorkingHours validates and stores a provider's whole weekly schedule.
// An empty schedule falls back to the default business hours.
func (s *CatalogueService) ReplaceWorkingHours(ctx context.Context, providerID uuid.UUID, req models.ReplaceWorkingHoursRequest) ([]models.WorkingHours, error) {
	windows, err := scheduling.ValidateWindows(req.Windows)
	if err != nil {
		return nil, err
	}

	hours := make([]models.WorkingHours, 0, len(windows))
	for _, w := range windows {
		hours = append(hours, models.WorkingHours{
			Weekday:   w.Weekday,
			StartTime: models.FormatClock(w.Start),
			EndTime:   models.FormatClock(w.End),
		})
	}

	if err := s.hours.Replace(ctx, providerID, hours); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"provider_id": providerID,
		"windows":     len(hours),
	}).Info("Working hours replaced")
	return hours, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", models.NewValidationError("title", "is required")
	}
	if len(title) > maxTitleLength {
		return "", models.NewValidationError("title", "must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

func validateCategory(value string) (models.ServiceCategory, error) {
	category := models.ServiceCategory(strings.ToUpper(strings.TrimSpace(value)))
	if !category.IsValid() {
		return "", models.NewValidationError("category", "unknown category %q", value)
	}
	return category, nil
}

// validatePrice accepts a non-negative decimal with at most two fraction digits
func validatePrice(value string) (string, error) {
	value = strings.TrimSpace(value)
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil || amount < 0 {
		return "", models.NewValidationError("base_price", "must be a non-negative decimal amount")
	}
	if dot := strings.IndexByte(value, '.'); dot >= 0 && len(value)-dot-1 > 2 {
		return "", models.NewValidationError("base_price", "may have at most two decimal places")
	}
	return value, nil
}

func validateDuration(minutes int) error {
	if minutes <= 0 {
		return models.NewValidationError("duration_minutes", "must be greater than zero")
	}
	if minutes > 24*60 {
		return models.NewValidationError("duration_minutes", "must be at most one day")
	}
	return nil
}
