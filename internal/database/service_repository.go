package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localserve/booking-backend/internal/models"
)

const serviceColumns = `id, provider_id, title, category, base_price, duration_minutes, is_active, created_at, updated_at`

// ServiceFilter narrows catalogue listings
type ServiceFilter struct {
	Category   *models.ServiceCategory
	ProviderID *uuid.UUID
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ServiceRepository persists the service catalogue
type ServiceRepository struct {
	db *sqlx.DB
}

// NewServiceRepository creates a new service repository
func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// Create inserts a new service
func (r *ServiceRepository) Create(ctx context.Context, service *models.Service) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		service.ID, service.ProviderID, service.Title, service.Category, service.BasePrice,
		service.DurationMinutes, service.IsActive, service.CreatedAt, service.UpdatedAt,
	)
	if pgErrorCode(err) == pqUniqueViolation {
		return duplicateTitle(service.Title)
	}
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func duplicateTitle(title string) error {
	return models.NewValidationError("title", "you already offer a service titled %q", title)
}

// GetByID returns the service or nil when it does not exist
func (r *ServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var service models.Service
	err := r.db.GetContext(ctx, &service, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

// Update saves the editable fields of a service owned by service.ProviderID.
// Existing bookings keep their own interval regardless of duration edits.
func (r *ServiceRepository) Update(ctx context.Context, service *models.Service) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE services
		SET title = $3, category = $4, base_price = $5, duration_minutes = $6, is_active = $7, updated_at = $8
		WHERE id = $1 AND provider_id = $2
	`,
		service.ID, service.ProviderID, service.Title, service.Category, service.BasePrice,
		service.DurationMinutes, service.IsActive, service.UpdatedAt,
	)
	if pgErrorCode(err) == pqUniqueViolation {
		return duplicateTitle(service.Title)
	}
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrServiceNotFound
	}
	return nil
}

// List returns services matching filter ordered by title
func (r *ServiceRepository) List(ctx context.Context, filter ServiceFilter) ([]models.Service, error) {
	ds := goqu.Dialect("postgres").
		From("services").
		Select("id", "provider_id", "title", "category", "base_price", "duration_minutes", "is_active", "created_at", "updated_at").
		Prepared(true)

	if filter.Category != nil {
		ds = ds.Where(goqu.Ex{"category": string(*filter.Category)})
	}
	if filter.ProviderID != nil {
		ds = ds.Where(goqu.Ex{"provider_id": filter.ProviderID.String()})
	}
	if filter.ActiveOnly {
		ds = ds.Where(goqu.Ex{"is_active": true})
	}

	ds = ds.Order(goqu.I("title").Asc(), goqu.I("id").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build service list query: %w", err)
	}

	services := []models.Service{}
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}
