package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localserve/booking-backend/internal/models"
)

// WorkingHoursRepository persists provider working windows
type WorkingHoursRepository struct {
	db *sqlx.DB
}

// NewWorkingHoursRepository creates a new working hours repository
func NewWorkingHoursRepository(db *sqlx.DB) *WorkingHoursRepository {
	return &WorkingHoursRepository{db: db}
}

// ListByProvider returns the provider's weekly schedule ordered by weekday and start
func (r *WorkingHoursRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]models.WorkingHours, error) {
	hours := []models.WorkingHours{}
	err := r.db.SelectContext(ctx, &hours, `
		SELECT id, provider_id, weekday, to_char(start_time, 'HH24:MI') AS start_time,
		       to_char(end_time, 'HH24:MI') AS end_time, created_at
		FROM provider_working_hours
		WHERE provider_id = $1
		ORDER BY weekday, start_time
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list working hours: %w", err)
	}
	return hours, nil
}

// Replace swaps the provider's whole weekly schedule in one transaction
func (r *WorkingHoursRepository) Replace(ctx context.Context, providerID uuid.UUID, hours []models.WorkingHours) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM provider_working_hours WHERE provider_id = $1`, providerID); err != nil {
		return fmt.Errorf("failed to clear working hours: %w", err)
	}

	now := time.Now().UTC()
	for i := range hours {
		hours[i].ID = uuid.New()
		hours[i].ProviderID = providerID
		hours[i].CreatedAt = now

		_, err := tx.ExecContext(ctx, `
			INSERT INTO provider_working_hours (id, provider_id, weekday, start_time, end_time, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, hours[i].ID, providerID, int(hours[i].Weekday), hours[i].StartTime, hours[i].EndTime, now)
		if err != nil {
			return fmt.Errorf("failed to insert working hours: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit working hours: %w", err)
	}
	return nil
}
