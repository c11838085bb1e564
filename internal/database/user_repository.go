package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localserve/booking-backend/internal/models"
)

const userColumns = `id, role, phone, payment_qr_code, payment_notes, created_at, updated_at`

// UserRepository handles user database operations.
// Accounts live with the identity provider; this table mirrors them and
// stores marketplace settings.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// EnsureUser creates the mirror row on first sight and refreshes the role claim afterwards
func (r *UserRepository) EnsureUser(ctx context.Context, id uuid.UUID, role models.UserRole) (*models.User, error) {
	now := time.Now().UTC()

	var user models.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
		    updated_at = CASE WHEN users.role = EXCLUDED.role THEN users.updated_at ELSE EXCLUDED.updated_at END
		RETURNING `+userColumns,
		id, role, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID, nil when unknown
func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UpdateSettings applies the non-nil fields of req and returns the stored user
func (r *UserRepository) UpdateSettings(ctx context.Context, id uuid.UUID, req models.UpdateUserSettingsRequest) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users
		SET phone = COALESCE($2, phone),
		    payment_qr_code = COALESCE($3, payment_qr_code),
		    payment_notes = COALESCE($4, payment_notes),
		    updated_at = $5
		WHERE id = $1
		RETURNING `+userColumns,
		id, req.Phone, req.PaymentQRCode, req.PaymentNotes, time.Now().UTC(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user settings: %w", err)
	}
	return &user, nil
}
