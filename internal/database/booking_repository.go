package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localserve/booking-backend/internal/models"
)

const bookingColumns = `id, service_id, customer_id, provider_id, start_time, end_time,
	status, payment_status, notes, cancelled_by, cancellation_reason, created_at, updated_at`

var bookingColumnList = []interface{}{
	"id", "service_id", "customer_id", "provider_id", "start_time", "end_time",
	"status", "payment_status", "notes", "cancelled_by", "cancellation_reason", "created_at", "updated_at",
}

// BookingRepository persists bookings and their audit trail
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ============================================================================
// CONFLICT GUARD
// ============================================================================

// Reserve inserts booking if its interval is free on the provider's calendar.
//
// The check and the insert run in one transaction holding a transaction-scoped
// advisory lock keyed by provider, so concurrent reservations for the same
// provider are serialized while other providers proceed in parallel. The
// bookings_no_overlap exclusion constraint backs the same rule at the schema
// level. Returns models.ErrOverlap when the interval is taken.
func (r *BookingRepository) Reserve(ctx context.Context, booking *models.Booking, event *models.BookingEvent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		booking.ProviderID.String(),
	); err != nil {
		return fmt.Errorf("failed to lock provider calendar: %w", err)
	}

	var conflictID uuid.UUID
	err = tx.GetContext(ctx, &conflictID, `
		SELECT id FROM bookings
		WHERE provider_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time < $3
		  AND end_time > $2
		LIMIT 1
	`, booking.ProviderID, booking.StartTime, booking.EndTime)
	switch {
	case err == nil:
		return fmt.Errorf("%w: overlaps booking %s", models.ErrOverlap, conflictID)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check overlapping bookings: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, service_id, customer_id, provider_id, start_time, end_time,
			status, payment_status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		booking.ID, booking.ServiceID, booking.CustomerID, booking.ProviderID,
		booking.StartTime, booking.EndTime, booking.Status, booking.PaymentStatus,
		booking.Notes, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pqExclusionViolation {
			return fmt.Errorf("%w: rejected by exclusion constraint", models.ErrOverlap)
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if event != nil {
		if err := insertBookingEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// ApplyLocked locks the booking row, hands the freshly read state to mutate and
// persists the result together with its audit event. Any error from mutate
// rolls the transaction back and is returned unchanged.
func (r *BookingRepository) ApplyLocked(ctx context.Context, id uuid.UUID, mutate models.BookingMutation) (*models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback()

	var current models.Booking
	err = tx.GetContext(ctx, &current, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}

	next, event, err := mutate(current)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2, payment_status = $3, cancelled_by = $4, cancellation_reason = $5, updated_at = $6
		WHERE id = $1
	`, current.ID, next.Status, next.PaymentStatus, next.CancelledBy, next.CancellationReason, next.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, models.ErrBookingNotFound
	}

	if event != nil {
		if err := insertBookingEvent(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return &next, nil
}

func insertBookingEvent(ctx context.Context, tx *sqlx.Tx, event *models.BookingEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO booking_events (
			id, booking_id, actor_id, actor_role, kind, from_value, to_value, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		event.ID, event.BookingID, event.ActorID, event.ActorRole, event.Kind,
		event.FromValue, event.ToValue, event.IPAddress, event.UserAgent, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking event: %w", err)
	}
	return nil
}

// ============================================================================
// QUERIES
// ============================================================================

// GetByID returns the booking or nil when it does not exist
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ListActiveForProvider returns the provider's non-cancelled bookings intersecting [from, to)
func (r *BookingRepository) ListActiveForProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider bookings: %w", err)
	}
	return bookings, nil
}

// List returns bookings matching filter, most recent start first
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	ds := goqu.Dialect("postgres").
		From("bookings").
		Select(bookingColumnList...).
		Prepared(true)

	if filter.CustomerID != nil {
		ds = ds.Where(goqu.Ex{"customer_id": filter.CustomerID.String()})
	}
	if filter.ProviderID != nil {
		ds = ds.Where(goqu.Ex{"provider_id": filter.ProviderID.String()})
	}
	if filter.Status != nil {
		ds = ds.Where(goqu.Ex{"status": string(*filter.Status)})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("end_time").Gt(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("start_time").Lt(*filter.To))
	}

	ds = ds.Order(goqu.I("start_time").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking list query: %w", err)
	}

	bookings := []models.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListEvents returns the audit trail of a booking, oldest first
func (r *BookingRepository) ListEvents(ctx context.Context, bookingID uuid.UUID) ([]models.BookingEvent, error) {
	events := []models.BookingEvent{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, booking_id, actor_id, actor_role, kind, from_value, to_value, ip_address, user_agent, created_at
		FROM booking_events
		WHERE booking_id = $1
		ORDER BY created_at, id
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking events: %w", err)
	}
	return events, nil
}

// ListOverdueConfirmed returns confirmed bookings that ended before cutoff and were never completed
func (r *BookingRepository) ListOverdueConfirmed(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'CONFIRMED' AND end_time < $1
		ORDER BY end_time
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue bookings: %w", err)
	}
	return bookings, nil
}
