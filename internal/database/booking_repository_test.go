package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var bookingRowColumns = []string{
	"id", "service_id", "customer_id", "provider_id", "start_time", "end_time",
	"status", "payment_status", "notes", "cancelled_by", "cancellation_reason", "created_at", "updated_at",
}

func addBookingRow(rows *sqlmock.Rows, b models.Booking) *sqlmock.Rows {
	return rows.AddRow(
		b.ID.String(), b.ServiceID.String(), b.CustomerID.String(), b.ProviderID.String(), b.StartTime, b.EndTime,
		string(b.Status), string(b.PaymentStatus), nil, nil, nil, b.CreatedAt, b.UpdatedAt,
	)
}

func sampleBooking() models.Booking {
	start := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return models.Booking{
		ID:            uuid.New(),
		ServiceID:     uuid.New(),
		CustomerID:    uuid.New(),
		ProviderID:    uuid.New(),
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func sampleEvent(b models.Booking) *models.BookingEvent {
	return &models.BookingEvent{
		ID:        uuid.New(),
		BookingID: b.ID,
		ActorID:   b.CustomerID,
		ActorRole: models.UserRoleCustomer,
		Kind:      models.BookingEventCreated,
		ToValue:   string(models.BookingStatusPending),
		CreatedAt: b.CreatedAt,
	}
}

func TestBookingRepository_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtextextended\(\$1, 0\)\)`).
			WithArgs(b.ProviderID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT id FROM bookings WHERE provider_id = \$1 AND status <> 'CANCELLED'`).
			WithArgs(b.ProviderID, b.StartTime, b.EndTime).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO bookings`).
			WithArgs(b.ID, b.ServiceID, b.CustomerID, b.ProviderID, b.StartTime, b.EndTime,
				"PENDING", "UNPAID", nil, b.CreatedAt, b.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO booking_events`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Reserve(ctx, &b, sampleEvent(b))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Overlap", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT id FROM bookings`).
			WithArgs(b.ProviderID, b.StartTime, b.EndTime).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New().String()))
		mock.ExpectRollback()

		err := repo.Reserve(ctx, &b, sampleEvent(b))
		require.ErrorIs(t, err, models.ErrOverlap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Exclusion constraint maps to overlap", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT id FROM bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})
		mock.ExpectRollback()

		err := repo.Reserve(ctx, &b, nil)
		require.ErrorIs(t, err, models.ErrOverlap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lock failure is infrastructure", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnError(fmt.Errorf("connection reset by peer"))
		mock.ExpectRollback()

		err := repo.Reserve(ctx, &b, nil)
		require.Error(t, err)
		assert.False(t, models.IsBusinessError(err))
		assert.Contains(t, err.Error(), "failed to lock provider calendar")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Event insert failure rolls back", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT id FROM bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO bookings`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO booking_events`).
			WillReturnError(fmt.Errorf("disk full"))
		mock.ExpectRollback()

		err := repo.Reserve(ctx, &b, sampleEvent(b))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert booking event")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ApplyLocked(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()
		updatedAt := b.UpdatedAt.Add(time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(b.ID).
			WillReturnRows(addBookingRow(sqlmock.NewRows(bookingRowColumns), b))
		mock.ExpectExec(`UPDATE bookings SET status = \$2, payment_status = \$3`).
			WithArgs(b.ID, "CONFIRMED", "UNPAID", nil, nil, updatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO booking_events`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		var seen models.Booking
		next, err := repo.ApplyLocked(ctx, b.ID, func(current models.Booking) (models.Booking, *models.BookingEvent, error) {
			seen = current
			current.Status = models.BookingStatusConfirmed
			current.UpdatedAt = updatedAt
			return current, sampleEvent(current), nil
		})
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusPending, seen.Status)
		assert.Equal(t, models.BookingStatusConfirmed, next.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Mutation error rolls back", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()
		b.Status = models.BookingStatusCancelled

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(b.ID).
			WillReturnRows(addBookingRow(sqlmock.NewRows(bookingRowColumns), b))
		mock.ExpectRollback()

		rejection := &models.TransitionError{Err: models.ErrInvalidState, From: "CANCELLED", To: "CONFIRMED"}
		next, err := repo.ApplyLocked(ctx, b.ID, func(current models.Booking) (models.Booking, *models.BookingEvent, error) {
			return current, nil, rejection
		})
		assert.Nil(t, next)
		assert.Same(t, rejection, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(bookingRowColumns))
		mock.ExpectRollback()

		called := false
		_, err := repo.ApplyLocked(ctx, id, func(current models.Booking) (models.Booking, *models.BookingEvent, error) {
			called = true
			return current, nil, nil
		})
		assert.True(t, errors.Is(err, models.ErrBookingNotFound))
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_Queries(t *testing.T) {
	ctx := context.Background()

	t.Run("GetByID missing returns nil", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		id := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(bookingRowColumns))

		booking, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, booking)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ListActiveForProvider", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()
		from := b.StartTime.Add(-12 * time.Hour)
		to := b.StartTime.Add(12 * time.Hour)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE provider_id = \$1 AND status <> 'CANCELLED' AND start_time < \$3 AND end_time > \$2 ORDER BY start_time`).
			WithArgs(b.ProviderID, from, to).
			WillReturnRows(addBookingRow(sqlmock.NewRows(bookingRowColumns), b))

		bookings, err := repo.ListActiveForProvider(ctx, b.ProviderID, from, to)
		require.NoError(t, err)
		require.Len(t, bookings, 1)
		assert.Equal(t, b.ID, bookings[0].ID)
		assert.Equal(t, b.StartTime, bookings[0].StartTime)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("List with filter", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()
		status := models.BookingStatusPending

		mock.ExpectQuery(`SELECT (.+) FROM "bookings" WHERE (.+"customer_id" = \$1.+"status" = \$2.+) ORDER BY "start_time" DESC`).
			WithArgs(b.CustomerID.String(), "PENDING").
			WillReturnRows(addBookingRow(sqlmock.NewRows(bookingRowColumns), b))

		bookings, err := repo.List(ctx, models.BookingFilter{CustomerID: &b.CustomerID, Status: &status})
		require.NoError(t, err)
		require.Len(t, bookings, 1)
		assert.Equal(t, b.CustomerID, bookings[0].CustomerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ListEvents", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		b := sampleBooking()
		e := sampleEvent(b)

		mock.ExpectQuery(`SELECT (.+) FROM booking_events WHERE booking_id = \$1`).
			WithArgs(b.ID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "booking_id", "actor_id", "actor_role", "kind", "from_value", "to_value", "ip_address", "user_agent", "created_at",
			}).AddRow(e.ID.String(), e.BookingID.String(), e.ActorID.String(), "CUSTOMER", "CREATED", nil, "PENDING", "203.0.113.7", nil, e.CreatedAt))

		events, err := repo.ListEvents(ctx, b.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, models.BookingEventCreated, events[0].Kind)
		require.NotNil(t, events[0].IPAddress)
		assert.Equal(t, "203.0.113.7", *events[0].IPAddress)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &pq.Error{Code: "40001"})))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
}
