package lifecycle

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	customerID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	providerID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	strangerID = uuid.MustParse("33333333-3333-3333-3333-333333333333")

	bookingStart = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	bookingEnd   = bookingStart.Add(time.Hour)
	beforeStart  = bookingStart.Add(-48 * time.Hour)
)

var (
	customer = Actor{ID: customerID, Role: models.UserRoleCustomer}
	provider = Actor{ID: providerID, Role: models.UserRoleProvider}
	stranger = Actor{ID: strangerID, Role: models.UserRoleCustomer}
	admin    = Actor{ID: providerID, Role: models.UserRoleAdmin}
)

func newBooking(status models.BookingStatus, payment models.PaymentStatus) models.Booking {
	return models.Booking{
		ID:            uuid.New(),
		ServiceID:     uuid.New(),
		CustomerID:    customerID,
		ProviderID:    providerID,
		StartTime:     bookingStart,
		EndTime:       bookingEnd,
		Status:        status,
		PaymentStatus: payment,
	}
}

func strPtr(s string) *string { return &s }

func TestApply_StatusTransitions(t *testing.T) {
	m := NewMachine(Policy{})

	tests := []struct {
		name    string
		from    models.BookingStatus
		to      models.BookingStatus
		actor   Actor
		now     time.Time
		wantErr error
	}{
		{"provider confirms pending", models.BookingStatusPending, models.BookingStatusConfirmed, provider, beforeStart, nil},
		{"customer cannot confirm", models.BookingStatusPending, models.BookingStatusConfirmed, customer, beforeStart, models.ErrInvalidActor},
		{"stranger cannot confirm", models.BookingStatusPending, models.BookingStatusConfirmed, stranger, beforeStart, models.ErrInvalidActor},
		{"admin holds no relationship", models.BookingStatusPending, models.BookingStatusCancelled, admin, beforeStart, models.ErrInvalidActor},
		{"customer cancels pending", models.BookingStatusPending, models.BookingStatusCancelled, customer, beforeStart, nil},
		{"provider cancels pending", models.BookingStatusPending, models.BookingStatusCancelled, provider, beforeStart, nil},
		{"provider cancels confirmed", models.BookingStatusConfirmed, models.BookingStatusCancelled, provider, beforeStart, nil},
		{"customer cannot cancel confirmed by default", models.BookingStatusConfirmed, models.BookingStatusCancelled, customer, beforeStart, models.ErrInvalidActor},
		{"complete before end is not due", models.BookingStatusConfirmed, models.BookingStatusCompleted, provider, bookingEnd.Add(-time.Minute), models.ErrNotYetDue},
		{"complete at end", models.BookingStatusConfirmed, models.BookingStatusCompleted, provider, bookingEnd, nil},
		{"customer cannot complete", models.BookingStatusConfirmed, models.BookingStatusCompleted, customer, bookingEnd, models.ErrInvalidActor},
		{"pending cannot complete", models.BookingStatusPending, models.BookingStatusCompleted, provider, bookingEnd, models.ErrInvalidState},
		{"cancelled cannot be confirmed", models.BookingStatusCancelled, models.BookingStatusConfirmed, provider, beforeStart, models.ErrInvalidState},
		{"cancelled cannot be cancelled again", models.BookingStatusCancelled, models.BookingStatusCancelled, provider, beforeStart, models.ErrInvalidState},
		{"completed is terminal", models.BookingStatusCompleted, models.BookingStatusCancelled, provider, bookingEnd, models.ErrInvalidState},
		{"confirmed cannot go back to pending", models.BookingStatusConfirmed, models.BookingStatusPending, provider, beforeStart, models.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := newBooking(tt.from, models.PaymentStatusUnpaid)
			next, err := m.Apply(current, tt.actor, models.StatusTransition(tt.to), tt.now)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, current, next, "rejected transition must not change the booking")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, next.Status)
			assert.Equal(t, tt.now, next.UpdatedAt)
		})
	}
}

func TestApply_PaymentTransitions(t *testing.T) {
	m := NewMachine(Policy{})

	tests := []struct {
		name    string
		status  models.BookingStatus
		from    models.PaymentStatus
		to      models.PaymentStatus
		actor   Actor
		wantErr error
	}{
		{"customer marks paid", models.BookingStatusConfirmed, models.PaymentStatusUnpaid, models.PaymentStatusCustomerMarkedPaid, customer, nil},
		{"customer marks paid while pending", models.BookingStatusPending, models.PaymentStatusUnpaid, models.PaymentStatusCustomerMarkedPaid, customer, nil},
		{"provider cannot mark paid for customer", models.BookingStatusConfirmed, models.PaymentStatusUnpaid, models.PaymentStatusCustomerMarkedPaid, provider, models.ErrInvalidActor},
		{"provider confirms payment", models.BookingStatusConfirmed, models.PaymentStatusCustomerMarkedPaid, models.PaymentStatusProviderConfirmed, provider, nil},
		{"provider confirms payment after completion", models.BookingStatusCompleted, models.PaymentStatusCustomerMarkedPaid, models.PaymentStatusProviderConfirmed, provider, nil},
		{"customer cannot confirm own payment", models.BookingStatusConfirmed, models.PaymentStatusCustomerMarkedPaid, models.PaymentStatusProviderConfirmed, customer, models.ErrInvalidActor},
		{"provider cannot skip customer mark", models.BookingStatusConfirmed, models.PaymentStatusUnpaid, models.PaymentStatusProviderConfirmed, provider, models.ErrInvalidState},
		{"confirmed payment never reverts", models.BookingStatusConfirmed, models.PaymentStatusProviderConfirmed, models.PaymentStatusUnpaid, provider, models.ErrInvalidState},
		{"marked paid never reverts", models.BookingStatusConfirmed, models.PaymentStatusCustomerMarkedPaid, models.PaymentStatusUnpaid, customer, models.ErrInvalidState},
		{"payment frozen when cancelled", models.BookingStatusCancelled, models.PaymentStatusUnpaid, models.PaymentStatusCustomerMarkedPaid, customer, models.ErrInvalidState},
		{"stranger cannot mark paid", models.BookingStatusConfirmed, models.PaymentStatusUnpaid, models.PaymentStatusCustomerMarkedPaid, stranger, models.ErrInvalidActor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := newBooking(tt.status, tt.from)
			next, err := m.Apply(current, tt.actor, models.PaymentTransition(tt.to), beforeStart)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, current, next)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, next.PaymentStatus)
			assert.Equal(t, tt.status, next.Status, "payment transitions leave status alone")
		})
	}
}

func TestApply_FullHappyPath(t *testing.T) {
	m := NewMachine(Policy{})
	b := newBooking(models.BookingStatusPending, models.PaymentStatusUnpaid)

	var err error
	b, err = m.Apply(b, provider, models.StatusTransition(models.BookingStatusConfirmed), beforeStart)
	require.NoError(t, err)
	b, err = m.Apply(b, customer, models.PaymentTransition(models.PaymentStatusCustomerMarkedPaid), beforeStart)
	require.NoError(t, err)
	b, err = m.Apply(b, provider, models.PaymentTransition(models.PaymentStatusProviderConfirmed), beforeStart)
	require.NoError(t, err)

	_, err = m.Apply(b, provider, models.StatusTransition(models.BookingStatusCompleted), bookingStart.Add(30*time.Minute))
	require.ErrorIs(t, err, models.ErrNotYetDue)

	b, err = m.Apply(b, provider, models.StatusTransition(models.BookingStatusCompleted), bookingEnd.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCompleted, b.Status)
	assert.Equal(t, models.PaymentStatusProviderConfirmed, b.PaymentStatus)
}

func TestApply_CancelRecordsActorAndReason(t *testing.T) {
	m := NewMachine(Policy{})
	b := newBooking(models.BookingStatusPending, models.PaymentStatusUnpaid)

	tr := models.StatusTransition(models.BookingStatusCancelled)
	tr.Reason = strPtr("found another provider")

	next, err := m.Apply(b, customer, tr, beforeStart)
	require.NoError(t, err)
	require.NotNil(t, next.CancelledBy)
	assert.Equal(t, customerID, *next.CancelledBy)
	assert.Equal(t, "found another provider", *next.CancellationReason)
}

func TestApply_ExpectedFromMismatchIsInvalidState(t *testing.T) {
	m := NewMachine(Policy{})
	b := newBooking(models.BookingStatusCancelled, models.PaymentStatusUnpaid)

	tr := models.PaymentTransition(models.PaymentStatusCustomerMarkedPaid)
	tr.ExpectedFrom = strPtr(string(models.PaymentStatusUnpaid))
	_, err := m.Apply(b, customer, tr, beforeStart)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	b = newBooking(models.BookingStatusConfirmed, models.PaymentStatusUnpaid)
	tr = models.StatusTransition(models.BookingStatusCancelled)
	tr.ExpectedFrom = strPtr(string(models.BookingStatusPending))
	_, err = m.Apply(b, provider, tr, beforeStart)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestApply_CustomerCancelPolicy(t *testing.T) {
	m := NewMachine(Policy{CustomerCancelConfirmed: true, CustomerCancelCutoff: 24 * time.Hour})
	b := newBooking(models.BookingStatusConfirmed, models.PaymentStatusUnpaid)
	cancel := models.StatusTransition(models.BookingStatusCancelled)

	t.Run("Inside window", func(t *testing.T) {
		next, err := m.Apply(b, customer, cancel, bookingStart.Add(-25*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, next.Status)
	})

	t.Run("At deadline", func(t *testing.T) {
		_, err := m.Apply(b, customer, cancel, bookingStart.Add(-24*time.Hour))
		assert.NoError(t, err)
	})

	t.Run("Too close to start", func(t *testing.T) {
		_, err := m.Apply(b, customer, cancel, bookingStart.Add(-23*time.Hour))
		assert.ErrorIs(t, err, models.ErrInvalidActor)
	})

	t.Run("Provider unaffected", func(t *testing.T) {
		_, err := m.Apply(b, provider, cancel, bookingStart.Add(-time.Hour))
		assert.NoError(t, err)
	})
}

func TestApply_ProviderAccountBookingAsCustomer(t *testing.T) {
	m := NewMachine(Policy{})
	b := newBooking(models.BookingStatusPending, models.PaymentStatusUnpaid)

	// the customer's token says PROVIDER because they also sell services
	asProvider := Actor{ID: customerID, Role: models.UserRoleProvider}
	_, err := m.Apply(b, asProvider, models.StatusTransition(models.BookingStatusConfirmed), beforeStart)
	assert.ErrorIs(t, err, models.ErrInvalidActor)

	_, err = m.Apply(b, asProvider, models.PaymentTransition(models.PaymentStatusCustomerMarkedPaid), beforeStart)
	assert.NoError(t, err)
}

func TestApply_RoleClaimMustMatchParty(t *testing.T) {
	m := NewMachine(Policy{})
	confirm := models.StatusTransition(models.BookingStatusConfirmed)

	tests := []struct {
		name  string
		actor Actor
		tr    models.Transition
	}{
		{"admin token with the provider's id", Actor{ID: providerID, Role: models.UserRoleAdmin}, confirm},
		{"customer token with the provider's id", Actor{ID: providerID, Role: models.UserRoleCustomer}, confirm},
		{"admin token with the customer's id", Actor{ID: customerID, Role: models.UserRoleAdmin}, models.PaymentTransition(models.PaymentStatusCustomerMarkedPaid)},
		{"missing role", Actor{ID: providerID}, confirm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooking(models.BookingStatusPending, models.PaymentStatusUnpaid)
			next, err := m.Apply(b, tt.actor, tt.tr, beforeStart)
			assert.ErrorIs(t, err, models.ErrInvalidActor)
			assert.Equal(t, b, next)
		})
	}
}

func TestApply_UnknownTargets(t *testing.T) {
	m := NewMachine(Policy{})
	b := newBooking(models.BookingStatusPending, models.PaymentStatusUnpaid)

	_, err := m.Apply(b, provider, models.Transition{Kind: models.TransitionKindStatus, To: "ARCHIVED"}, beforeStart)
	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = m.Apply(b, provider, models.Transition{Kind: "REFUND", To: "UNPAID"}, beforeStart)
	assert.ErrorAs(t, err, &ve)
}

var statusRank = map[models.BookingStatus]int{
	models.BookingStatusPending:   0,
	models.BookingStatusConfirmed: 1,
	models.BookingStatusCompleted: 2,
	models.BookingStatusCancelled: 2,
}

var paymentRank = map[models.PaymentStatus]int{
	models.PaymentStatusUnpaid:             0,
	models.PaymentStatusCustomerMarkedPaid: 1,
	models.PaymentStatusProviderConfirmed:  2,
}

func TestApply_RandomSequencesStayMonotonic(t *testing.T) {
	m := NewMachine(Policy{CustomerCancelConfirmed: true, CustomerCancelCutoff: time.Hour})
	rng := rand.New(rand.NewSource(42))

	actors := []Actor{customer, provider, stranger, admin}
	statuses := []models.BookingStatus{
		models.BookingStatusPending, models.BookingStatusConfirmed,
		models.BookingStatusCompleted, models.BookingStatusCancelled,
	}
	payments := []models.PaymentStatus{
		models.PaymentStatusUnpaid, models.PaymentStatusCustomerMarkedPaid, models.PaymentStatusProviderConfirmed,
	}

	for run := 0; run < 200; run++ {
		b := newBooking(models.BookingStatusPending, models.PaymentStatusUnpaid)
		for step := 0; step < 30; step++ {
			var tr models.Transition
			if rng.Intn(2) == 0 {
				tr = models.StatusTransition(statuses[rng.Intn(len(statuses))])
			} else {
				tr = models.PaymentTransition(payments[rng.Intn(len(payments))])
			}
			now := beforeStart.Add(time.Duration(rng.Intn(96)) * time.Hour)

			next, err := m.Apply(b, actors[rng.Intn(len(actors))], tr, now)
			if err != nil {
				assert.True(t, models.IsBusinessError(err), "unexpected error kind: %v", err)
				assert.Equal(t, b, next)
				continue
			}

			require.GreaterOrEqual(t, statusRank[next.Status], statusRank[b.Status])
			require.GreaterOrEqual(t, paymentRank[next.PaymentStatus], paymentRank[b.PaymentStatus])
			if b.Status.IsTerminal() {
				require.Equal(t, b.Status, next.Status)
			}
			if b.Status == models.BookingStatusCancelled {
				require.Equal(t, b.PaymentStatus, next.PaymentStatus)
			}
			b = next
		}
	}
}
