package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/database"
	"github.com/localserve/booking-backend/internal/events"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memBookingStore is an in-memory BookingStore. A single mutex plays the part
// of the per-provider lock and the row lock of the real store.
type memBookingStore struct {
	mu         sync.Mutex
	bookings   map[uuid.UUID]models.Booking
	events     []models.BookingEvent
	reserveErr error
	failNext   []error // returned by the next calls before doing any work
}

func newMemBookingStore() *memBookingStore {
	return &memBookingStore{bookings: make(map[uuid.UUID]models.Booking)}
}

func (m *memBookingStore) popFailure() error {
	if len(m.failNext) == 0 {
		return nil
	}
	err := m.failNext[0]
	m.failNext = m.failNext[1:]
	return err
}

func (m *memBookingStore) Reserve(_ context.Context, b *models.Booking, e *models.BookingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.popFailure(); err != nil {
		return err
	}
	if m.reserveErr != nil {
		return m.reserveErr
	}
	for _, existing := range m.bookings {
		if existing.ProviderID == b.ProviderID &&
			existing.Status != models.BookingStatusCancelled &&
			existing.Interval().Overlaps(b.Interval()) {
			return models.ErrOverlap
		}
	}
	m.bookings[b.ID] = *b
	if e != nil {
		m.events = append(m.events, *e)
	}
	return nil
}

func (m *memBookingStore) ApplyLocked(_ context.Context, id uuid.UUID, mutate models.BookingMutation) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.popFailure(); err != nil {
		return nil, err
	}
	current, ok := m.bookings[id]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	next, event, err := mutate(current)
	if err != nil {
		return nil, err
	}
	m.bookings[id] = next
	if event != nil {
		m.events = append(m.events, *event)
	}
	return &next, nil
}

func (m *memBookingStore) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memBookingStore) ListActiveForProvider(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := models.Interval{Start: from, End: to}
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.Status != models.BookingStatusCancelled && b.Interval().Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookingStore) List(_ context.Context, f models.BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Booking{}
	for _, b := range m.bookings {
		if f.CustomerID != nil && b.CustomerID != *f.CustomerID {
			continue
		}
		if f.ProviderID != nil && b.ProviderID != *f.ProviderID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memBookingStore) ListEvents(_ context.Context, bookingID uuid.UUID) ([]models.BookingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.BookingEvent{}
	for _, e := range m.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memBookingStore) ListOverdueConfirmed(_ context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.Status == models.BookingStatusConfirmed && b.EndTime.Before(cutoff) && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookingStore) activeCount(providerID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.Status != models.BookingStatusCancelled {
			n++
		}
	}
	return n
}

type memServiceStore struct {
	mu       sync.Mutex
	services map[uuid.UUID]models.Service
	lastList database.ServiceFilter
}

func newMemServiceStore(services ...models.Service) *memServiceStore {
	m := &memServiceStore{services: make(map[uuid.UUID]models.Service)}
	for _, s := range services {
		m.services[s.ID] = s
	}
	return m
}

func (m *memServiceStore) GetByID(_ context.Context, id uuid.UUID) (*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.services[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memServiceStore) Create(_ context.Context, s *models.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services[s.ID] = *s
	return nil
}

func (m *memServiceStore) Update(_ context.Context, s *models.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.services[s.ID]
	if !ok || existing.ProviderID != s.ProviderID {
		return models.ErrServiceNotFound
	}
	m.services[s.ID] = *s
	return nil
}

func (m *memServiceStore) List(_ context.Context, f database.ServiceFilter) ([]models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastList = f
	out := []models.Service{}
	for _, s := range m.services {
		if f.Category != nil && s.Category != *f.Category {
			continue
		}
		if f.ActiveOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type memWorkingHours struct {
	mu    sync.Mutex
	hours map[uuid.UUID][]models.WorkingHours
}

func newMemWorkingHours() *memWorkingHours {
	return &memWorkingHours{hours: make(map[uuid.UUID][]models.WorkingHours)}
}

func (m *memWorkingHours) ListByProvider(_ context.Context, providerID uuid.UUID) ([]models.WorkingHours, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.WorkingHours{}, m.hours[providerID]...), nil
}

func (m *memWorkingHours) Replace(_ context.Context, providerID uuid.UUID, hours []models.WorkingHours) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range hours {
		hours[i].ID = uuid.New()
		hours[i].ProviderID = providerID
	}
	m.hours[providerID] = append([]models.WorkingHours{}, hours...)
	return nil
}

type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newMemUserStore(users ...models.User) *memUserStore {
	m := &memUserStore{users: make(map[uuid.UUID]models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUserStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memUserStore) EnsureUser(_ context.Context, id uuid.UUID, role models.UserRole) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[id]
	u.ID = id
	u.Role = role
	m.users[id] = u
	return &u, nil
}

func (m *memUserStore) UpdateSettings(_ context.Context, id uuid.UUID, req models.UpdateUserSettingsRequest) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	if req.Phone != nil {
		u.Phone = req.Phone
	}
	if req.PaymentQRCode != nil {
		u.PaymentQRCode = req.PaymentQRCode
	}
	if req.PaymentNotes != nil {
		u.PaymentNotes = req.PaymentNotes
	}
	m.users[id] = u
	return &u, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingAuditor struct {
	mu       sync.Mutex
	rejected []RejectedTransition
}

func (a *recordingAuditor) LogRejectedTransition(_ context.Context, r RejectedTransition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rejected = append(a.rejected, r)
	return nil
}

type recordingNotifier struct {
	mu          sync.Mutex
	created     int
	transitions []models.Transition
}

func (n *recordingNotifier) BookingCreated(context.Context, models.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created++
}

func (n *recordingNotifier) BookingTransitioned(_ context.Context, _ models.Booking, t models.Transition, _ uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, t)
}

type recordingGateway struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (g *recordingGateway) Send(_ context.Context, phone, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return g.err
	}
	if g.sent == nil {
		g.sent = make(map[string][]string)
	}
	g.sent[phone] = append(g.sent[phone], message)
	return nil
}

func (g *recordingGateway) GetName() string { return "recording" }
