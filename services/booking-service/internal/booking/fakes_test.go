package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

// memStore is an in-memory RuleStore, BookingStore and ProviderDirectory.
type memStore struct {
	mu        sync.Mutex
	providers map[string]string // username -> id
	rules     map[string][]model.AvailabilityRule
	bookings  map[string]model.Booking
	order     []string

	// hooks for failure injection
	listBookingsErr error
	insertErr       error
	hideBookings    bool
	block           bool
	delay           time.Duration
	// insertGate holds every InsertIfAbsent until all callers have arrived.
	insertGate *sync.WaitGroup
}

func newMemStore() *memStore {
	return &memStore{
		providers: map[string]string{},
		rules:     map[string][]model.AvailabilityRule{},
		bookings:  map[string]model.Booking{},
	}
}

func (m *memStore) addProvider(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.providers[username] = id
	return id
}

func (m *memStore) wait(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *memStore) ResolveProvider(ctx context.Context, username string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.providers[username]
	if !ok {
		return "", storage.ErrNotFound
	}
	return id, nil
}

func (m *memStore) ProviderExists(ctx context.Context, id string) (bool, error) {
	if err := m.wait(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.providers {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AvailabilityRule(nil), m.rules[providerID]...), nil
}

func (m *memStore) SetRules(_ context.Context, providerID string, rules []model.AvailabilityRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[providerID] = append([]model.AvailabilityRule(nil), rules...)
	return nil
}

func (m *memStore) ListBookings(ctx context.Context, providerID string, from, to time.Time, status model.BookingStatus) ([]model.Booking, error) {
	if m.listBookingsErr != nil {
		return nil, m.listBookingsErr
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.hideBookings {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, id := range m.order {
		b := m.bookings[id]
		if b.ProviderID != providerID || b.SlotStart.Before(from) || !b.SlotStart.Before(to) {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out, nil
}

func (m *memStore) InsertIfAbsent(_ context.Context, req model.BookingRequest) (model.Booking, error) {
	if m.insertErr != nil {
		return model.Booking{}, m.insertErr
	}
	if m.insertGate != nil {
		m.insertGate.Done()
		m.insertGate.Wait()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ProviderID == req.ProviderID && b.Status == model.StatusScheduled && b.SlotStart.Equal(req.SlotStart) {
			return model.Booking{}, storage.ErrConflict
		}
	}
	b := model.Booking{
		ID:          uuid.NewString(),
		ProviderID:  req.ProviderID,
		SlotStart:   req.SlotStart,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Status:      model.StatusScheduled,
		CreatedAt:   time.Now(),
	}
	m.bookings[b.ID] = b
	m.order = append(m.order, b.ID)
	return b, nil
}

func (m *memStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	return b, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, status model.BookingStatus) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	if b.Status == status {
		return b, nil
	}
	if status != model.StatusCancelled {
		return model.Booking{}, storage.ErrInvalidTransition
	}
	now := time.Now()
	b.Status = status
	b.CancelledAt = &now
	m.bookings[id] = b
	return b, nil
}

func (m *memStore) ListByProvider(_ context.Context, providerID string, limit int) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.ProviderID == providerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.After(out[j].SlotStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountByProvider(ctx context.Context, providerID string, now time.Time) (model.BookingCounts, error) {
	if err := m.wait(ctx); err != nil {
		return model.BookingCounts{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var c model.BookingCounts
	for _, b := range m.bookings {
		if b.ProviderID != providerID {
			continue
		}
		c.Total++
		if b.Upcoming(now) {
			c.Upcoming++
		}
	}
	return c, nil
}
