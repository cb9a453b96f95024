package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// RuleStore persists weekly availability rules.
type RuleStore interface {
	ListRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error)
	// SetRules atomically replaces every rule of the provider.
	SetRules(ctx context.Context, providerID string, rules []model.AvailabilityRule) error
}

// BookingStore persists bookings. InsertIfAbsent must be a single atomic
// conditional write that fails with storage.ErrConflict when a scheduled
// booking already holds the slot.
type BookingStore interface {
	ListBookings(ctx context.Context, providerID string, from, to time.Time, status model.BookingStatus) ([]model.Booking, error)
	InsertIfAbsent(ctx context.Context, req model.BookingRequest) (model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (model.Booking, error)
	ListByProvider(ctx context.Context, providerID string, limit int) ([]model.Booking, error)
	CountByProvider(ctx context.Context, providerID string, now time.Time) (model.BookingCounts, error)
}

// ProviderDirectory resolves public usernames to provider ids.
type ProviderDirectory interface {
	ResolveProvider(ctx context.Context, username string) (string, error)
	ProviderExists(ctx context.Context, id string) (bool, error)
}
