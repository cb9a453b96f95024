package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

var monday9 = time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) (*Store, model.Provider) {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	p, err := s.CreateProvider(context.Background(), model.Provider{
		Username:     "ana",
		Email:        "ana@example.com",
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return s, p
}

func request(providerID string, at time.Time, name string) model.BookingRequest {
	return model.BookingRequest{ProviderID: providerID, SlotStart: at, ClientName: name, ClientEmail: "client@example.com"}
}

func TestInsertIfAbsentConflict(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	b, err := s.InsertIfAbsent(ctx, request(p.ID, monday9, "Alice"))
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if b.Status != model.StatusScheduled || !b.SlotStart.Equal(monday9) || b.ID == "" {
		t.Fatalf("unexpected booking %+v", b)
	}

	if _, err := s.InsertIfAbsent(ctx, request(p.ID, monday9, "Bruno")); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	list, err := s.ListBookings(ctx, p.ID, monday9.Add(-time.Hour), monday9.Add(time.Hour), model.StatusScheduled)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].ClientName != "Alice" {
		t.Fatalf("expected only Alice's booking, got %+v", list)
	}
}

func TestInsertIfAbsentConcurrentSingleWinner(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertIfAbsent(ctx, request(p.ID, monday9, "Client"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, storage.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 win and %d conflicts, got %d and %d", n-1, wins, conflicts)
	}
}

func TestCancelIsIdempotentAndFreesSlot(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	b, err := s.InsertIfAbsent(ctx, request(p.ID, monday9, "Alice"))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	first, err := s.UpdateStatus(ctx, b.ID, model.StatusCancelled)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if first.Status != model.StatusCancelled || first.CancelledAt == nil {
		t.Fatalf("expected cancelled booking, got %+v", first)
	}
	second, err := s.UpdateStatus(ctx, b.ID, model.StatusCancelled)
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if !second.CancelledAt.Equal(*first.CancelledAt) {
		t.Fatalf("expected second cancel to be a no-op")
	}

	if _, err := s.UpdateStatus(ctx, b.ID, model.StatusScheduled); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	if _, err := s.InsertIfAbsent(ctx, request(p.ID, monday9, "Bruno")); err != nil {
		t.Fatalf("expected slot to be free after cancel, got %v", err)
	}
	all, err := s.ListBookings(ctx, p.ID, monday9, monday9.Add(time.Minute), "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected cancelled and new booking to coexist, got %d (%v)", len(all), err)
	}
}

func TestGetAndUpdateMissingBooking(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.GetBooking(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.UpdateStatus(ctx, "missing", model.StatusCancelled); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetRulesReplacesAll(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	first := []model.AvailabilityRule{
		{ProviderID: p.ID, Weekday: time.Monday, StartMinute: 540, EndMinute: 1020},
		{ProviderID: p.ID, Weekday: time.Tuesday, StartMinute: 540, EndMinute: 720},
	}
	if err := s.SetRules(ctx, p.ID, first); err != nil {
		t.Fatalf("set rules failed: %v", err)
	}
	second := []model.AvailabilityRule{{ProviderID: p.ID, Weekday: time.Friday, StartMinute: 600, EndMinute: 660}}
	if err := s.SetRules(ctx, p.ID, second); err != nil {
		t.Fatalf("set rules failed: %v", err)
	}

	got, err := s.ListRules(ctx, p.ID)
	if err != nil {
		t.Fatalf("list rules failed: %v", err)
	}
	if len(got) != 1 || got[0].Weekday != time.Friday || got[0].StartMinute != 600 {
		t.Fatalf("expected only the friday rule, got %+v", got)
	}

	if err := s.SetRules(ctx, p.ID, nil); err != nil {
		t.Fatalf("clearing rules failed: %v", err)
	}
	if got, _ := s.ListRules(ctx, p.ID); len(got) != 0 {
		t.Fatalf("expected no rules, got %+v", got)
	}
}

func TestSetRulesRollsBackOnInvalidRow(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	keep := []model.AvailabilityRule{{ProviderID: p.ID, Weekday: time.Monday, StartMinute: 540, EndMinute: 600}}
	if err := s.SetRules(ctx, p.ID, keep); err != nil {
		t.Fatalf("set rules failed: %v", err)
	}
	bad := []model.AvailabilityRule{
		{ProviderID: p.ID, Weekday: time.Tuesday, StartMinute: 540, EndMinute: 600},
		{ProviderID: p.ID, Weekday: time.Wednesday, StartMinute: 700, EndMinute: 600},
	}
	if err := s.SetRules(ctx, p.ID, bad); err == nil {
		t.Fatalf("expected check constraint error")
	}
	got, _ := s.ListRules(ctx, p.ID)
	if len(got) != 1 || got[0].Weekday != time.Monday {
		t.Fatalf("expected previous rules to survive, got %+v", got)
	}
}

func TestProviders(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	id, err := s.ResolveProvider(ctx, "ana")
	if err != nil || id != p.ID {
		t.Fatalf("expected %s, got %s (%v)", p.ID, id, err)
	}
	if _, err := s.ResolveProvider(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if ok, err := s.ProviderExists(ctx, p.ID); err != nil || !ok {
		t.Fatalf("expected provider to exist")
	}
	if _, err := s.CreateProvider(ctx, model.Provider{Username: "ana", Email: "other@example.com", PasswordHash: "x"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected username conflict, got %v", err)
	}
	got, err := s.GetProviderByEmail(ctx, "ana@example.com")
	if err != nil || got.Username != "ana" {
		t.Fatalf("unexpected provider %+v (%v)", got, err)
	}
}

func TestCountByProvider(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	past := monday9.Add(-48 * time.Hour)
	if _, err := s.InsertIfAbsent(ctx, request(p.ID, past, "Past")); err != nil {
		t.Fatal(err)
	}
	b, err := s.InsertIfAbsent(ctx, request(p.ID, monday9, "Future"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertIfAbsent(ctx, request(p.ID, monday9.Add(time.Hour), "Future2")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateStatus(ctx, b.ID, model.StatusCancelled); err != nil {
		t.Fatal(err)
	}

	counts, err := s.CountByProvider(ctx, p.ID, monday9.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if counts.Total != 3 || counts.Upcoming != 1 {
		t.Fatalf("expected total 3 upcoming 1, got %+v", counts)
	}

	recent, err := s.ListByProvider(ctx, p.ID, 2)
	if err != nil || len(recent) != 2 || !recent[0].SlotStart.After(recent[1].SlotStart) {
		t.Fatalf("expected newest first, got %+v (%v)", recent, err)
	}
}

func TestOutboxPublishBatch(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	b, err := s.InsertIfAbsent(ctx, request(p.ID, monday9, "Alice"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateStatus(ctx, b.ID, model.StatusCancelled); err != nil {
		t.Fatal(err)
	}

	var types []string
	n, err := s.PublishBatch(ctx, 10, func(_ context.Context, records []outbox.Record) error {
		for _, r := range records {
			types = append(types, r.EventType)
		}
		return nil
	})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 published, got %d (%v)", n, err)
	}
	if types[0] != outbox.EventBookingScheduled || types[1] != outbox.EventBookingCancelled {
		t.Fatalf("unexpected event order %v", types)
	}

	n, err = s.PublishBatch(ctx, 10, func(context.Context, []outbox.Record) error { return nil })
	if err != nil || n != 0 {
		t.Fatalf("expected nothing left, got %d (%v)", n, err)
	}
}

func TestOutboxPublishFailureKeepsRecords(t *testing.T) {
	s, p := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertIfAbsent(ctx, request(p.ID, monday9, "Alice")); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("broker down")
	if _, err := s.PublishBatch(ctx, 10, func(context.Context, []outbox.Record) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected publish error, got %v", err)
	}
	n, err := s.PublishBatch(ctx, 10, func(context.Context, []outbox.Record) error { return nil })
	if err != nil || n != 1 {
		t.Fatalf("expected record to be retried, got %d (%v)", n, err)
	}
}
