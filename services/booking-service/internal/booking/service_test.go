package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Sunday noon; the next day is Monday 2026-01-26.
var sundayNoon = time.Date(2026, 1, 25, 12, 0, 0, 0, time.UTC)

var (
	monday9  = time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC)
	monday10 = time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc        *Service
	store      *memStore
	providerID string
	metrics    *metrics.Metrics
}

// newFixture builds a service for provider "ana" with a Monday 09:00-11:00 rule.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := newMemStore()
	id := store.addProvider("ana")
	store.rules[id] = []model.AvailabilityRule{{ProviderID: id, Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 11 * 60}}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(store, store, store, discardLogger(), cfg,
		WithClock(func() time.Time { return sundayNoon }),
		WithMetrics(m),
	)
	return &fixture{svc: svc, store: store, providerID: id, metrics: m}
}

func slotStarts(slots []model.TimeSlot) []time.Time {
	out := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start)
	}
	return out
}

func TestGetAvailableSlots(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	slots, err := f.svc.GetAvailableSlots(ctx, "ana", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := slotStarts(slots)
	if len(got) != 2 || !got[0].Equal(monday9) || !got[1].Equal(monday10) {
		t.Fatalf("expected 09:00 and 10:00, got %v", got)
	}

	if _, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Alice", "alice@example.com"); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	slots, err = f.svc.GetAvailableSlots(ctx, "ana", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got = slotStarts(slots)
	if len(got) != 1 || !got[0].Equal(monday10) {
		t.Fatalf("expected only 10:00, got %v", got)
	}
}

func TestGetAvailableSlotsUsernameIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, Config{})
	if _, err := f.svc.GetAvailableSlots(context.Background(), " ANA ", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetAvailableSlotsUnknownProvider(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.svc.GetAvailableSlots(context.Background(), "bruno", 7)
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected provider not found, got %v", err)
	}
}

func TestGetAvailableSlotsWindowBounds(t *testing.T) {
	f := newFixture(t, Config{MaxWindowDays: 30})
	ctx := context.Background()

	if _, err := f.svc.GetAvailableSlots(ctx, "ana", -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for negative window, got %v", err)
	}
	if _, err := f.svc.GetAvailableSlots(ctx, "ana", 31); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for oversized window, got %v", err)
	}
	slots, err := f.svc.GetAvailableSlots(ctx, "ana", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Five Mondays, 26 Jan through 23 Feb, two slots each.
	if len(slots) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(slots))
	}
}

func TestGetAvailableSlotsNoRules(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.rules[f.providerID] = nil
	slots, err := f.svc.GetAvailableSlots(context.Background(), "ana", 14)
	if err != nil || len(slots) != 0 {
		t.Fatalf("expected empty slots, got %v (%v)", slots, err)
	}
}

func TestRequestBookingValidationOrder(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.svc.RequestBooking(ctx, "missing-provider", monday9, "Al", "nope")
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected provider check first, got %v", err)
	}

	_, err = f.svc.RequestBooking(ctx, f.providerID, monday9, "Al", "al@example.com")
	var berr *Error
	if !errors.As(err, &berr) || berr.Code != CodeValidation || berr.Field != "client_name" {
		t.Fatalf("expected client_name validation error, got %v", err)
	}

	_, err = f.svc.RequestBooking(ctx, f.providerID, monday9, "Alice", "alice@")
	if !errors.As(err, &berr) || berr.Code != CodeValidation || berr.Field != "client_email" {
		t.Fatalf("expected client_email validation error, got %v", err)
	}

	if got := testutil.ToFloat64(f.metrics.BookingAttempts.WithLabelValues(metrics.ResultInvalid)); got != 2 {
		t.Fatalf("expected 2 invalid attempts recorded, got %v", got)
	}
}

func TestRequestBookingRejectsSlotsOutsideAvailability(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	cases := map[string]time.Time{
		"off grid":      time.Date(2026, 1, 26, 9, 30, 0, 0, time.UTC),
		"outside rule":  time.Date(2026, 1, 26, 11, 0, 0, 0, time.UTC),
		"in the past":   time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC),
		"beyond window": time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	for name, at := range cases {
		if _, err := f.svc.RequestBooking(ctx, f.providerID, at, "Alice", "alice@example.com"); !errors.Is(err, ErrSlotUnavailable) {
			t.Fatalf("%s: expected slot unavailable, got %v", name, err)
		}
	}
}

func TestRequestBookingAcceptsOtherZoneForSameInstant(t *testing.T) {
	f := newFixture(t, Config{})
	at := monday9.In(time.FixedZone("BRT", -3*60*60))
	b, err := f.svc.RequestBooking(context.Background(), f.providerID, at, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.SlotStart.Equal(monday9) {
		t.Fatalf("expected stored instant %s, got %s", monday9, b.SlotStart)
	}
}

func TestRequestBookingTwiceForSameSlot(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Alice", "alice@example.com"); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Bruno", "bruno@example.com"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}
}

func TestRequestBookingLostRace(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Alice", "alice@example.com"); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	// The availability read misses the winner, the conditional insert does not.
	f.store.hideBookings = true
	_, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Bruno", "bruno@example.com")
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable after losing the race, got %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.BookingAttempts.WithLabelValues(metrics.ResultConflict)); got != 1 {
		t.Fatalf("expected conflict recorded, got %v", got)
	}
}

func TestRequestBookingAtFarEndOfWindow(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	slots, err := f.svc.GetAvailableSlots(ctx, "ana", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 10 {
		t.Fatalf("expected 10 slots over 30 days, got %d", len(slots))
	}
	last := slots[len(slots)-1].Start
	if want := time.Date(2026, 2, 23, 10, 0, 0, 0, time.UTC); !last.Equal(want) {
		t.Fatalf("expected last slot %v, got %v", want, last)
	}

	b, err := f.svc.SubmitBooking(ctx, "ana", last, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("expected last offered slot to be bookable, got %v", err)
	}
	if !b.SlotStart.Equal(last) {
		t.Fatalf("unexpected booking %+v", b)
	}

	slots, err = f.svc.GetAvailableSlots(ctx, "ana", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		if s.Start.Equal(last) {
			t.Fatalf("booked slot still offered")
		}
	}

	// Past the widest window the slot is never offered, so it cannot be booked.
	beyond := time.Date(2026, 3, 30, 9, 0, 0, 0, time.UTC)
	if _, err := f.svc.SubmitBooking(ctx, "ana", beyond, "Bruno", "bruno@example.com"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable beyond the window, got %v", err)
	}
}

func TestRequestBookingInsertDecidesRace(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	// Every request passes the availability re-check before any insert lands.
	const n = 8
	var gate sync.WaitGroup
	gate.Add(n)
	f.store.insertGate = &gate

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Client Name", "client@example.com")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrSlotUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d and %d", n-1, winners, conflicts)
	}
	if got := testutil.ToFloat64(f.metrics.BookingAttempts.WithLabelValues(metrics.ResultConflict)); got != n-1 {
		t.Fatalf("expected %d conflicts recorded, got %v", n-1, got)
	}
	if got := testutil.ToFloat64(f.metrics.BookingAttempts.WithLabelValues(metrics.ResultCreated)); got != 1 {
		t.Fatalf("expected one success recorded, got %v", got)
	}
}

func TestRequestBookingStoreFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.insertErr = errors.New("connection reset")

	_, err := f.svc.RequestBooking(context.Background(), f.providerID, monday9, "Alice", "alice@example.com")
	var berr *Error
	if !errors.As(err, &berr) || berr.Code != CodeStoreUnavailable || !berr.Retryable() {
		t.Fatalf("expected retryable store error, got %v", err)
	}
	if len(f.store.bookings) != 0 {
		t.Fatalf("expected no partial booking")
	}
}

func TestListBookingsFailureIsStoreUnavailable(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.listBookingsErr = errors.New("boom")
	if _, err := f.svc.GetAvailableSlots(context.Background(), "ana", 7); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestStoreTimeout(t *testing.T) {
	f := newFixture(t, Config{StoreTimeout: 20 * time.Millisecond})
	f.store.block = true

	_, err := f.svc.GetAvailableSlots(context.Background(), "ana", 7)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected store timeout, got %v", err)
	}
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	b, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	cancelled, err := f.svc.CancelBooking(ctx, b.ID, f.providerID)
	if err != nil || cancelled.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled booking, got %+v (%v)", cancelled, err)
	}
	again, err := f.svc.CancelBooking(ctx, b.ID, f.providerID)
	if err != nil || again.Status != model.StatusCancelled {
		t.Fatalf("expected idempotent cancel, got %+v (%v)", again, err)
	}
	if got := testutil.ToFloat64(f.metrics.Cancellations.WithLabelValues(metrics.ResultNoop)); got != 1 {
		t.Fatalf("expected one no-op cancel, got %v", got)
	}

	slots, err := f.svc.GetAvailableSlots(ctx, "ana", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected cancelled slot to reappear, got %v", slotStarts(slots))
	}
}

func TestCancelBookingOwnership(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	other := f.store.addProvider("bruno")

	b, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := f.svc.CancelBooking(ctx, b.ID, other); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for other provider, got %v", err)
	}
	if _, err := f.svc.CancelBooking(ctx, "does-not-exist", f.providerID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	current, _ := f.store.GetBooking(ctx, b.ID)
	if current.Status != model.StatusScheduled {
		t.Fatalf("expected booking untouched, got %s", current.Status)
	}
}

func TestSetRules(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	rules, err := f.svc.SetRules(ctx, f.providerID, []RuleInput{
		{Weekday: 3, StartMinute: 14 * 60, EndMinute: 16 * 60},
		{Weekday: 1, StartMinute: 8 * 60, EndMinute: 9 * 60},
	})
	if err != nil {
		t.Fatalf("set rules failed: %v", err)
	}
	if len(rules) != 2 || rules[0].Weekday != time.Monday {
		t.Fatalf("expected rules sorted by weekday, got %+v", rules)
	}

	slots, err := f.svc.GetAvailableSlots(ctx, "ana", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := slotStarts(slots)
	want := []time.Time{
		time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 28, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	_, err = f.svc.SetRules(ctx, f.providerID, []RuleInput{{Weekday: 1, StartMinute: 600, EndMinute: 540}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if current, _ := f.svc.ListRules(ctx, f.providerID); len(current) != 2 {
		t.Fatalf("expected previous rules to stay, got %+v", current)
	}
}

func TestScheduleAndOverview(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	first, err := f.svc.RequestBooking(ctx, f.providerID, monday10, "Alice", "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Bruno", "bruno@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CancelBooking(ctx, first.ID, f.providerID); err != nil {
		t.Fatal(err)
	}

	sched, err := f.svc.Schedule(ctx, f.providerID, 50)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if len(sched.Upcoming) != 1 || sched.Upcoming[0].ClientName != "Bruno" {
		t.Fatalf("unexpected upcoming %+v", sched.Upcoming)
	}
	if len(sched.History) != 1 || sched.History[0].ClientName != "Alice" {
		t.Fatalf("unexpected history %+v", sched.History)
	}

	ov, err := f.svc.Overview(ctx, f.providerID)
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if ov.TotalBookings != 2 || ov.UpcomingBookings != 1 || ov.RuleCount != 1 {
		t.Fatalf("unexpected overview %+v", ov)
	}
	if ov.NextBooking == nil || !ov.NextBooking.SlotStart.Equal(monday9) {
		t.Fatalf("expected next booking at 09:00, got %+v", ov.NextBooking)
	}
}

func TestOverviewTimesEachStoreCallSeparately(t *testing.T) {
	f := newFixture(t, Config{StoreTimeout: 250 * time.Millisecond})
	ctx := context.Background()
	if _, err := f.svc.RequestBooking(ctx, f.providerID, monday9, "Alice", "alice@example.com"); err != nil {
		t.Fatal(err)
	}

	// Three calls of 100ms each overrun one shared timeout but not their own.
	f.store.delay = 100 * time.Millisecond
	ov, err := f.svc.Overview(ctx, f.providerID)
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if ov.UpcomingBookings != 1 || ov.NextBooking == nil {
		t.Fatalf("unexpected overview %+v", ov)
	}

	f.store.delay = 300 * time.Millisecond
	if _, err := f.svc.Overview(ctx, f.providerID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable for a slow call, got %v", err)
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := &Error{Code: CodeSlotUnavailable, Message: "taken"}
	if !errors.Is(err, ErrSlotUnavailable) || errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected errors.Is behaviour")
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Fatalf("expected internal code for foreign errors")
	}
}
