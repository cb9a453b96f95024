package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

type Config struct {
	// WindowDays is used when a caller does not ask for a window.
	WindowDays    int
	MaxWindowDays int
	Granularity   time.Duration
	// Location is the zone rule times are interpreted in.
	Location     *time.Location
	StoreTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.WindowDays <= 0 {
		c.WindowDays = availability.DefaultWindowDays
	}
	if c.MaxWindowDays <= 0 {
		c.MaxWindowDays = 60
	}
	if c.MaxWindowDays < c.WindowDays {
		c.MaxWindowDays = c.WindowDays
	}
	if c.Granularity <= 0 {
		c.Granularity = availability.DefaultGranularity
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	return c
}

// Service computes availability and commits bookings. It keeps no state
// between calls; all coordination happens in the stores.
type Service struct {
	rules     RuleStore
	bookings  BookingStore
	providers ProviderDirectory
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(rules RuleStore, bookings BookingStore, providers ProviderDirectory, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	s := &Service{
		rules:     rules,
		bookings:  bookings,
		providers: providers,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		tracer:    otel.Tracer("slotbook/booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Config() Config { return s.cfg }

func (s *Service) clock() time.Time {
	return s.now().In(s.cfg.Location)
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func (s *Service) resolve(ctx context.Context, username string) (string, error) {
	username = model.NormalizeUsername(username)
	if username == "" {
		return "", ErrProviderNotFound
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	id, err := s.providers.ResolveProvider(sctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrProviderNotFound
		}
		s.metrics.RecordStoreError("resolve_provider")
		return "", storeError("resolve provider", err)
	}
	return id, nil
}

// GetAvailableSlots returns the open slots of the provider published under
// username. windowDays of zero selects the default window.
func (s *Service) GetAvailableSlots(ctx context.Context, username string, windowDays int) ([]model.TimeSlot, error) {
	providerID, err := s.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.AvailableSlotsForProvider(ctx, providerID, windowDays)
}

// AvailableSlotsForProvider generates candidates from the provider's rules
// and removes every slot already held by a scheduled booking.
func (s *Service) AvailableSlotsForProvider(ctx context.Context, providerID string, windowDays int) ([]model.TimeSlot, error) {
	days, err := s.window(windowDays)
	if err != nil {
		return nil, err
	}
	slots, err := s.availableAt(ctx, providerID, s.clock(), days)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSlotQuery(len(slots))
	return slots, nil
}

func (s *Service) window(windowDays int) (int, error) {
	switch {
	case windowDays == 0:
		return s.cfg.WindowDays, nil
	case windowDays < 0:
		return 0, invalid("days", "must be positive")
	case windowDays > s.cfg.MaxWindowDays:
		return 0, invalid("days", "exceeds the maximum booking window")
	}
	return windowDays, nil
}

func (s *Service) availableAt(ctx context.Context, providerID string, now time.Time, days int) ([]model.TimeSlot, error) {
	rules, err := s.listRules(ctx, providerID)
	if err != nil {
		return nil, err
	}
	candidates := availability.GenerateSlots(providerID, rules, now, days, s.cfg.Granularity)
	if len(candidates) == 0 {
		return []model.TimeSlot{}, nil
	}

	booked, err := s.listScheduled(ctx, providerID, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	return availability.FilterBooked(candidates, booked), nil
}

// listRules and listScheduled each run under their own store timeout.
func (s *Service) listRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rules, err := s.rules.ListRules(sctx, providerID)
	if err != nil {
		s.metrics.RecordStoreError("list_rules")
		return nil, storeError("list rules", err)
	}
	return rules, nil
}

func (s *Service) listScheduled(ctx context.Context, providerID string, from, to time.Time) ([]model.Booking, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	booked, err := s.bookings.ListBookings(sctx, providerID, from, to, model.StatusScheduled)
	if err != nil {
		s.metrics.RecordStoreError("list_bookings")
		return nil, storeError("list bookings", err)
	}
	return booked, nil
}

// SubmitBooking books a slot for the provider published under username.
func (s *Service) SubmitBooking(ctx context.Context, username string, slotStart time.Time, clientName, clientEmail string) (model.Booking, error) {
	providerID, err := s.resolve(ctx, username)
	if err != nil {
		s.metrics.RecordBooking(bookingResult(err))
		return model.Booking{}, err
	}
	return s.RequestBooking(ctx, providerID, slotStart, clientName, clientEmail)
}

// RequestBooking validates the request, re-checks the slot against freshly
// computed availability and commits it with one conditional insert. When
// several requests race for the same slot exactly one succeeds; the others
// get ErrSlotUnavailable.
func (s *Service) RequestBooking(ctx context.Context, providerID string, slotStart time.Time, clientName, clientEmail string) (b model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.request",
		trace.WithAttributes(
			attribute.String("provider.id", providerID),
			attribute.String("slot.start", slotStart.UTC().Format(time.RFC3339)),
		),
	)
	defer func() {
		s.metrics.RecordBooking(bookingResult(err))
		if err != nil {
			span.RecordError(err)
			if CodeOf(err) == CodeStoreUnavailable || CodeOf(err) == CodeInternal {
				span.SetStatus(codes.Error, err.Error())
			}
		} else {
			span.SetAttributes(attribute.String("booking.id", b.ID))
		}
		span.End()
	}()

	if err := s.requireProvider(ctx, providerID); err != nil {
		return model.Booking{}, err
	}

	req, verr := model.NewBookingRequest(providerID, slotStart, clientName, clientEmail)
	if verr != nil {
		return model.Booking{}, validationError(verr)
	}

	// Any slot the widest accepted window can offer must stay bookable.
	available, err := s.availableAt(ctx, providerID, s.clock(), s.cfg.MaxWindowDays)
	if err != nil {
		return model.Booking{}, err
	}
	if !availability.Contains(available, req.SlotStart) {
		return model.Booking{}, ErrSlotUnavailable
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	b, err = s.bookings.InsertIfAbsent(sctx, req)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			s.logger.Info("booking lost race", "provider_id", providerID, "slot_start", req.SlotStart)
			return model.Booking{}, ErrSlotUnavailable
		}
		s.metrics.RecordStoreError("insert_booking")
		return model.Booking{}, storeError("insert booking", err)
	}

	s.logger.Info("booking created",
		"booking_id", b.ID,
		"provider_id", b.ProviderID,
		"slot_start", b.SlotStart,
	)
	return b, nil
}

func (s *Service) requireProvider(ctx context.Context, providerID string) error {
	if strings.TrimSpace(providerID) == "" {
		return ErrProviderNotFound
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	ok, err := s.providers.ProviderExists(sctx, providerID)
	if err != nil {
		s.metrics.RecordStoreError("provider_exists")
		return storeError("lookup provider", err)
	}
	if !ok {
		return ErrProviderNotFound
	}
	return nil
}

// CancelBooking cancels a scheduled booking owned by providerID. Cancelling
// twice is a no-op; a booking of another provider is reported as not found.
func (s *Service) CancelBooking(ctx context.Context, bookingID, providerID string) (b model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.cancel",
		trace.WithAttributes(
			attribute.String("provider.id", providerID),
			attribute.String("booking.id", bookingID),
		),
	)
	result := metrics.ResultCancelled
	defer func() {
		if err != nil {
			result = bookingResult(err)
			span.RecordError(err)
		}
		s.metrics.RecordCancellation(result)
		span.End()
	}()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	current, err := s.bookings.GetBooking(sctx, bookingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Booking{}, ErrNotFound
		}
		s.metrics.RecordStoreError("get_booking")
		return model.Booking{}, storeError("get booking", err)
	}
	if current.ProviderID != providerID {
		return model.Booking{}, ErrNotFound
	}
	if current.Status == model.StatusCancelled {
		result = metrics.ResultNoop
		return current, nil
	}

	updated, err := s.bookings.UpdateStatus(sctx, bookingID, model.StatusCancelled)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return model.Booking{}, ErrNotFound
		case errors.Is(err, storage.ErrInvalidTransition):
			return model.Booking{}, &Error{Code: CodeInternal, Message: "unexpected status transition", Err: err}
		}
		s.metrics.RecordStoreError("update_status")
		return model.Booking{}, storeError("cancel booking", err)
	}

	s.logger.Info("booking cancelled", "booking_id", updated.ID, "provider_id", providerID)
	return updated, nil
}

func bookingResult(err error) string {
	if err == nil {
		return metrics.ResultCreated
	}
	switch CodeOf(err) {
	case CodeValidation:
		return metrics.ResultInvalid
	case CodeProviderNotFound, CodeNotFound:
		return metrics.ResultNotFound
	case CodeSlotUnavailable:
		return metrics.ResultConflict
	case CodeStoreUnavailable:
		return metrics.ResultUnavailable
	default:
		return metrics.ResultError
	}
}
