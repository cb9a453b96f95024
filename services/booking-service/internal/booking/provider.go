package booking

import (
	"context"
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const maxRulesPerProvider = 100

// RuleInput is a rule as submitted by a provider, before validation.
type RuleInput struct {
	Weekday     int
	StartMinute int
	EndMinute   int
}

// SetRules validates and atomically replaces the provider's weekly rules.
// Overlapping rules are accepted; the generated slots are deduplicated.
func (s *Service) SetRules(ctx context.Context, providerID string, inputs []RuleInput) ([]model.AvailabilityRule, error) {
	if err := s.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}
	if len(inputs) > maxRulesPerProvider {
		return nil, invalid("rules", "too many rules")
	}

	rules := make([]model.AvailabilityRule, 0, len(inputs))
	for _, in := range inputs {
		r, err := model.NewAvailabilityRule(providerID, in.Weekday, in.StartMinute, in.EndMinute)
		if err != nil {
			return nil, validationError(err)
		}
		rules = append(rules, r)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		return rules[i].StartMinute < rules[j].StartMinute
	})

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.rules.SetRules(sctx, providerID, rules); err != nil {
		s.metrics.RecordStoreError("set_rules")
		return nil, storeError("save rules", err)
	}
	s.metrics.RecordRuleReplacement()
	s.logger.Info("availability rules replaced", "provider_id", providerID, "rules", len(rules))
	return rules, nil
}

func (s *Service) ListRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error) {
	return s.listRules(ctx, providerID)
}

// Schedule is a provider's booking list split the way the dashboard shows it.
type Schedule struct {
	// Upcoming holds scheduled bookings in the future, soonest first.
	Upcoming []model.Booking
	// History holds past or cancelled bookings, most recent first.
	History []model.Booking
}

func (s *Service) Schedule(ctx context.Context, providerID string, limit int) (Schedule, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	list, err := s.bookings.ListByProvider(sctx, providerID, limit)
	if err != nil {
		s.metrics.RecordStoreError("list_by_provider")
		return Schedule{}, storeError("list bookings", err)
	}

	now := s.clock()
	out := Schedule{Upcoming: []model.Booking{}, History: []model.Booking{}}
	for _, b := range list {
		if b.Upcoming(now) {
			out.Upcoming = append(out.Upcoming, b)
		} else {
			out.History = append(out.History, b)
		}
	}
	sort.SliceStable(out.Upcoming, func(i, j int) bool { return out.Upcoming[i].SlotStart.Before(out.Upcoming[j].SlotStart) })
	sort.SliceStable(out.History, func(i, j int) bool { return out.History[i].SlotStart.After(out.History[j].SlotStart) })
	return out, nil
}

type Overview struct {
	TotalBookings    int
	UpcomingBookings int
	RuleCount        int
	// NextBooking is the soonest upcoming booking, if any.
	NextBooking *model.Booking
	GeneratedAt time.Time
}

func (s *Service) Overview(ctx context.Context, providerID string) (Overview, error) {
	now := s.clock()

	counts, err := s.countBookings(ctx, providerID, now)
	if err != nil {
		return Overview{}, err
	}
	rules, err := s.listRules(ctx, providerID)
	if err != nil {
		return Overview{}, err
	}
	ov := Overview{
		TotalBookings:    counts.Total,
		UpcomingBookings: counts.Upcoming,
		RuleCount:        len(rules),
		GeneratedAt:      now,
	}
	if counts.Upcoming > 0 {
		next, err := s.listScheduled(ctx, providerID, now.Add(time.Nanosecond), now.AddDate(1, 0, 0))
		if err != nil {
			return Overview{}, err
		}
		if len(next) > 0 {
			ov.NextBooking = &next[0]
		}
	}
	return ov, nil
}

func (s *Service) countBookings(ctx context.Context, providerID string, now time.Time) (model.BookingCounts, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	counts, err := s.bookings.CountByProvider(sctx, providerID, now)
	if err != nil {
		s.metrics.RecordStoreError("count_bookings")
		return model.BookingCounts{}, storeError("count bookings", err)
	}
	return counts, nil
}
