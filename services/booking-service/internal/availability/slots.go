package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const (
	DefaultWindowDays  = 14
	DefaultGranularity = 60 * time.Minute
)

// GenerateSlots expands weekly rules into concrete slot starts inside
// [now, now+windowDays). Days are walked as calendar days in now's location,
// so rule times are wall-clock times in that location.
//
// A rule yields starts at StartMinute, StartMinute+g, ... while the whole
// period fits before EndMinute. Starts at or before now are dropped. The
// result is ascending and free of duplicate instants.
func GenerateSlots(providerID string, rules []model.AvailabilityRule, now time.Time, windowDays int, granularity time.Duration) []model.TimeSlot {
	step := int(granularity / time.Minute)
	if windowDays <= 0 || step <= 0 || len(rules) == 0 {
		return nil
	}

	byWeekday := make(map[time.Weekday][]model.AvailabilityRule, 7)
	for _, r := range rules {
		byWeekday[r.Weekday] = append(byWeekday[r.Weekday], r)
	}

	loc := now.Location()
	y, m, d := now.Date()
	windowEnd := now.AddDate(0, 0, windowDays)

	seen := map[int64]struct{}{}
	var starts []time.Time
	for i := 0; i < windowDays; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		dy, dm, dd := day.Date()
		for _, r := range byWeekday[day.Weekday()] {
			for minute := r.StartMinute; minute+step <= r.EndMinute; minute += step {
				start := time.Date(dy, dm, dd, 0, minute, 0, 0, loc)
				if !start.After(now) || !start.Before(windowEnd) {
					continue
				}
				key := start.UnixNano()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				starts = append(starts, start)
			}
		}
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	slots := make([]model.TimeSlot, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, model.TimeSlot{ProviderID: providerID, Start: s})
	}
	return slots
}

// FilterBooked removes slots whose start equals the start of a scheduled
// booking for the same provider. Cancelled bookings do not block a slot.
func FilterBooked(slots []model.TimeSlot, bookings []model.Booking) []model.TimeSlot {
	if len(slots) == 0 {
		return nil
	}
	type key struct {
		provider string
		at       int64
	}
	taken := make(map[key]struct{}, len(bookings))
	for _, b := range bookings {
		if b.Status != model.StatusScheduled {
			continue
		}
		taken[key{b.ProviderID, b.SlotStart.UnixNano()}] = struct{}{}
	}

	out := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if _, ok := taken[key{s.ProviderID, s.Start.UnixNano()}]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Contains reports whether start matches one of the slots exactly.
func Contains(slots []model.TimeSlot, start time.Time) bool {
	i := sort.Search(len(slots), func(i int) bool { return !slots[i].Start.Before(start) })
	return i < len(slots) && slots[i].Start.Equal(start)
}

// Day groups slot starts by their calendar date.
type Day struct {
	Date   string
	Starts []time.Time
}

// GroupByDay expects ascending slots and keeps that order.
func GroupByDay(slots []model.TimeSlot) []Day {
	var days []Day
	for _, s := range slots {
		date := s.Start.Format(time.DateOnly)
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].Starts = append(days[n-1].Starts, s.Start)
			continue
		}
		days = append(days, Day{Date: date, Starts: []time.Time{s.Start}})
	}
	return days
}
