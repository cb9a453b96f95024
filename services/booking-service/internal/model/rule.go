package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

// AvailabilityRule is one weekly window in which a provider accepts bookings.
// StartMinute and EndMinute are minutes since local midnight.
type AvailabilityRule struct {
	ProviderID  string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

func NewAvailabilityRule(providerID string, weekday, startMinute, endMinute int) (AvailabilityRule, error) {
	if strings.TrimSpace(providerID) == "" {
		return AvailabilityRule{}, &ValidationError{Field: "provider_id", Reason: "is required"}
	}
	if weekday < 0 || weekday > 6 {
		return AvailabilityRule{}, &ValidationError{Field: "weekday", Reason: "must be between 0 (Sunday) and 6 (Saturday)"}
	}
	if startMinute < 0 || startMinute >= MinutesPerDay || endMinute <= 0 || endMinute > MinutesPerDay {
		return AvailabilityRule{}, &ValidationError{Field: "start_time", Reason: "times must be within the day"}
	}
	if startMinute >= endMinute {
		return AvailabilityRule{}, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	return AvailabilityRule{
		ProviderID:  providerID,
		Weekday:     time.Weekday(weekday),
		StartMinute: startMinute,
		EndMinute:   endMinute,
	}, nil
}

// DefaultRules is the starting schedule offered to a provider with no rules:
// Mondays from 09:00 to 17:00.
func DefaultRules(providerID string) []AvailabilityRule {
	return []AvailabilityRule{{ProviderID: providerID, Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60}}
}

func (r AvailabilityRule) StartClock() string { return FormatClock(r.StartMinute) }
func (r AvailabilityRule) EndClock() string   { return FormatClock(r.EndMinute) }

// ParseClock parses "HH:MM" (or "HH:MM:SS" with zero seconds) into minutes
// since midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 2 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, fmt.Errorf("seconds are not supported in %q", s)
	}
	total := h*60 + m
	if h < 0 || total > MinutesPerDay {
		return 0, fmt.Errorf("time %q is out of range", s)
	}
	return total, nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
