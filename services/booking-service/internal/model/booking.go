package model

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusScheduled BookingStatus = "scheduled"
	StatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	return s == StatusScheduled || s == StatusCancelled
}

// ParseBookingStatus accepts an empty string as "any status".
func ParseBookingStatus(v string) (BookingStatus, error) {
	s := BookingStatus(strings.ToLower(strings.TrimSpace(v)))
	if s == "" || s.Valid() {
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: "must be scheduled or cancelled"}
}

type Booking struct {
	ID          string
	ProviderID  string
	SlotStart   time.Time
	ClientName  string
	ClientEmail string
	Status      BookingStatus
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Upcoming reports whether the booking is still scheduled and in the future.
func (b Booking) Upcoming(now time.Time) bool {
	return b.Status == StatusScheduled && b.SlotStart.After(now)
}

// TimeSlot is a bookable instant. It is derived from rules and never stored.
type TimeSlot struct {
	ProviderID string
	Start      time.Time
}

func (s TimeSlot) End(granularity time.Duration) time.Time {
	return s.Start.Add(granularity)
}

// BookingRequest is a validated client request for one slot.
type BookingRequest struct {
	ProviderID  string    `validate:"required"`
	SlotStart   time.Time `validate:"-"`
	ClientName  string    `validate:"min=3,max=120"`
	ClientEmail string    `validate:"client_email,max=254"`
}

var bookingReasons = map[string]string{
	"ProviderID":  "is required",
	"ClientName":  "must be at least 3 characters",
	"ClientEmail": "must be a valid email address",
}

func NewBookingRequest(providerID string, slotStart time.Time, clientName, clientEmail string) (BookingRequest, error) {
	req := BookingRequest{
		ProviderID:  strings.TrimSpace(providerID),
		SlotStart:   slotStart,
		ClientName:  strings.TrimSpace(clientName),
		ClientEmail: strings.TrimSpace(clientEmail),
	}
	if err := validateStruct(req, bookingReasons); err != nil {
		return BookingRequest{}, err
	}
	if slotStart.IsZero() {
		return BookingRequest{}, &ValidationError{Field: "slot_start", Reason: "is required"}
	}
	return req, nil
}

// BookingCounts backs the provider overview.
type BookingCounts struct {
	Total    int
	Upcoming int
}
