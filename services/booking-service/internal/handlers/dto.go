package handlers

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type bookingResponse struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	SlotStart   string `json:"slot_start"`
	SlotEnd     string `json:"slot_end"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

func toBookingResponse(b model.Booking, granularity time.Duration, loc *time.Location) bookingResponse {
	resp := bookingResponse{
		ID:          b.ID,
		ProviderID:  b.ProviderID,
		SlotStart:   b.SlotStart.In(loc).Format(time.RFC3339),
		SlotEnd:     b.SlotStart.Add(granularity).In(loc).Format(time.RFC3339),
		ClientName:  b.ClientName,
		ClientEmail: b.ClientEmail,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toBookingResponses(list []model.Booking, granularity time.Duration, loc *time.Location) []bookingResponse {
	out := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingResponse(b, granularity, loc))
	}
	return out
}

type ruleItem struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toRuleItems(rules []model.AvailabilityRule) []ruleItem {
	out := make([]ruleItem, 0, len(rules))
	for _, r := range rules {
		out = append(out, ruleItem{Weekday: int(r.Weekday), StartTime: r.StartClock(), EndTime: r.EndClock()})
	}
	return out
}
