package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const (
	EventBookingScheduled = "booking.scheduled.v1"
	EventBookingCancelled = "booking.cancelled.v1"
	EventRulesReplaced    = "availability.rules.replaced.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type bookingPayload struct {
	BookingID   string     `json:"booking_id"`
	ProviderID  string     `json:"provider_id"`
	SlotStart   time.Time  `json:"slot_start"`
	ClientName  string     `json:"client_name"`
	ClientEmail string     `json:"client_email"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func BookingEvent(eventType string, b model.Booking) (Event, error) {
	payload, err := json.Marshal(bookingPayload{
		BookingID:   b.ID,
		ProviderID:  b.ProviderID,
		SlotStart:   b.SlotStart.UTC(),
		ClientName:  b.ClientName,
		ClientEmail: b.ClientEmail,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt.UTC(),
		CancelledAt: b.CancelledAt,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.NewString(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

type rulePayload struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func RulesReplacedEvent(providerID string, rules []model.AvailabilityRule) (Event, error) {
	items := make([]rulePayload, 0, len(rules))
	for _, r := range rules {
		items = append(items, rulePayload{Weekday: int(r.Weekday), StartTime: r.StartClock(), EndTime: r.EndClock()})
	}
	payload, err := json.Marshal(map[string]any{
		"provider_id": providerID,
		"rules":       items,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.NewString(),
		AggregateType: "provider",
		AggregateID:   providerID,
		EventType:     EventRulesReplaced,
		Payload:       payload,
	}, nil
}
