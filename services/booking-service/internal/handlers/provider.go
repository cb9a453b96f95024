package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// ProviderHandler serves the dashboard endpoints. Every route expects
// RequireProvider to have run first.
type ProviderHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewProviderHandler(svc *booking.Service, logger *slog.Logger) *ProviderHandler {
	return &ProviderHandler{svc: svc, logger: logger}
}

type rulesResponse struct {
	Rules     []ruleItem `json:"rules"`
	Suggested []ruleItem `json:"suggested,omitempty"`
}

func (h *ProviderHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	providerID := ProviderIDFromContext(r.Context())
	rules, err := h.svc.ListRules(r.Context(), providerID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	resp := rulesResponse{Rules: toRuleItems(rules)}
	if len(rules) == 0 {
		resp.Suggested = toRuleItems(model.DefaultRules(providerID))
	}
	writeJSON(w, http.StatusOK, resp)
}

type putRulesRequest struct {
	Rules []ruleItem `json:"rules"`
}

func (h *ProviderHandler) PutRules(w http.ResponseWriter, r *http.Request) {
	var req putRulesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inputs := make([]booking.RuleInput, 0, len(req.Rules))
	for i, item := range req.Rules {
		start, err := model.ParseClock(item.StartTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "rules[" + strconv.Itoa(i) + "].start_time: " + err.Error(), Code: string(booking.CodeValidation), Field: "start_time"})
			return
		}
		end, err := model.ParseClock(item.EndTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "rules[" + strconv.Itoa(i) + "].end_time: " + err.Error(), Code: string(booking.CodeValidation), Field: "end_time"})
			return
		}
		inputs = append(inputs, booking.RuleInput{Weekday: item.Weekday, StartMinute: start, EndMinute: end})
	}

	rules, err := h.svc.SetRules(r.Context(), ProviderIDFromContext(r.Context()), inputs)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse{Rules: toRuleItems(rules)})
}

type scheduleResponse struct {
	Upcoming []bookingResponse `json:"upcoming"`
	History  []bookingResponse `json:"history"`
}

func (h *ProviderHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer", Code: string(booking.CodeValidation), Field: "limit"})
			return
		}
		limit = n
	}

	sched, err := h.svc.Schedule(r.Context(), ProviderIDFromContext(r.Context()), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	cfg := h.svc.Config()
	writeJSON(w, http.StatusOK, scheduleResponse{
		Upcoming: toBookingResponses(sched.Upcoming, cfg.Granularity, cfg.Location),
		History:  toBookingResponses(sched.History, cfg.Granularity, cfg.Location),
	})
}

func (h *ProviderHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.CancelBooking(r.Context(), chi.URLParam(r, "id"), ProviderIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	cfg := h.svc.Config()
	writeJSON(w, http.StatusOK, toBookingResponse(b, cfg.Granularity, cfg.Location))
}

type overviewResponse struct {
	TotalBookings    int              `json:"total_bookings"`
	UpcomingBookings int              `json:"upcoming_bookings"`
	RuleCount        int              `json:"rule_count"`
	NextBooking      *bookingResponse `json:"next_booking,omitempty"`
	GeneratedAt      string           `json:"generated_at"`
}

func (h *ProviderHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Overview(r.Context(), ProviderIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	resp := overviewResponse{
		TotalBookings:    ov.TotalBookings,
		UpcomingBookings: ov.UpcomingBookings,
		RuleCount:        ov.RuleCount,
		GeneratedAt:      ov.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if ov.NextBooking != nil {
		cfg := h.svc.Config()
		next := toBookingResponse(*ov.NextBooking, cfg.Granularity, cfg.Location)
		resp.NextBooking = &next
	}
	writeJSON(w, http.StatusOK, resp)
}
