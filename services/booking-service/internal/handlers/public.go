package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// PublicHandler serves the unauthenticated booking page endpoints.
type PublicHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewPublicHandler(svc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

type slotItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type dayItem struct {
	Date  string   `json:"date"`
	Times []string `json:"times"`
}

type slotsResponse struct {
	Provider           string     `json:"provider"`
	Timezone           string     `json:"timezone"`
	WindowDays         int        `json:"window_days"`
	GranularityMinutes int        `json:"granularity_minutes"`
	Slots              []slotItem `json:"slots"`
	Days               []dayItem  `json:"days"`
}

func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	days := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "days must be an integer", Code: string(booking.CodeValidation), Field: "days"})
			return
		}
		days = n
	}

	slots, err := h.svc.GetAvailableSlots(r.Context(), username, days)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	cfg := h.svc.Config()
	if days == 0 {
		days = cfg.WindowDays
	}
	resp := slotsResponse{
		Provider:           model.NormalizeUsername(username),
		Timezone:           cfg.Location.String(),
		WindowDays:         days,
		GranularityMinutes: int(cfg.Granularity / time.Minute),
		Slots:              make([]slotItem, 0, len(slots)),
		Days:               []dayItem{},
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotItem{
			Start: s.Start.Format(time.RFC3339),
			End:   s.End(cfg.Granularity).Format(time.RFC3339),
		})
	}
	for _, d := range availability.GroupByDay(slots) {
		item := dayItem{Date: d.Date, Times: make([]string, 0, len(d.Starts))}
		for _, t := range d.Starts {
			item.Times = append(item.Times, t.Format("15:04"))
		}
		resp.Days = append(resp.Days, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

type createBookingRequest struct {
	SlotStart   string `json:"slot_start"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
}

func (h *PublicHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slotStart, err := time.Parse(time.RFC3339, strings.TrimSpace(req.SlotStart))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "slot_start must be RFC3339", Code: string(booking.CodeValidation), Field: "slot_start"})
		return
	}

	b, err := h.svc.SubmitBooking(r.Context(), chi.URLParam(r, "username"), slotStart, req.ClientName, req.ClientEmail)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	cfg := h.svc.Config()
	writeJSON(w, http.StatusCreated, toBookingResponse(b, cfg.Granularity, cfg.Location))
}
