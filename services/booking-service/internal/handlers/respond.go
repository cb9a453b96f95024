package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/accounts"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code booking.Code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: string(code)})
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, booking.CodeValidation, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, booking.CodeValidation, "invalid json body")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto HTTP responses. Unexpected
// errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Code: string(booking.CodeValidation), Field: verr.Field})
		return
	case errors.Is(err, accounts.ErrTaken):
		writeError(w, http.StatusConflict, "ACCOUNT_TAKEN", err.Error())
		return
	case errors.Is(err, accounts.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
		return
	}

	var berr *booking.Error
	if !errors.As(err, &berr) {
		logger.Error("unhandled error", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, booking.CodeInternal, "internal error")
		return
	}

	switch berr.Code {
	case booking.CodeValidation:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: berr.Message, Code: string(berr.Code), Field: berr.Field})
	case booking.CodeProviderNotFound, booking.CodeNotFound:
		writeError(w, http.StatusNotFound, berr.Code, berr.Message)
	case booking.CodeSlotUnavailable:
		writeError(w, http.StatusConflict, berr.Code, berr.Message)
	case booking.CodeStoreUnavailable:
		logger.Warn("store unavailable", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, berr.Code, "service temporarily unavailable, retry shortly")
	default:
		logger.Error("internal error", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, booking.CodeInternal, "internal error")
	}
}
