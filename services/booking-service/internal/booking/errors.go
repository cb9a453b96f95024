package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeProviderNotFound Code = "PROVIDER_NOT_FOUND"
	CodeNotFound         Code = "NOT_FOUND"
	CodeSlotUnavailable  Code = "SLOT_UNAVAILABLE"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Error is the error type returned by Service. Two errors match under
// errors.Is when their codes are equal, so callers compare against the
// sentinels below.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Retryable reports whether the same call may succeed later unchanged.
func (e *Error) Retryable() bool {
	return e.Code == CodeStoreUnavailable
}

var (
	ErrValidation       = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrProviderNotFound = &Error{Code: CodeProviderNotFound, Message: "provider not found"}
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "booking not found"}
	ErrSlotUnavailable  = &Error{Code: CodeSlotUnavailable, Message: "slot is no longer available"}
	ErrStoreUnavailable = &Error{Code: CodeStoreUnavailable, Message: "store unavailable"}
	ErrInternal         = &Error{Code: CodeInternal, Message: "internal error"}
)

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func validationError(err error) *Error {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return &Error{Code: CodeValidation, Message: verr.Error(), Field: verr.Field, Err: err}
	}
	return &Error{Code: CodeValidation, Message: err.Error(), Err: err}
}

func invalid(field, reason string) *Error {
	return &Error{Code: CodeValidation, Message: field + ": " + reason, Field: field}
}

// storeError classifies a failed store call. Anything not understood is
// treated as the store being unavailable.
func storeError(op string, err error) *Error {
	msg := op + " failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = op + " timed out"
	}
	return &Error{Code: CodeStoreUnavailable, Message: msg, Err: err}
}
