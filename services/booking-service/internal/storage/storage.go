// Package storage holds what the Postgres and SQLite backends share: the
// error values callers match on and the outbox events written alongside
// booking changes.
package storage

import "errors"

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness guarantee rejected the write, e.g. a
	// second scheduled booking for the same provider and slot.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition means a booking status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)
