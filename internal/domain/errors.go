// Package domain implements the conversation aggregate: value objects,
// entities, domain events, and the invariants that govern how messages and
// feedback accumulate inside a conversation.
//
// This file centralizes the error kinds raised by the domain and the
// surrounding infrastructure so that they can be consistently wrapped by
// lower layers and checked by callers with errors.Is. Translation into HTTP
// statuses is performed at the handler layer (see httpapi).
package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error that crosses a layer boundary wraps exactly one
// of these sentinels, so callers can branch with errors.Is without knowing
// which layer produced the failure.
var (
	// ErrValidation indicates malformed input: bad content length, bad enum
	// value, empty title.
	ErrValidation = errors.New("validation failed")

	// ErrPrecondition indicates an operation rejected by the current state:
	// archived conversation, duplicate feedback, nested unit of work.
	ErrPrecondition = errors.New("precondition failed")

	// ErrNotFound indicates an unknown id or an unregistered handler.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a stale aggregate version on save. Handlers
	// re-load and retry a bounded number of times before surfacing it.
	ErrConflict = errors.New("version conflict")

	// ErrUpstream indicates a response-generator failure.
	ErrUpstream = errors.New("upstream failure")

	// ErrTimeout indicates a deadline exceeded inside a unit of work.
	ErrTimeout = errors.New("deadline exceeded")

	// ErrInfrastructure indicates a database or IO failure.
	ErrInfrastructure = errors.New("infrastructure failure")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Preconditionf wraps ErrPrecondition with a formatted message.
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Upstreamf wraps ErrUpstream with a formatted message.
func Upstreamf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUpstream, fmt.Sprintf(format, args...))
}

// Timeoutf wraps ErrTimeout with a formatted message.
func Timeoutf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTimeout, fmt.Sprintf(format, args...))
}

// Infraf wraps ErrInfrastructure around an underlying cause. The cause stays
// in the chain, so callers can still match it with errors.Is.
func Infraf(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, fmt.Sprintf(format, args...), cause)
}
