// ABOUTME: Error taxonomy shared by the store, server, remote client, and queue.
// ABOUTME: Sentinels are matched with errors.Is; helpers classify permanent vs transient failures.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-range input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrOwnershipConflict marks a natural-key collision with a row owned by another account.
	ErrOwnershipConflict = errors.New("ownership conflict")

	// ErrNotFound marks a lookup that matched no row for the owner.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks an underlying persistence failure.
	ErrStorage = errors.New("storage error")

	// ErrTransient marks connectivity problems and timeouts. Eligible for queueing.
	ErrTransient = errors.New("transient network error")
)

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Ownership builds an ownership conflict error for the given table and id.
func Ownership(table, id string) error {
	return fmt.Errorf("%w: %s %q belongs to another owner", ErrOwnershipConflict, table, id)
}

// NotFound builds a not-found error for the given kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// Storage wraps a driver error as a storage error. Nil stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Transient wraps err as a transient network error.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// IsPermanent reports whether the server will never accept the payload.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOwnershipConflict) ||
		errors.Is(err, ErrNotFound)
}

// IsTransient reports whether err may succeed on a later attempt.
// Timeouts count as transient.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Code returns a short machine-readable code for API envelopes.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrOwnershipConflict):
		return "ownership_conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "unavailable"
	default:
		return "storage"
	}
}
