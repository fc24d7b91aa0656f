package content

import (
	"errors"
	"fmt"

	"gofolio/internal/store"
	"gofolio/internal/telemetry"
)

var (
	// ErrNotFound is returned by Update and Delete when the record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable is returned when the document store cannot be reached.
	ErrStoreUnavailable = errors.New("content store unavailable")
	// ErrValidationFailed is returned when input is rejected before any store access.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError reports a rejected input field.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidationFailed, field, reason)
}

// translate maps store errors onto the repository's error taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	default:
		return err
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return telemetry.ResultOK
	case errors.Is(err, ErrNotFound):
		return telemetry.ResultNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return telemetry.ResultUnavailable
	default:
		return telemetry.ResultError
	}
}
