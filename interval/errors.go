/*
errors.go - Centralized error types for the interval engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers (HTTP handlers, CLI) translate these to status codes.

ERROR CATEGORIES:
  1. Not-found errors - record absent OR vehicle not owned by the caller.
     The two are deliberately indistinguishable so the read path never
     leaks whether another account's data exists.
  2. Validation errors - malformed manual-override input.
  3. Storage errors - surfaced wrapped, never retried here; retry policy
     belongs to the storage layer.

  Settings resolution never fails: absence of configuration resolves to
  no tracking, not to an error.

USAGE:
    if errors.Is(err, interval.ErrIntervalNotFound) { ... }

    var verr *interval.ValidationError
    if errors.As(err, &verr) { ... }
*/
package interval

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIntervalNotFound is returned when a derived record does not exist
	// or the vehicle does not belong to the requesting account.
	ErrIntervalNotFound = errors.New("service interval not found")

	// ErrVehicleNotFound is returned when a referenced vehicle doesn't exist.
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrKindNotFound is returned when a referenced maintenance kind doesn't exist.
	ErrKindNotFound = errors.New("maintenance kind not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed input on the manual-override path.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
