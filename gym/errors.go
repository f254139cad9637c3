/*
errors.go - Centralized error types for the domain layer

PURPOSE:
  All domain error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Validation errors - missing/invalid required fields
  2. Domain rule violations - no sessions remaining, already attended today
  3. Storage failures - re-exported from store, fatal per operation
  4. Import record errors - isolated per-record failures during batch import

PROPAGATION POLICY:
  Validation and domain-rule errors surface to the caller verbatim - they
  carry user-facing meaning. Storage failures during single-record
  operations are fatal for that operation. During batch import they are
  caught per item, downgraded to a collected warning, and only the
  zero-importable-records case aborts the whole import.

USAGE:
  if gym.IsNotFound(err) { ... 404 ... }
  if gym.IsClientError(err) { ... 4xx with err.Error() ... }
*/
package gym

import (
	"errors"
	"fmt"

	"github.com/atlasgym/gym-engine/store"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced id is absent.
	ErrNotFound = errors.New("not found")

	// ErrDomainRule is the root of business rule violations.
	ErrDomainRule = errors.New("domain rule violation")

	// ErrStorageFailure aliases the store sentinel so callers only need
	// this package.
	ErrStorageFailure = store.ErrStorageFailure

	// ErrImportRecord is the root of isolated per-record import failures.
	ErrImportRecord = errors.New("import record error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a missing or invalid required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind string // "member", "payment"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NoSessionsRemainingError rejects attendance once the prepaid session
// count reaches zero.
type NoSessionsRemainingError struct {
	MemberID string
}

func (e *NoSessionsRemainingError) Error() string {
	return fmt.Sprintf("member %s has no sessions remaining", e.MemberID)
}

func (e *NoSessionsRemainingError) Unwrap() error { return ErrDomainRule }

// AlreadyMarkedTodayError rejects a second attendance on the same
// calendar day.
type AlreadyMarkedTodayError struct {
	MemberID string
	Date     string
}

func (e *AlreadyMarkedTodayError) Error() string {
	return fmt.Sprintf("member %s already attended on %s", e.MemberID, e.Date)
}

func (e *AlreadyMarkedTodayError) Unwrap() error { return ErrDomainRule }

// ImportRecordError reports one bad record during batch import. It is
// collected into the import report, never aborting the batch.
type ImportRecordError struct {
	Kind   string // "member", "payment", "activity"
	Index  int
	Reason string
}

func (e *ImportRecordError) Error() string {
	return fmt.Sprintf("%s record %d: %s", e.Kind, e.Index, e.Reason)
}

func (e *ImportRecordError) Unwrap() error { return ErrImportRecord }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid client input
// or a business rule, i.e. carries user-facing meaning.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDomainRule) ||
		errors.Is(err, ErrImportRecord)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDomainRule reports whether the error is a business rule violation.
func IsDomainRule(err error) bool {
	return errors.Is(err, ErrDomainRule)
}
