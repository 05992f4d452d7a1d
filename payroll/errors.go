/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejected operation surfaces the specific rule violated, never a
  generic failure.

ERROR CATEGORIES:
  1. Validation errors  - bad input shape/values (collects ALL violations)
  2. State errors       - edits against locked/closed/paid/attached data
  3. Transition errors  - illegal state-machine edges
  4. Conflict errors    - uniqueness, overlap, concurrent-compute violations

USAGE:
  Callers branch with errors.Is / errors.As:

    if errors.Is(err, payroll.ErrPeriodLocked) { ... }

    var verr *payroll.ValidationError
    if errors.As(err, &verr) {
        for _, v := range verr.Violations { ... }
    }

SEE ALSO:
  - lifecycle.go: period validation and transitions
  - guard.go: attachment immutability
  - engine.go: computation failure modes
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced period, record, or entry
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrImmutableState is returned for edits against a locked/closed
	// period, a paid record, or an attached sub-ledger entry.
	ErrImmutableState = errors.New("immutable state")

	// ErrInvalidTransition is returned for illegal state-machine edges
	// (e.g. unlocking a period that is not locked).
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConflict is returned for uniqueness violations: overlapping period
	// ranges, deleting a period that still owns records, or a concurrent
	// compute on the same (employee, period) key.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyPaid is returned when recomputing a record whose payment
	// status is paid. Paid records are immutable except for remarks and
	// administrative payment fields.
	ErrAlreadyPaid = errors.New("payroll record already paid")

	// ErrPeriodLocked is returned when an operation requires a period that
	// is not locked or closed.
	ErrPeriodLocked = errors.New("period is locked or closed")

	// ErrAlreadyAttached is returned when attaching an entry that already
	// belongs to a different payroll record.
	ErrAlreadyAttached = errors.New("entry already attached to another payroll record")

	// ErrValidation is the sentinel behind ValidationError.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError lists every violated rule, not just the first. Callers can
// render the full list to the user in one round trip.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// newValidationError returns nil when there is nothing to report.
func newValidationError(violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// NotFoundError identifies which entity was missing.
type NotFoundError struct {
	Entity string // "period", "record", "attendance", ...
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ImmutableStateError explains why the target cannot change.
type ImmutableStateError struct {
	Entity string
	ID     string
	Reason string // e.g. "period is locked", "already processed in payroll"
}

func (e *ImmutableStateError) Error() string {
	return fmt.Sprintf("cannot modify %s %s: %s", e.Entity, e.ID, e.Reason)
}

func (e *ImmutableStateError) Unwrap() error { return ErrImmutableState }

// InvalidTransitionError names the rejected state-machine edge.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ConflictError carries the human-readable conflict detail, e.g.
// "period overlaps with 2024-01 Semi-Monthly" or
// "cannot delete: 3 payroll records exist".
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PeriodLockedError identifies the frozen period that blocked the operation.
type PeriodLockedError struct {
	PeriodID PeriodID
	Status   PeriodStatus
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("period %s is %s", e.PeriodID, e.Status)
}

func (e *PeriodLockedError) Unwrap() error { return ErrPeriodLocked }

// AlreadyPaidError identifies the paid record that blocked a recompute.
type AlreadyPaidError struct {
	RecordID RecordID
}

func (e *AlreadyPaidError) Error() string {
	return fmt.Sprintf("payroll record %s is already paid", e.RecordID)
}

func (e *AlreadyPaidError) Unwrap() error { return ErrAlreadyPaid }

// AlreadyAttachedError identifies the competing attachment.
type AlreadyAttachedError struct {
	Entry      EntryID
	AttachedTo RecordID
	Requested  RecordID
}

func (e *AlreadyAttachedError) Error() string {
	return fmt.Sprintf("entry %s is attached to record %s, cannot attach to %s",
		e.Entry, e.AttachedTo, e.Requested)
}

func (e *AlreadyAttachedError) Unwrap() error { return ErrAlreadyAttached }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or
// a state the client could have observed. These map to 4xx at the boundary.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrImmutableState) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrAlreadyAttached) ||
		errors.Is(err, ErrPeriodLocked)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
