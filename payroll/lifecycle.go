/*
lifecycle.go - Payroll period state machine

PURPOSE:
  Validates period data, detects date-range overlap, and enforces the period
  state machine. The lifecycle is the sole writer of period status, dates,
  and name.

STATE MACHINE:

     open ──▶ processing ──▶ locked ──▶ closed
      ▲            │            │
      └────────────┘            │
      ▲                         │
      └─────────────────────────┘  (unlock)

  - closed is terminal: no outgoing transition, ever
  - lock() succeeds from any non-closed state (idempotent when locked)
  - unlock() succeeds only from locked
  - close() succeeds from any non-closed state and is irreversible
  - open <-> processing moves via Update with a Status patch

MUTABILITY:
  Dates, workingDays, and name are editable only while open or processing.
  Locked and closed periods reject every edit with ImmutableStateError.

OVERLAP INVARIANT:
  No two periods may have overlapping [startDate, endDate) ranges. Checked
  on create and on every update, excluding the period itself.

SIDE EFFECT:
  Every successful transition emits an audit UPDATE event with before/after
  snapshots.

SEE ALSO:
  - engine.go: consults period status before computing
  - store.go: FindOverlapping
*/
package payroll

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD LIFECYCLE
// =============================================================================

type PeriodLifecycle struct {
	store TxStore
	clock Clock
	audit AuditTrailEmitter
}

func NewPeriodLifecycle(store TxStore, clock Clock, audit AuditTrailEmitter) *PeriodLifecycle {
	if clock == nil {
		clock = SystemClock{}
	}
	if audit == nil {
		audit = NopEmitter{}
	}
	return &PeriodLifecycle{store: store, clock: clock, audit: audit}
}

// PeriodInput is the caller-supplied data for creating a period.
type PeriodInput struct {
	Name        string // derived when empty
	PeriodType  PeriodType
	StartDate   Date
	EndDate     Date
	PayDate     Date
	WorkingDays int
	Status      PeriodStatus // defaults to open; locked/closed are rejected
}

// PeriodPatch is a partial update. Nil fields keep the existing value.
// Status may only move along the open <-> processing edges here; lock,
// unlock, and close have dedicated operations.
type PeriodPatch struct {
	Name        *string
	PeriodType  *PeriodType
	StartDate   *Date
	EndDate     *Date
	PayDate     *Date
	WorkingDays *int
	Status      *PeriodStatus
}

// -----------------------------------------------------------------------------
// Create
// -----------------------------------------------------------------------------

// Create validates and persists a new period. Field violations are collected
// into a single ValidationError; a range overlap fails with ConflictError.
// Totals start at zero and are owned by the TotalsAggregator thereafter.
func (l *PeriodLifecycle) Create(ctx context.Context, input PeriodInput) (*PayrollPeriod, error) {
	if input.Status == "" {
		input.Status = PeriodOpen
	}

	violations := validatePeriodFields(input)
	// Locked and closed are reachable only through Lock/Close, which stamp
	// LockedAt/ClosedAt; a period is never born frozen.
	if input.Status == PeriodLocked || input.Status == PeriodClosed {
		violations = append(violations, "status must be open or processing")
	}
	if err := newValidationError(violations); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	period := &PayrollPeriod{
		ID:              PeriodID(uuid.NewString()),
		Name:            input.Name,
		PeriodType:      input.PeriodType,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		PayDate:         input.PayDate,
		WorkingDays:     input.WorkingDays,
		Status:          input.Status,
		TotalGrossPay:   decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalNetPay:     decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if period.Name == "" {
		period.Name = derivePeriodName(period.PeriodType, period.StartDate, period.EndDate)
	}

	err := l.store.WithTx(ctx, func(s Store) error {
		if err := l.checkOverlap(ctx, s, period.StartDate, period.EndDate, ""); err != nil {
			return err
		}
		return s.CreatePeriod(ctx, period)
	})
	if err != nil {
		return nil, err
	}

	if err := l.audit.Emit(ctx, newAuditEvent(l.clock, "period", string(period.ID), AuditCreate, nil, period.Clone())); err != nil {
		return nil, fmt.Errorf("audit emit failed: %w", err)
	}
	return period, nil
}

// -----------------------------------------------------------------------------
// Update
// -----------------------------------------------------------------------------

// Update overlays the patch on the existing period and re-validates the
// merged result, including the overlap check excluding itself. Fails with
// ImmutableStateError when the period is locked or closed.
func (l *PeriodLifecycle) Update(ctx context.Context, id PeriodID, patch PeriodPatch) (*PayrollPeriod, error) {
	var before, after *PayrollPeriod

	err := l.store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		if existing.IsFrozen() {
			return &ImmutableStateError{
				Entity: "period",
				ID:     string(id),
				Reason: fmt.Sprintf("period is %s", existing.Status),
			}
		}
		before = existing.Clone()

		merged := existing.Clone()
		if patch.Name != nil {
			merged.Name = *patch.Name
		}
		if patch.PeriodType != nil {
			merged.PeriodType = *patch.PeriodType
		}
		if patch.StartDate != nil {
			merged.StartDate = *patch.StartDate
		}
		if patch.EndDate != nil {
			merged.EndDate = *patch.EndDate
		}
		if patch.PayDate != nil {
			merged.PayDate = *patch.PayDate
		}
		if patch.WorkingDays != nil {
			merged.WorkingDays = *patch.WorkingDays
		}
		if patch.Status != nil && *patch.Status != merged.Status {
			if !updatableEdge(merged.Status, *patch.Status) {
				return &InvalidTransitionError{
					Entity: "period",
					ID:     string(id),
					From:   string(merged.Status),
					To:     string(*patch.Status),
				}
			}
			merged.Status = *patch.Status
		}

		if err := newValidationError(validatePeriodFields(PeriodInput{
			Name:        merged.Name,
			PeriodType:  merged.PeriodType,
			StartDate:   merged.StartDate,
			EndDate:     merged.EndDate,
			PayDate:     merged.PayDate,
			WorkingDays: merged.WorkingDays,
			Status:      merged.Status,
		})); err != nil {
			return err
		}
		if err := l.checkOverlap(ctx, s, merged.StartDate, merged.EndDate, id); err != nil {
			return err
		}
		if merged.Name == "" {
			merged.Name = derivePeriodName(merged.PeriodType, merged.StartDate, merged.EndDate)
		}
		merged.UpdatedAt = l.clock.Now()

		if err := s.UpdatePeriod(ctx, merged); err != nil {
			return err
		}
		after = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.audit.Emit(ctx, newAuditEvent(l.clock, "period", string(id), AuditUpdate, before, after.Clone())); err != nil {
		return nil, fmt.Errorf("audit emit failed: %w", err)
	}
	return after, nil
}

// updatableEdge lists the status moves Update may perform itself.
func updatableEdge(from, to PeriodStatus) bool {
	return (from == PeriodOpen && to == PeriodProcessing) ||
		(from == PeriodProcessing && to == PeriodOpen)
}

// -----------------------------------------------------------------------------
// Lock / Unlock / Close
// -----------------------------------------------------------------------------

// Lock freezes the period against data mutations. Idempotent no-op when
// already locked; fails once the period is closed.
func (l *PeriodLifecycle) Lock(ctx context.Context, id PeriodID) (*PayrollPeriod, error) {
	return l.transition(ctx, id, func(p *PayrollPeriod) (bool, error) {
		switch p.Status {
		case PeriodClosed:
			return false, &InvalidTransitionError{
				Entity: "period", ID: string(id),
				From: string(PeriodClosed), To: string(PeriodLocked),
			}
		case PeriodLocked:
			return false, nil // already locked
		default:
			now := l.clock.Now()
			p.Status = PeriodLocked
			p.LockedAt = &now
			return true, nil
		}
	})
}

// Unlock reopens a locked period. Fails from any other state.
func (l *PeriodLifecycle) Unlock(ctx context.Context, id PeriodID) (*PayrollPeriod, error) {
	return l.transition(ctx, id, func(p *PayrollPeriod) (bool, error) {
		if p.Status != PeriodLocked {
			return false, &InvalidTransitionError{
				Entity: "period", ID: string(id),
				From: string(p.Status), To: string(PeriodOpen),
			}
		}
		p.Status = PeriodOpen
		p.LockedAt = nil
		return true, nil
	})
}

// Close terminates the period. Irreversible; fails when already closed.
func (l *PeriodLifecycle) Close(ctx context.Context, id PeriodID) (*PayrollPeriod, error) {
	return l.transition(ctx, id, func(p *PayrollPeriod) (bool, error) {
		if p.Status == PeriodClosed {
			return false, &InvalidTransitionError{
				Entity: "period", ID: string(id),
				From: string(PeriodClosed), To: string(PeriodClosed),
			}
		}
		now := l.clock.Now()
		p.Status = PeriodClosed
		p.ClosedAt = &now
		return true, nil
	})
}

// transition runs a status mutation inside a store transaction and emits the
// audit UPDATE when the mutation reports a change.
func (l *PeriodLifecycle) transition(ctx context.Context, id PeriodID, mutate func(*PayrollPeriod) (bool, error)) (*PayrollPeriod, error) {
	var before, after *PayrollPeriod
	changed := false

	err := l.store.WithTx(ctx, func(s Store) error {
		period, err := s.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		before = period.Clone()

		changed, err = mutate(period)
		if err != nil {
			return err
		}
		if !changed {
			after = period
			return nil
		}
		period.UpdatedAt = l.clock.Now()
		if err := s.UpdatePeriod(ctx, period); err != nil {
			return err
		}
		after = period
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if err := l.audit.Emit(ctx, newAuditEvent(l.clock, "period", string(id), AuditUpdate, before, after.Clone())); err != nil {
			return nil, fmt.Errorf("audit emit failed: %w", err)
		}
	}
	return after, nil
}

// -----------------------------------------------------------------------------
// Delete
// -----------------------------------------------------------------------------

// Delete removes a period. Blocked with ConflictError while any payroll
// record references it.
func (l *PeriodLifecycle) Delete(ctx context.Context, id PeriodID) error {
	var before *PayrollPeriod

	err := l.store.WithTx(ctx, func(s Store) error {
		period, err := s.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		before = period.Clone()

		n, err := s.CountRecordsForPeriod(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &ConflictError{Reason: fmt.Sprintf("cannot delete: %d payroll records exist", n)}
		}
		return s.DeletePeriod(ctx, id)
	})
	if err != nil {
		return err
	}

	if err := l.audit.Emit(ctx, newAuditEvent(l.clock, "period", string(id), AuditDelete, before, nil)); err != nil {
		return fmt.Errorf("audit emit failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (l *PeriodLifecycle) Get(ctx context.Context, id PeriodID) (*PayrollPeriod, error) {
	return l.store.GetPeriod(ctx, id)
}

func (l *PeriodLifecycle) List(ctx context.Context, f PeriodFilter) ([]*PayrollPeriod, error) {
	return l.store.ListPeriods(ctx, f)
}

// =============================================================================
// VALIDATION
// =============================================================================

func validatePeriodFields(input PeriodInput) []string {
	var violations []string

	if !input.PeriodType.Valid() {
		violations = append(violations, "periodType must be one of: weekly, bi-weekly, semi-monthly, monthly")
	}
	if !input.Status.Valid() {
		violations = append(violations, "status must be one of: open, processing, locked, closed")
	}
	if input.StartDate.IsZero() {
		violations = append(violations, "startDate is required")
	}
	if input.EndDate.IsZero() {
		violations = append(violations, "endDate is required")
	}
	if input.PayDate.IsZero() {
		violations = append(violations, "payDate is required")
	}
	if !input.StartDate.IsZero() && !input.EndDate.IsZero() && !input.StartDate.Before(input.EndDate) {
		violations = append(violations, "endDate must be after startDate")
	}
	if !input.EndDate.IsZero() && !input.PayDate.IsZero() && input.PayDate.Before(input.EndDate) {
		violations = append(violations, "payDate must not be before endDate")
	}
	if input.WorkingDays < 0 {
		violations = append(violations, "workingDays must not be negative")
	}

	return violations
}

// checkOverlap enforces the range-uniqueness invariant inside the current
// transaction, so concurrent creates observe a consistent snapshot.
func (l *PeriodLifecycle) checkOverlap(ctx context.Context, s Store, start, end Date, exclude PeriodID) error {
	overlapping, err := s.FindOverlapping(ctx, start, end, exclude)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return &ConflictError{
			Reason: fmt.Sprintf("period overlaps with %q (%s to %s)",
				overlapping[0].Name, overlapping[0].StartDate, overlapping[0].EndDate),
		}
	}
	return nil
}

// derivePeriodName builds a display name when the caller supplies none,
// e.g. "Jan 1 - Jan 15, 2024 (semi-monthly)".
func derivePeriodName(t PeriodType, start, end Date) string {
	return fmt.Sprintf("%s - %s (%s)",
		start.Time.Format("Jan 2"), end.Time.Format("Jan 2, 2006"), t)
}
