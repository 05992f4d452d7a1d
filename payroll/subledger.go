/*
subledger.go - Mutation entry points for attendance/overtime/deduction rows

PURPOSE:
  The only write path for sub-ledger entries outside the engine. Every
  create, update, and delete routes through AttachmentGuard.CanMutate, so an
  entry that has been consumed by a payroll run can never be edited from here.

LIFECYCLE OF AN ENTRY:
  created (unattached) -> attached by a computation run -> detached only by
  deleting or recomputing the owning record. An entry outlives detachment.

SEE ALSO:
  - guard.go: the immutability check
  - engine.go: the attach/detach side
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SUB-LEDGER SERVICE
// =============================================================================

type SubLedgerService struct {
	store TxStore
	guard *AttachmentGuard
	clock Clock
	audit AuditTrailEmitter
}

func NewSubLedgerService(store TxStore, guard *AttachmentGuard, clock Clock, audit AuditTrailEmitter) *SubLedgerService {
	if guard == nil {
		guard = NewAttachmentGuard()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if audit == nil {
		audit = NopEmitter{}
	}
	return &SubLedgerService{store: store, guard: guard, clock: clock, audit: audit}
}

// Create validates and persists a new entry. The attachment pointer always
// starts nil regardless of what the caller passed; attachment is the
// engine's job.
func (svc *SubLedgerService) Create(ctx context.Context, e Entry) (Entry, error) {
	if err := newValidationError(e.Validate()); err != nil {
		return nil, err
	}

	now := svc.clock.Now()
	stamped := CloneEntry(e)
	switch v := stamped.(type) {
	case *AttendanceEntry:
		if v.ID == "" {
			v.ID = EntryID(uuid.NewString())
		}
		v.PayrollRecordID = nil
		v.CreatedAt, v.UpdatedAt = now, now
	case *OvertimeEntry:
		if v.ID == "" {
			v.ID = EntryID(uuid.NewString())
		}
		v.PayrollRecordID = nil
		v.CreatedAt, v.UpdatedAt = now, now
	case *DeductionEntry:
		if v.ID == "" {
			v.ID = EntryID(uuid.NewString())
		}
		v.PayrollRecordID = nil
		v.CreatedAt, v.UpdatedAt = now, now
	default:
		return nil, fmt.Errorf("unsupported entry type %T", e)
	}

	if err := svc.store.PutEntry(ctx, stamped); err != nil {
		return nil, err
	}
	if err := svc.audit.Emit(ctx, newAuditEvent(svc.clock, string(stamped.Kind()), string(stamped.EntryID()), AuditCreate, nil, CloneEntry(stamped))); err != nil {
		return nil, fmt.Errorf("audit emit failed: %w", err)
	}
	return stamped, nil
}

// Update replaces an existing entry's mutable fields. Rejected with
// ImmutableStateError while the entry is attached to a payroll record.
func (svc *SubLedgerService) Update(ctx context.Context, e Entry) (Entry, error) {
	if err := newValidationError(e.Validate()); err != nil {
		return nil, err
	}

	var before, after Entry
	err := svc.store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetEntry(ctx, e.Kind(), e.EntryID())
		if err != nil {
			return err
		}
		if err := svc.guard.CanMutate(existing); err != nil {
			return err
		}
		before = CloneEntry(existing)

		merged := CloneEntry(e)
		preserveImmutableFields(merged, existing, svc.clock.Now())
		if err := s.PutEntry(ctx, merged); err != nil {
			return err
		}
		after = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := svc.audit.Emit(ctx, newAuditEvent(svc.clock, string(after.Kind()), string(after.EntryID()), AuditUpdate, before, CloneEntry(after))); err != nil {
		return nil, fmt.Errorf("audit emit failed: %w", err)
	}
	return after, nil
}

// Delete removes an unattached entry. Attached entries are non-deletable.
func (svc *SubLedgerService) Delete(ctx context.Context, kind EntryKind, id EntryID) error {
	var before Entry
	err := svc.store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetEntry(ctx, kind, id)
		if err != nil {
			return err
		}
		if err := svc.guard.CanMutate(existing); err != nil {
			return err
		}
		before = CloneEntry(existing)
		return s.DeleteEntry(ctx, kind, id)
	})
	if err != nil {
		return err
	}

	if err := svc.audit.Emit(ctx, newAuditEvent(svc.clock, string(kind), string(id), AuditDelete, before, nil)); err != nil {
		return fmt.Errorf("audit emit failed: %w", err)
	}
	return nil
}

func (svc *SubLedgerService) Get(ctx context.Context, kind EntryKind, id EntryID) (Entry, error) {
	return svc.store.GetEntry(ctx, kind, id)
}

func (svc *SubLedgerService) List(ctx context.Context, f EntryFilter) ([]Entry, error) {
	return svc.store.ListEntries(ctx, f)
}

// =============================================================================
// HELPERS
// =============================================================================

// CloneEntry deep-copies a concrete entry. Attachment pointers are copied by
// value so a caller can't reach through and flip them.
func CloneEntry(e Entry) Entry {
	switch v := e.(type) {
	case *AttendanceEntry:
		cp := *v
		cp.PayrollRecordID = cloneRecordID(v.PayrollRecordID)
		return &cp
	case *OvertimeEntry:
		cp := *v
		cp.PayrollRecordID = cloneRecordID(v.PayrollRecordID)
		return &cp
	case *DeductionEntry:
		cp := *v
		cp.PayrollRecordID = cloneRecordID(v.PayrollRecordID)
		return &cp
	default:
		return e
	}
}

func cloneRecordID(id *RecordID) *RecordID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

// preserveImmutableFields keeps identity, attachment state, and creation
// metadata from the stored row when applying an update.
func preserveImmutableFields(merged, existing Entry, now time.Time) {
	switch m := merged.(type) {
	case *AttendanceEntry:
		ex := existing.(*AttendanceEntry)
		m.ID = ex.ID
		m.PayrollRecordID = nil // CanMutate guaranteed unattached
		m.CreatedAt = ex.CreatedAt
		m.UpdatedAt = now
	case *OvertimeEntry:
		ex := existing.(*OvertimeEntry)
		m.ID = ex.ID
		m.PayrollRecordID = nil
		m.CreatedAt = ex.CreatedAt
		m.UpdatedAt = now
	case *DeductionEntry:
		ex := existing.(*DeductionEntry)
		m.ID = ex.ID
		m.PayrollRecordID = nil
		m.CreatedAt = ex.CreatedAt
		m.UpdatedAt = now
	}
}
