/*
guard.go - Sub-ledger attachment protocol

PURPOSE:
  Mediates every mutation and deletion request on sub-ledger entries, and
  owns the attachment pointer. This indirection is what prevents the classic
  bug of "someone edits an overtime hour after payroll was already paid":
  every edit path for sub-ledger entries routes through CanMutate.

RULES:
  - An entry attached to a payroll record is immutable and non-deletable.
  - Attachment requires the target record's period to be open or processing;
    locked and closed periods reject attachment.
  - Detachment only happens inside the engine's recompute/delete cycle,
    never directly from a caller.

SEE ALSO:
  - subledger.go: routes caller mutations through CanMutate
  - engine.go: Attach/Detach during computation
*/
package payroll

import (
	"context"
	"fmt"
)

// =============================================================================
// ATTACHMENT GUARD
// =============================================================================

// AttachmentGuard enforces the sub-ledger immutability rules. It is
// stateless; methods take the Store so they compose with the caller's
// transaction.
type AttachmentGuard struct{}

func NewAttachmentGuard() *AttachmentGuard { return &AttachmentGuard{} }

// CanMutate returns nil iff the entry is unattached. Attached entries fail
// with ImmutableStateError carrying the "already processed in payroll" reason.
func (g *AttachmentGuard) CanMutate(e Entry) error {
	if rec := e.AttachedTo(); rec != nil {
		return &ImmutableStateError{
			Entity: string(e.Kind()),
			ID:     string(e.EntryID()),
			Reason: fmt.Sprintf("already processed in payroll (record %s)", *rec),
		}
	}
	return nil
}

// Attach points the entry at the record. No-op when already attached to the
// same record; AlreadyAttachedError when attached to a different one;
// PeriodLockedError when the record's owning period is locked or closed.
func (g *AttachmentGuard) Attach(ctx context.Context, s Store, e Entry, recordID RecordID) error {
	if current := e.AttachedTo(); current != nil {
		if *current == recordID {
			return nil
		}
		return &AlreadyAttachedError{
			Entry:      e.EntryID(),
			AttachedTo: *current,
			Requested:  recordID,
		}
	}

	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	period, err := s.GetPeriod(ctx, record.PeriodID)
	if err != nil {
		return err
	}
	if period.IsFrozen() {
		return &PeriodLockedError{PeriodID: period.ID, Status: period.Status}
	}

	if err := s.SetAttachment(ctx, e.Kind(), e.EntryID(), &recordID); err != nil {
		return err
	}
	setAttachmentPointer(e, &recordID)
	return nil
}

// Detach clears the entry's attachment pointer. Only the engine calls this,
// during a recompute or record-delete cycle.
func (g *AttachmentGuard) Detach(ctx context.Context, s Store, e Entry) error {
	if e.AttachedTo() == nil {
		return nil
	}
	if err := s.SetAttachment(ctx, e.Kind(), e.EntryID(), nil); err != nil {
		return err
	}
	setAttachmentPointer(e, nil)
	return nil
}

// setAttachmentPointer keeps the caller's in-memory entity in step with the
// store, so a detach-then-attach cycle within one transaction sees the
// current pointer.
func setAttachmentPointer(e Entry, id *RecordID) {
	switch v := e.(type) {
	case *AttendanceEntry:
		v.PayrollRecordID = id
	case *OvertimeEntry:
		v.PayrollRecordID = id
	case *DeductionEntry:
		v.PayrollRecordID = id
	}
}
