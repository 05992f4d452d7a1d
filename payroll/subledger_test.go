package payroll_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestSubLedgerCreate_StampsIdentityAndClearsAttachment(t *testing.T) {
	// GIVEN: An entry carrying a caller-supplied attachment pointer
	// WHEN: Creating
	// THEN: ID and timestamps are stamped, the pointer starts nil regardless

	f := newFixture(t)
	rogue := payroll.RecordID("not-yours")
	created, err := f.subledger.Create(context.Background(), &payroll.AttendanceEntry{
		EmployeeID:      "emp-1",
		Date:            d("2024-01-05"),
		Status:          payroll.AttendancePresent,
		PayrollRecordID: &rogue,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.EntryID())
	assert.Nil(t, created.AttachedTo())
	att := created.(*payroll.AttendanceEntry)
	assert.Equal(t, f.clock.T, att.CreatedAt)
}

func TestSubLedgerCreate_ValidationRejectsBadEntries(t *testing.T) {
	// GIVEN: An overtime entry with no employee, a bad status, negative hours
	// WHEN: Creating
	// THEN: Every violation reported at once

	f := newFixture(t)
	_, err := f.subledger.Create(context.Background(), &payroll.OvertimeEntry{
		Date:   d("2024-01-05"),
		Hours:  dec("-2"),
		Status: "maybe",
	})

	var verr *payroll.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations, "employeeId is required")
	assert.Contains(t, verr.Violations, "hours must not be negative")
	assert.Contains(t, verr.Violations, "status must be one of: pending, approved, rejected")
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestSubLedgerUpdate_ReplacesMutableFields(t *testing.T) {
	// GIVEN: An unattached deduction
	// WHEN: Updating the amount
	// THEN: Amount changes, identity and creation time are preserved

	f := newFixture(t)
	ctx := context.Background()
	created := f.deduction(t, "emp-1", "2024-01-05", payroll.DeductionLoan, "300")

	updated, err := f.subledger.Update(ctx, &payroll.DeductionEntry{
		ID:         created.EntryID(),
		EmployeeID: "emp-1",
		Date:       d("2024-01-05"),
		Type:       payroll.DeductionLoan,
		Amount:     dec("450"),
	})
	require.NoError(t, err)

	ded := updated.(*payroll.DeductionEntry)
	assert.Equal(t, created.EntryID(), ded.ID)
	assert.True(t, ded.Amount.Equal(dec("450")))
	assert.Equal(t, created.(*payroll.DeductionEntry).CreatedAt, ded.CreatedAt)
}

func TestSubLedgerUpdate_AttachedEntryImmutable(t *testing.T) {
	// GIVEN: An attendance entry consumed by a payroll run
	// WHEN: Updating or deleting it
	// THEN: ImmutableStateError with the processed-in-payroll reason

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	att := f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	_, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	_, err = f.subledger.Update(ctx, &payroll.AttendanceEntry{
		ID:         att.EntryID(),
		EmployeeID: "emp-1",
		Date:       d("2024-01-02"),
		Status:     payroll.AttendanceAbsent,
	})
	require.ErrorIs(t, err, payroll.ErrImmutableState)
	assert.Contains(t, err.Error(), "already processed in payroll")

	err = f.subledger.Delete(ctx, payroll.KindAttendance, att.EntryID())
	assert.ErrorIs(t, err, payroll.ErrImmutableState)
}

func TestSubLedgerUpdate_MissingEntry(t *testing.T) {
	// GIVEN: No such entry
	// WHEN: Updating
	// THEN: NotFound

	f := newFixture(t)
	_, err := f.subledger.Update(context.Background(), &payroll.AttendanceEntry{
		ID:         "missing",
		EmployeeID: "emp-1",
		Date:       d("2024-01-02"),
		Status:     payroll.AttendancePresent,
	})
	assert.True(t, payroll.IsNotFound(err))
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestSubLedgerDelete_UnattachedEntry(t *testing.T) {
	// GIVEN: An unattached overtime entry
	// WHEN: Deleting
	// THEN: Gone

	f := newFixture(t)
	ctx := context.Background()
	ot := f.overtime(t, "emp-1", "2024-01-05", "2", "156.26", payroll.OvertimePending)

	require.NoError(t, f.subledger.Delete(ctx, payroll.KindOvertime, ot.EntryID()))

	_, err := f.subledger.Get(ctx, payroll.KindOvertime, ot.EntryID())
	assert.True(t, payroll.IsNotFound(err))
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestSubLedgerList_FiltersByKindEmployeeAndAttachment(t *testing.T) {
	// GIVEN: A mixed set of entries, some consumed by a payroll run
	// WHEN: Listing with kind, employee, and attachment filters
	// THEN: Each filter narrows correctly

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	f.attendance(t, "emp-2", "2024-01-02", payroll.AttendancePresent)
	f.deduction(t, "emp-1", "2024-01-10", payroll.DeductionSSS, "100")

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	emp1 := payroll.EmployeeID("emp-1")
	got, err := f.subledger.List(ctx, payroll.EntryFilter{
		Kinds:      []payroll.EntryKind{payroll.KindAttendance},
		EmployeeID: &emp1,
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	attached, err := f.subledger.List(ctx, payroll.EntryFilter{AttachedTo: &record.ID})
	require.NoError(t, err)
	assert.Len(t, attached, 2)

	unattached, err := f.subledger.List(ctx, payroll.EntryFilter{Unattached: true})
	require.NoError(t, err)
	require.Len(t, unattached, 1)
	assert.Equal(t, payroll.EmployeeID("emp-2"), unattached[0].Employee())
}
