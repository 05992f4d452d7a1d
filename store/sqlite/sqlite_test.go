package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func samplePeriod(id payroll.PeriodID) *payroll.PayrollPeriod {
	now := time.Date(2024, time.January, 16, 9, 0, 0, 0, time.UTC)
	return &payroll.PayrollPeriod{
		ID:              id,
		Name:            "Jan 1 - Jan 15, 2024 (semi-monthly)",
		PeriodType:      payroll.PeriodSemiMonthly,
		StartDate:       payroll.MustParseDate("2024-01-01"),
		EndDate:         payroll.MustParseDate("2024-01-15"),
		PayDate:         payroll.MustParseDate("2024-01-20"),
		WorkingDays:     11,
		Status:          payroll.PeriodOpen,
		TotalGrossPay:   payroll.MustParseDecimal("0"),
		TotalDeductions: payroll.MustParseDecimal("0"),
		TotalNetPay:     payroll.MustParseDecimal("0"),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func sampleRecord(id payroll.RecordID, emp payroll.EmployeeID, periodID payroll.PeriodID) *payroll.PayrollRecord {
	return &payroll.PayrollRecord{
		ID:            id,
		EmployeeID:    emp,
		PeriodID:      periodID,
		DaysPresent:   10,
		DaysLate:      1,
		BasicPay:      payroll.MustParseDecimal("5500"),
		OvertimeHours: payroll.MustParseDecimal("3"),
		OvertimePay:   payroll.MustParseDecimal("234.39"),
		HolidayPay:    payroll.MustParseDecimal("0"),
		NightDiffPay:  payroll.MustParseDecimal("0"),
		Allowance:     payroll.MustParseDecimal("0"),
		Bonus:         payroll.MustParseDecimal("0"),
		GrossPay:      payroll.MustParseDecimal("5734.39"),
		Deductions: map[payroll.DeductionType]decimal.Decimal{
			payroll.DeductionSSS: payroll.MustParseDecimal("292.50"),
			payroll.DeductionTax: payroll.MustParseDecimal("89.25"),
		},
		DeductionsTotal: payroll.MustParseDecimal("381.75"),
		NetPay:          payroll.MustParseDecimal("5352.64"),
		ComputedAt:      time.Date(2024, time.January, 16, 9, 0, 0, 0, time.UTC),
		PaymentStatus:   payroll.PaymentUnpaid,
	}
}

// =============================================================================
// PERIOD PERSISTENCE
// =============================================================================

func TestSqlite_PeriodRoundTrip(t *testing.T) {
	// GIVEN: A period with dates, decimals, and a locked timestamp
	// WHEN: Persisting and reading back
	// THEN: Every field survives the string encodings

	store := newTestStore(t)
	ctx := context.Background()

	p := samplePeriod("p-1")
	lockedAt := time.Date(2024, time.January, 17, 10, 30, 0, 0, time.UTC)
	p.Status = payroll.PeriodLocked
	p.LockedAt = &lockedAt
	p.TotalGrossPay = payroll.MustParseDecimal("12345.67")

	require.NoError(t, store.CreatePeriod(ctx, p))

	got, err := store.GetPeriod(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, payroll.PeriodLocked, got.Status)
	assert.True(t, got.StartDate.Equal(p.StartDate))
	assert.True(t, got.PayDate.Equal(p.PayDate))
	require.NotNil(t, got.LockedAt)
	assert.True(t, got.LockedAt.Equal(lockedAt))
	assert.True(t, got.TotalGrossPay.Equal(p.TotalGrossPay))
	assert.Equal(t, 11, got.WorkingDays)
}

func TestSqlite_UpdateMissingPeriodIsNotFound(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Updating a period that does not exist
	// THEN: NotFound, mapped from zero rows affected

	store := newTestStore(t)
	err := store.UpdatePeriod(context.Background(), samplePeriod("ghost"))
	assert.True(t, payroll.IsNotFound(err))
}

func TestSqlite_FindOverlappingHalfOpen(t *testing.T) {
	// GIVEN: A stored Jan 1-15 period
	// WHEN: Probing overlapping and boundary-adjacent ranges
	// THEN: Interior overlap matches, a shared boundary day does not

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreatePeriod(ctx, samplePeriod("p-1")))

	hits, err := store.FindOverlapping(ctx,
		payroll.MustParseDate("2024-01-10"), payroll.MustParseDate("2024-01-25"), "")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = store.FindOverlapping(ctx,
		payroll.MustParseDate("2024-01-15"), payroll.MustParseDate("2024-01-31"), "")
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Excluding the period itself finds nothing.
	hits, err = store.FindOverlapping(ctx,
		payroll.MustParseDate("2024-01-01"), payroll.MustParseDate("2024-01-15"), "p-1")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// =============================================================================
// RECORD PERSISTENCE
// =============================================================================

func TestSqlite_RecordRoundTripWithDeductionsMap(t *testing.T) {
	// GIVEN: A record whose deductions map holds two types
	// WHEN: Persisting and reading back
	// THEN: The JSON-encoded map and every decimal survive exactly

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreatePeriod(ctx, samplePeriod("p-1")))

	r := sampleRecord("r-1", "emp-1", "p-1")
	require.NoError(t, store.PutRecord(ctx, r))

	got, err := store.GetRecord(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, payroll.EmployeeID("emp-1"), got.EmployeeID)
	assert.Equal(t, 10, got.DaysPresent)
	assert.True(t, got.GrossPay.Equal(r.GrossPay))
	assert.True(t, got.NetPay.Equal(r.NetPay))
	require.Len(t, got.Deductions, 2)
	assert.True(t, got.Deductions[payroll.DeductionSSS].Equal(payroll.MustParseDecimal("292.50")))
	assert.True(t, got.Deductions[payroll.DeductionTax].Equal(payroll.MustParseDecimal("89.25")))
}

func TestSqlite_PutRecordUpserts(t *testing.T) {
	// GIVEN: A stored record
	// WHEN: Putting the same ID with new amounts
	// THEN: One row, updated in place

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreatePeriod(ctx, samplePeriod("p-1")))

	r := sampleRecord("r-1", "emp-1", "p-1")
	require.NoError(t, store.PutRecord(ctx, r))

	r.NetPay = payroll.MustParseDecimal("4000")
	r.PaymentStatus = payroll.PaymentPartiallyPaid
	require.NoError(t, store.PutRecord(ctx, r))

	records, err := store.ListRecords(ctx, payroll.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].NetPay.Equal(payroll.MustParseDecimal("4000")))
	assert.Equal(t, payroll.PaymentPartiallyPaid, records[0].PaymentStatus)
}

func TestSqlite_GetRecordByKey(t *testing.T) {
	// GIVEN: One stored record
	// WHEN: Looking up by (employee, period) for present and absent pairs
	// THEN: Present returns the record; absent returns nil, nil

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreatePeriod(ctx, samplePeriod("p-1")))
	require.NoError(t, store.PutRecord(ctx, sampleRecord("r-1", "emp-1", "p-1")))

	got, err := store.GetRecordByKey(ctx, "emp-1", "p-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, payroll.RecordID("r-1"), got.ID)

	absent, err := store.GetRecordByKey(ctx, "emp-2", "p-1")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

// =============================================================================
// ENTRY PERSISTENCE
// =============================================================================

func TestSqlite_EntryRoundTripAllKinds(t *testing.T) {
	// GIVEN: One entry of each sub-ledger kind
	// WHEN: Persisting and reading back
	// THEN: Typed fields survive for each kind

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, time.January, 5, 8, 0, 0, 0, time.UTC)

	entries := []payroll.Entry{
		&payroll.AttendanceEntry{
			ID: "a-1", EmployeeID: "emp-1",
			Date:   payroll.MustParseDate("2024-01-05"),
			Status: payroll.AttendanceLate,
			TimeIn: "09:45", TimeOut: "18:00",
			CreatedAt: now, UpdatedAt: now,
		},
		&payroll.OvertimeEntry{
			ID: "o-1", EmployeeID: "emp-1",
			Date:   payroll.MustParseDate("2024-01-06"),
			Hours:  payroll.MustParseDecimal("3"),
			Rate:   payroll.MustParseDecimal("78.13"),
			Amount: payroll.MustParseDecimal("234.39"),
			Status: payroll.OvertimeApproved,
			CreatedAt: now, UpdatedAt: now,
		},
		&payroll.DeductionEntry{
			ID: "d-1", EmployeeID: "emp-1",
			Date:   payroll.MustParseDate("2024-01-07"),
			Type:   payroll.DeductionPhilHealth,
			Amount: payroll.MustParseDecimal("162.50"),
			CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, e := range entries {
		require.NoError(t, store.PutEntry(ctx, e))
	}

	att, err := store.GetEntry(ctx, payroll.KindAttendance, "a-1")
	require.NoError(t, err)
	assert.Equal(t, payroll.AttendanceLate, att.(*payroll.AttendanceEntry).Status)
	assert.Equal(t, "09:45", att.(*payroll.AttendanceEntry).TimeIn)

	ot, err := store.GetEntry(ctx, payroll.KindOvertime, "o-1")
	require.NoError(t, err)
	assert.True(t, ot.(*payroll.OvertimeEntry).Amount.Equal(payroll.MustParseDecimal("234.39")))
	assert.Equal(t, payroll.OvertimeApproved, ot.(*payroll.OvertimeEntry).Status)

	ded, err := store.GetEntry(ctx, payroll.KindDeduction, "d-1")
	require.NoError(t, err)
	assert.Equal(t, payroll.DeductionPhilHealth, ded.(*payroll.DeductionEntry).Type)

	all, err := store.ListEntries(ctx, payroll.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, payroll.EntryID("a-1"), all[0].EntryID())
}

func TestSqlite_SetAttachmentFilters(t *testing.T) {
	// GIVEN: Two entries, one attached to a record
	// WHEN: Listing by attachment state
	// THEN: The filters partition the set; clearing restores unattached

	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []payroll.EntryID{"a-1", "a-2"} {
		require.NoError(t, store.PutEntry(ctx, &payroll.AttendanceEntry{
			ID: id, EmployeeID: "emp-1",
			Date:   payroll.MustParseDate("2024-01-05"),
			Status: payroll.AttendancePresent,
		}))
	}

	rec := payroll.RecordID("r-1")
	require.NoError(t, store.SetAttachment(ctx, payroll.KindAttendance, "a-1", &rec))

	attached, err := store.ListEntries(ctx, payroll.EntryFilter{AttachedTo: &rec})
	require.NoError(t, err)
	require.Len(t, attached, 1)
	require.NotNil(t, attached[0].AttachedTo())
	assert.Equal(t, rec, *attached[0].AttachedTo())

	require.NoError(t, store.SetAttachment(ctx, payroll.KindAttendance, "a-1", nil))
	unattached, err := store.ListEntries(ctx, payroll.EntryFilter{Unattached: true})
	require.NoError(t, err)
	assert.Len(t, unattached, 2)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSqlite_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes a period then fails
	// WHEN: The transaction returns an error
	// THEN: Nothing is visible afterwards

	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s payroll.Store) error {
		if err := s.CreatePeriod(ctx, samplePeriod("p-1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetPeriod(ctx, "p-1")
	assert.True(t, payroll.IsNotFound(err))
}

func TestSqlite_WithTxSeesOwnWrites(t *testing.T) {
	// GIVEN: A transaction that writes then reads
	// WHEN: Reading inside the same transaction
	// THEN: The write is visible before commit

	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s payroll.Store) error {
		if err := s.CreatePeriod(ctx, samplePeriod("p-1")); err != nil {
			return err
		}
		got, err := s.GetPeriod(ctx, "p-1")
		if err != nil {
			return err
		}
		if got.Name == "" {
			return errors.New("expected period visible inside tx")
		}
		return nil
	})
	require.NoError(t, err)

	_, err = store.GetPeriod(ctx, "p-1")
	assert.NoError(t, err)
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestSqlite_AuditEmitAndList(t *testing.T) {
	// GIVEN: Two emitted events for one period
	// WHEN: Listing by entity and entity ID
	// THEN: Events come back newest first with JSON snapshots

	store := newTestStore(t)
	ctx := context.Background()

	p := samplePeriod("p-1")
	events := []payroll.AuditEvent{
		{ID: "ev-1", Entity: "period", EntityID: "p-1", Action: payroll.AuditCreate,
			NewData: p, Timestamp: time.Date(2024, time.January, 16, 9, 0, 0, 0, time.UTC)},
		{ID: "ev-2", Entity: "period", EntityID: "p-1", Action: payroll.AuditUpdate,
			OldData: p, NewData: p, Timestamp: time.Date(2024, time.January, 16, 10, 0, 0, 0, time.UTC)},
	}
	for _, ev := range events {
		require.NoError(t, store.Emit(ctx, ev))
	}

	got, err := store.ListAuditEvents(ctx, "period", "p-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-2", got[0].ID)
	assert.Equal(t, string(payroll.AuditUpdate), got[0].Action)
	assert.Contains(t, got[0].NewData, "semi-monthly")
}

// =============================================================================
// FULL-STACK: ENGINE OVER SQLITE
// =============================================================================

func TestSqlite_EngineComputesEndToEnd(t *testing.T) {
	// GIVEN: The full engine wired over the sqlite store
	// WHEN: Creating a period, seeding entries, and computing
	// THEN: The persisted record and period totals are correct

	store := newTestStore(t)
	ctx := context.Background()
	clock := payroll.FixedClock{T: time.Date(2024, time.January, 16, 9, 0, 0, 0, time.UTC)}
	rates := &payroll.StaticRateProvider{Rates: map[payroll.EmployeeID]payroll.RateConfig{
		"emp-1": {DailyRate: payroll.MustParseDecimal("500")},
	}}
	guard := payroll.NewAttachmentGuard()
	lifecycle := payroll.NewPeriodLifecycle(store, clock, store)
	subledger := payroll.NewSubLedgerService(store, guard, clock, store)
	engine := payroll.NewComputationEngine(store, guard, rates, nil, nil, clock, store)

	period, err := lifecycle.Create(ctx, payroll.PeriodInput{
		PeriodType:  payroll.PeriodSemiMonthly,
		StartDate:   payroll.MustParseDate("2024-01-01"),
		EndDate:     payroll.MustParseDate("2024-01-15"),
		PayDate:     payroll.MustParseDate("2024-01-20"),
		WorkingDays: 11,
	})
	require.NoError(t, err)

	for day := 1; day <= 10; day++ {
		_, err := subledger.Create(ctx, &payroll.AttendanceEntry{
			EmployeeID: "emp-1",
			Date:       payroll.NewDate(2024, time.January, day),
			Status:     payroll.AttendancePresent,
		})
		require.NoError(t, err)
	}
	_, err = subledger.Create(ctx, &payroll.DeductionEntry{
		EmployeeID: "emp-1",
		Date:       payroll.MustParseDate("2024-01-15"),
		Type:       payroll.DeductionSSS,
		Amount:     payroll.MustParseDecimal("200"),
	})
	require.NoError(t, err)

	record, err := engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	assert.True(t, record.NetPay.Equal(payroll.MustParseDecimal("4800")))

	persisted, err := store.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, persisted.NetPay.Equal(record.NetPay))
	assert.Equal(t, 10, persisted.DaysPresent)

	gotPeriod, err := store.GetPeriod(ctx, period.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotPeriod.TotalEmployees)
	assert.True(t, gotPeriod.TotalNetPay.Equal(payroll.MustParseDecimal("4800")))

	audits, err := store.ListAuditEvents(ctx, "record", string(record.ID), 10)
	require.NoError(t, err)
	assert.NotEmpty(t, audits)
}

// =============================================================================
// RESET
// =============================================================================

func TestSqlite_ResetClearsAllTables(t *testing.T) {
	// GIVEN: Data in every table
	// WHEN: Resetting
	// THEN: Everything is gone

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreatePeriod(ctx, samplePeriod("p-1")))
	require.NoError(t, store.PutRecord(ctx, sampleRecord("r-1", "emp-1", "p-1")))
	require.NoError(t, store.PutEntry(ctx, &payroll.AttendanceEntry{
		ID: "a-1", EmployeeID: "emp-1",
		Date:   payroll.MustParseDate("2024-01-05"),
		Status: payroll.AttendancePresent,
	}))

	require.NoError(t, store.Reset(ctx))

	periods, err := store.ListPeriods(ctx, payroll.PeriodFilter{})
	require.NoError(t, err)
	assert.Empty(t, periods)

	records, err := store.ListRecords(ctx, payroll.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	entries, err := store.ListEntries(ctx, payroll.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
