package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	memstore "github.com/warp/payroll-engine/payroll/store"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

type fixture struct {
	store     *memstore.TxMemory
	clock     payroll.FixedClock
	audit     *payroll.MemoryEmitter
	rates     *payroll.StaticRateProvider
	lifecycle *payroll.PeriodLifecycle
	subledger *payroll.SubLedgerService
	engine    *payroll.ComputationEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: memstore.NewTxMemory(),
		clock: payroll.FixedClock{T: time.Date(2024, time.January, 16, 9, 0, 0, 0, time.UTC)},
		audit: payroll.NewMemoryEmitter(),
		rates: &payroll.StaticRateProvider{Rates: make(map[payroll.EmployeeID]payroll.RateConfig)},
	}
	guard := payroll.NewAttachmentGuard()
	f.lifecycle = payroll.NewPeriodLifecycle(f.store, f.clock, f.audit)
	f.subledger = payroll.NewSubLedgerService(f.store, guard, f.clock, f.audit)
	f.engine = payroll.NewComputationEngine(f.store, guard, f.rates, nil, nil, f.clock, f.audit)
	return f
}

func (f *fixture) setRate(emp payroll.EmployeeID, dailyRate string) {
	f.rates.Rates[emp] = payroll.RateConfig{
		DailyRate:          dec(dailyRate),
		OvertimeMultiplier: dec("1.25"),
	}
}

func (f *fixture) openPeriod(t *testing.T, start, end, payDate string, workingDays int) *payroll.PayrollPeriod {
	t.Helper()
	period, err := f.lifecycle.Create(context.Background(), payroll.PeriodInput{
		PeriodType:  payroll.PeriodSemiMonthly,
		StartDate:   d(start),
		EndDate:     d(end),
		PayDate:     d(payDate),
		WorkingDays: workingDays,
	})
	require.NoError(t, err)
	return period
}

func (f *fixture) attendance(t *testing.T, emp payroll.EmployeeID, date string, status payroll.AttendanceStatus) payroll.Entry {
	t.Helper()
	e, err := f.subledger.Create(context.Background(), &payroll.AttendanceEntry{
		EmployeeID: emp,
		Date:       d(date),
		Status:     status,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) presentDays(t *testing.T, emp payroll.EmployeeID, year int, month time.Month, from, to int) {
	t.Helper()
	for day := from; day <= to; day++ {
		_, err := f.subledger.Create(context.Background(), &payroll.AttendanceEntry{
			EmployeeID: emp,
			Date:       payroll.NewDate(year, month, day),
			Status:     payroll.AttendancePresent,
		})
		require.NoError(t, err)
	}
}

func (f *fixture) overtime(t *testing.T, emp payroll.EmployeeID, date string, hours, amount string, status payroll.OvertimeStatus) payroll.Entry {
	t.Helper()
	e, err := f.subledger.Create(context.Background(), &payroll.OvertimeEntry{
		EmployeeID: emp,
		Date:       d(date),
		Hours:      dec(hours),
		Amount:     dec(amount),
		Status:     status,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) deduction(t *testing.T, emp payroll.EmployeeID, date string, typ payroll.DeductionType, amount string) payroll.Entry {
	t.Helper()
	e, err := f.subledger.Create(context.Background(), &payroll.DeductionEntry{
		EmployeeID: emp,
		Date:       d(date),
		Type:       typ,
		Amount:     dec(amount),
	})
	require.NoError(t, err)
	return e
}

func d(s string) payroll.Date { return payroll.MustParseDate(s) }

func dec(s string) decimal.Decimal { return payroll.MustParseDecimal(s) }

func assertMoney(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, actual.Equal(dec(expected)), "expected %s, got %s: %v", expected, actual, msgAndArgs)
}

// =============================================================================
// COMPUTATION TESTS
// =============================================================================

func TestCompute_BasicAggregation(t *testing.T) {
	// GIVEN: An open semi-monthly period, an employee at 500/day with
	//        10 present days, 1 late day, and one SSS deduction of 200
	// WHEN: Computing the payroll record
	// THEN: Basic = 500 x 11 = 5500, gross = 5500, net = 5300

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.presentDays(t, "emp-1", 2024, time.January, 1, 10)
	f.attendance(t, "emp-1", "2024-01-11", payroll.AttendanceLate)
	f.deduction(t, "emp-1", "2024-01-15", payroll.DeductionSSS, "200")

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	assert.Equal(t, 10, record.DaysPresent)
	assert.Equal(t, 1, record.DaysLate)
	assertMoney(t, "5500", record.BasicPay)
	assertMoney(t, "5500", record.GrossPay)
	assertMoney(t, "200", record.DeductionsTotal)
	assertMoney(t, "200", record.Deductions[payroll.DeductionSSS])
	assertMoney(t, "5300", record.NetPay)
	assert.Equal(t, payroll.PaymentUnpaid, record.PaymentStatus)
	assert.Empty(t, record.Remarks)
}

func TestCompute_HalfDaysCountAsHalf(t *testing.T) {
	// GIVEN: 9 present days, 1 absent, 1 half-day at 650/day
	// WHEN: Computing
	// THEN: Paid-day equivalent is 9.5, basic = 6175; absences earn nothing

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "650")
	f.presentDays(t, "emp-1", 2024, time.January, 1, 9)
	f.attendance(t, "emp-1", "2024-01-10", payroll.AttendanceAbsent)
	f.attendance(t, "emp-1", "2024-01-11", payroll.AttendanceHalfDay)

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	assert.Equal(t, 9, record.DaysPresent)
	assert.Equal(t, 1, record.DaysAbsent)
	assert.Equal(t, 1, record.DaysHalfDay)
	assertMoney(t, "6175", record.BasicPay)
}

func TestCompute_OnlyApprovedOvertimePaysOut(t *testing.T) {
	// GIVEN: Approved, pending, and rejected overtime entries in the period
	// WHEN: Computing
	// THEN: Only the approved entry contributes; the others stay unattached

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	approved := f.overtime(t, "emp-1", "2024-01-03", "3", "234.39", payroll.OvertimeApproved)
	pending := f.overtime(t, "emp-1", "2024-01-04", "2", "156.26", payroll.OvertimePending)
	rejected := f.overtime(t, "emp-1", "2024-01-05", "1", "78.13", payroll.OvertimeRejected)

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	assertMoney(t, "3", record.OvertimeHours)
	assertMoney(t, "234.39", record.OvertimePay)
	assertMoney(t, "734.39", record.GrossPay)

	got, err := f.subledger.Get(ctx, payroll.KindOvertime, approved.EntryID())
	require.NoError(t, err)
	require.NotNil(t, got.AttachedTo())
	assert.Equal(t, record.ID, *got.AttachedTo())

	for _, e := range []payroll.Entry{pending, rejected} {
		got, err := f.subledger.Get(ctx, payroll.KindOvertime, e.EntryID())
		require.NoError(t, err)
		assert.Nil(t, got.AttachedTo())
	}
}

func TestCompute_DeductionsGroupedByType(t *testing.T) {
	// GIVEN: Two loan deductions and one tax deduction
	// WHEN: Computing
	// THEN: The record's deduction map groups amounts by type

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	f.deduction(t, "emp-1", "2024-01-05", payroll.DeductionLoan, "300")
	f.deduction(t, "emp-1", "2024-01-12", payroll.DeductionLoan, "150.50")
	f.deduction(t, "emp-1", "2024-01-15", payroll.DeductionTax, "89.25")

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	assertMoney(t, "450.50", record.Deductions[payroll.DeductionLoan])
	assertMoney(t, "89.25", record.Deductions[payroll.DeductionTax])
	assertMoney(t, "539.75", record.DeductionsTotal)
}

func TestCompute_NegativeNetIsNotedNeverClamped(t *testing.T) {
	// GIVEN: Two present days at 400/day and a 1500 loan deduction
	// WHEN: Computing
	// THEN: Net pay is -700, flagged in remarks, not clamped to zero

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-03-01", "2024-03-15", "2024-03-20", 10)

	f.setRate("emp-1", "400")
	f.attendance(t, "emp-1", "2024-03-01", payroll.AttendancePresent)
	f.attendance(t, "emp-1", "2024-03-04", payroll.AttendancePresent)
	f.deduction(t, "emp-1", "2024-03-15", payroll.DeductionLoan, "1500")

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	assertMoney(t, "-700", record.NetPay)
	assert.Contains(t, record.Remarks, "NEGATIVE NET PAY")
}

func TestCompute_RecomputeIsIdempotent(t *testing.T) {
	// GIVEN: A computed record with no intervening data changes
	// WHEN: Computing again
	// THEN: Same record ID, identical amounts, one record in the store

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.presentDays(t, "emp-1", 2024, time.January, 1, 5)
	f.deduction(t, "emp-1", "2024-01-10", payroll.DeductionSSS, "100")

	first, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	second, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assertMoney(t, "2500", second.BasicPay)
	assert.True(t, first.NetPay.Equal(second.NetPay))

	records, err := f.engine.List(ctx, payroll.RecordFilter{PeriodID: &period.ID})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCompute_RecomputePicksUpNewEntries(t *testing.T) {
	// GIVEN: A computed record, then a new unattached deduction in-period
	// WHEN: Recomputing
	// THEN: The new deduction is folded in and attached

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.presentDays(t, "emp-1", 2024, time.January, 1, 5)

	first, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	assertMoney(t, "2500", first.NetPay)

	late := f.deduction(t, "emp-1", "2024-01-12", payroll.DeductionCashAdvance, "400")

	second, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	assertMoney(t, "2100", second.NetPay)

	got, err := f.subledger.Get(ctx, payroll.KindDeduction, late.EntryID())
	require.NoError(t, err)
	require.NotNil(t, got.AttachedTo())
	assert.Equal(t, second.ID, *got.AttachedTo())
}

func TestCompute_OutOfPeriodEntriesIgnored(t *testing.T) {
	// GIVEN: Attendance dated before and after the period range
	// WHEN: Computing
	// THEN: Out-of-range entries neither pay out nor get attached

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-10", payroll.AttendancePresent)
	before := f.attendance(t, "emp-1", "2023-12-29", payroll.AttendancePresent)
	after := f.attendance(t, "emp-1", "2024-01-16", payroll.AttendancePresent)

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, record.DaysPresent)

	for _, e := range []payroll.Entry{before, after} {
		got, err := f.subledger.Get(ctx, payroll.KindAttendance, e.EntryID())
		require.NoError(t, err)
		assert.Nil(t, got.AttachedTo())
	}
}

func TestCompute_MissingRateFailsLoudly(t *testing.T) {
	// GIVEN: An employee with no rate config
	// WHEN: Computing
	// THEN: NotFound, no record is created

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)
	f.attendance(t, "ghost", "2024-01-02", payroll.AttendancePresent)

	_, err := f.engine.Compute(ctx, "ghost", period.ID)
	assert.True(t, payroll.IsNotFound(err))

	records, err := f.engine.List(ctx, payroll.RecordFilter{PeriodID: &period.ID})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCompute_FrozenPeriodRejected(t *testing.T) {
	// GIVEN: A locked period
	// WHEN: Computing
	// THEN: PeriodLockedError

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)
	f.setRate("emp-1", "500")

	_, err := f.lifecycle.Lock(ctx, period.ID)
	require.NoError(t, err)

	_, err = f.engine.Compute(ctx, "emp-1", period.ID)
	assert.ErrorIs(t, err, payroll.ErrPeriodLocked)
}

func TestCompute_PaidRecordRejected(t *testing.T) {
	// GIVEN: A computed record marked paid
	// WHEN: Recomputing
	// THEN: AlreadyPaidError

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	_, err = f.engine.MarkAsPaid(ctx, record.ID, payroll.PaymentInfo{Method: "cash"})
	require.NoError(t, err)

	_, err = f.engine.Compute(ctx, "emp-1", period.ID)
	assert.ErrorIs(t, err, payroll.ErrAlreadyPaid)
}

func TestCompute_NilRateProviderFailsWithoutPanicking(t *testing.T) {
	// GIVEN: An engine wired with no rate provider
	// WHEN: Computing
	// THEN: NotFound for the rate config, same as an unknown employee

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)

	engine := payroll.NewComputationEngine(f.store, nil, nil, nil, nil, f.clock, f.audit)

	_, err := engine.Compute(ctx, "emp-1", period.ID)
	assert.True(t, payroll.IsNotFound(err))
}

// parkingTxStore holds each transaction at the door until released, so a
// test can observe the engine with a computation in flight.
type parkingTxStore struct {
	payroll.TxStore
	entered chan struct{}
	release chan struct{}
}

func (p *parkingTxStore) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	select {
	case p.entered <- struct{}{}:
		<-p.release
	case <-p.release:
		// Released already; pass straight through.
	}
	return p.TxStore.WithTx(ctx, fn)
}

func TestCompute_ConcurrentSameKeyConflicts(t *testing.T) {
	// GIVEN: A computation in flight for (emp-1, period)
	// WHEN: A second Compute arrives for the same pair
	// THEN: It fails with ConflictError; the first finishes, and the key is
	//       free again afterwards

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)

	parking := &parkingTxStore{
		TxStore: f.store,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := payroll.NewComputationEngine(parking, payroll.NewAttachmentGuard(), f.rates, nil, nil, f.clock, f.audit)

	first := make(chan error, 1)
	go func() {
		_, err := engine.Compute(ctx, "emp-1", period.ID)
		first <- err
	}()
	<-parking.entered

	_, err := engine.Compute(ctx, "emp-1", period.ID)
	assert.ErrorIs(t, err, payroll.ErrConflict)
	assert.Contains(t, err.Error(), "already in progress")

	close(parking.release)
	require.NoError(t, <-first)

	_, err = engine.Compute(ctx, "emp-1", period.ID)
	assert.NoError(t, err)
}

// =============================================================================
// PAYMENT STATE TESTS
// =============================================================================

func TestPayment_MarkAsPaidStampsFields(t *testing.T) {
	// GIVEN: An unpaid computed record
	// WHEN: Marking paid with method and reference
	// THEN: Status, timestamp, and payment fields are stamped

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	paid, err := f.engine.MarkAsPaid(ctx, record.ID, payroll.PaymentInfo{
		Method:    "bank-transfer",
		Reference: "PAY-2024-001",
	})
	require.NoError(t, err)

	assert.Equal(t, payroll.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, f.clock.T, *paid.PaidAt)
	assert.Equal(t, "bank-transfer", paid.PaymentMethod)
	assert.Equal(t, "PAY-2024-001", paid.PaymentReference)
}

func TestPayment_AllowedWhileLocked(t *testing.T) {
	// GIVEN: A computed record whose period was subsequently locked
	// WHEN: Marking paid
	// THEN: Payment-status change is the one mutation a frozen period allows

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-02-01", "2024-02-15", "2024-02-20", 11)

	f.setRate("emp-1", "550")
	f.attendance(t, "emp-1", "2024-02-05", payroll.AttendancePresent)
	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.Lock(ctx, period.ID)
	require.NoError(t, err)

	paid, err := f.engine.MarkAsPaid(ctx, record.ID, payroll.PaymentInfo{Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, payroll.PaymentPaid, paid.PaymentStatus)
}

func TestPayment_PartialSurvivesRecompute(t *testing.T) {
	// GIVEN: A partially-paid record and a new in-period deduction
	// WHEN: Recomputing
	// THEN: Amounts refresh, partial payment state and fields persist

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.presentDays(t, "emp-1", 2024, time.January, 1, 5)

	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	_, err = f.engine.RecordPartialPayment(ctx, record.ID, payroll.PaymentInfo{
		Method:    "cash",
		Reference: "ADV-01",
	})
	require.NoError(t, err)

	f.deduction(t, "emp-1", "2024-01-12", payroll.DeductionSSS, "100")

	recomputed, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	assert.Equal(t, payroll.PaymentPartiallyPaid, recomputed.PaymentStatus)
	assert.Equal(t, "cash", recomputed.PaymentMethod)
	assert.Equal(t, "ADV-01", recomputed.PaymentReference)
	assertMoney(t, "2400", recomputed.NetPay)
}

func TestPayment_CancelBlockedOncePaid(t *testing.T) {
	// GIVEN: A paid record
	// WHEN: Cancelling
	// THEN: InvalidTransitionError; there is no un-pay

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	_, err = f.engine.MarkAsPaid(ctx, record.ID, payroll.PaymentInfo{Method: "cash"})
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, record.ID)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)
}

func TestPayment_CancelledExcludedFromTotals(t *testing.T) {
	// GIVEN: Two computed records in a period
	// WHEN: Cancelling one
	// THEN: Period totals reflect only the live record

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.setRate("emp-2", "600")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	f.attendance(t, "emp-2", "2024-01-02", payroll.AttendancePresent)

	_, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	r2, err := f.engine.Compute(ctx, "emp-2", period.ID)
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, r2.ID)
	require.NoError(t, err)

	got, err := f.lifecycle.Get(ctx, period.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalEmployees)
	assertMoney(t, "500", got.TotalGrossPay)
	assertMoney(t, "500", got.TotalNetPay)
}

// =============================================================================
// ADJUSTMENT TESTS
// =============================================================================

func TestAdjustments_RederiveGrossAndNet(t *testing.T) {
	// GIVEN: A computed record
	// WHEN: Setting holiday pay, allowance, and bonus
	// THEN: Gross and net are re-derived from the components

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	f.deduction(t, "emp-1", "2024-01-10", payroll.DeductionTax, "100")
	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	updated, err := f.engine.SetAdjustments(ctx, record.ID, payroll.Adjustments{
		HolidayPay: dec("500"),
		Allowance:  dec("250"),
		Bonus:      dec("1000"),
	})
	require.NoError(t, err)

	assertMoney(t, "2250", updated.GrossPay)
	assertMoney(t, "2150", updated.NetPay)
}

func TestAdjustments_CarryForwardAcrossRecompute(t *testing.T) {
	// GIVEN: A record with adjustments set
	// WHEN: Recomputing
	// THEN: The administrative components carry into the new result

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	_, err = f.engine.SetAdjustments(ctx, record.ID, payroll.Adjustments{
		NightDiffPay: dec("120.75"),
		Bonus:        dec("300"),
	})
	require.NoError(t, err)

	recomputed, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	assertMoney(t, "120.75", recomputed.NightDiffPay)
	assertMoney(t, "300", recomputed.Bonus)
	assertMoney(t, "920.75", recomputed.GrossPay)
}

func TestAdjustments_NegativeValuesRejected(t *testing.T) {
	// GIVEN: A computed record
	// WHEN: Setting a negative bonus
	// THEN: ValidationError naming the violation

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	_, err = f.engine.SetAdjustments(ctx, record.ID, payroll.Adjustments{Bonus: dec("-50")})
	var verr *payroll.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations, "bonus must not be negative")
}

// =============================================================================
// RECORD DELETE TESTS
// =============================================================================

func TestDeleteRecord_DetachesEntriesAndRefreshesTotals(t *testing.T) {
	// GIVEN: A computed record with attached entries
	// WHEN: Deleting the record
	// THEN: Entries survive unattached, period totals drop to zero

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	att := f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.Delete(ctx, record.ID))

	got, err := f.subledger.Get(ctx, payroll.KindAttendance, att.EntryID())
	require.NoError(t, err)
	assert.Nil(t, got.AttachedTo())

	p, err := f.lifecycle.Get(ctx, period.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.TotalEmployees)
	assert.True(t, p.TotalNetPay.IsZero())
}

func TestDeleteRecord_BlockedWhenNotUnpaid(t *testing.T) {
	// GIVEN: A partially-paid record
	// WHEN: Deleting
	// THEN: ImmutableStateError

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)
	record, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	_, err = f.engine.RecordPartialPayment(ctx, record.ID, payroll.PaymentInfo{Method: "cash"})
	require.NoError(t, err)

	err = f.engine.Delete(ctx, record.ID)
	assert.ErrorIs(t, err, payroll.ErrImmutableState)
}

// =============================================================================
// AUDIT TRAIL TESTS
// =============================================================================

func TestCompute_EmitsAuditEvents(t *testing.T) {
	// GIVEN: A fresh fixture
	// WHEN: Computing then recomputing a record
	// THEN: CREATE then UPDATE events with before/after snapshots

	f := newFixture(t)
	ctx := context.Background()
	period := f.openPeriod(t, "2024-01-01", "2024-01-15", "2024-01-20", 11)

	f.setRate("emp-1", "500")
	f.attendance(t, "emp-1", "2024-01-02", payroll.AttendancePresent)

	_, err := f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	created := f.audit.LastFor("record")
	require.NotNil(t, created)
	assert.Equal(t, payroll.AuditCreate, created.Action)
	assert.Nil(t, created.OldData)
	assert.NotNil(t, created.NewData)

	_, err = f.engine.Compute(ctx, "emp-1", period.ID)
	require.NoError(t, err)
	updated := f.audit.LastFor("record")
	require.NotNil(t, updated)
	assert.Equal(t, payroll.AuditUpdate, updated.Action)
	assert.NotNil(t, updated.OldData)
}
