/*
engine.go - Payroll record computation

PURPOSE:
  The aggregation algorithm. Given an employee and a period, the engine
  gathers the eligible sub-ledger entries, derives attendance counters,
  overtime pay, and deduction totals, computes basic/gross/net pay, upserts
  the PayrollRecord, attaches every consumed entry, and refreshes the
  period's rolled-up totals - all inside one store transaction.

COMPUTATION FLOW:

  Compute(employee, period)
      │
      ├─ 1. resolve period        (NotFoundError / PeriodLockedError)
      ├─ 2. resolve prior record  (AlreadyPaidError when paid)
      ├─ 3. detach prior's entries, regather eligible set
      ├─ 4. tally attendance counters
      ├─ 5. sum approved overtime (pending/rejected stay unattached)
      ├─ 6. group deductions by type
      ├─ 7. basic pay from the rate collaborator
      ├─ 8. gross = basic + overtime + holiday + nightDiff + allowance + bonus
      │      net  = gross - deductions   (negative net noted, never clamped)
      ├─ 9. upsert record, attach consumed entries
      ├─ 10. refresh period totals
      └─ 11. emit audit CREATE/UPDATE

ALL-OR-NOTHING:
  Every failure leaves no partial state; the surrounding transaction rolls
  back any applied step.

CONCURRENCY:
  Two concurrent Compute calls for the same (employee, period) key conflict:
  the second fails with ConflictError. Different keys proceed independently.

OWNERSHIP:
  The engine is the sole writer of record derived fields and of the
  sub-ledger attachment pointer.

SEE ALSO:
  - guard.go: attach/detach mechanics
  - totals.go: the rollup invoked in step 10
  - rate.go: the basic-pay collaborator
*/
package payroll

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// negativeNetNote is appended to remarks when deductions exceed gross pay.
// The engine never clamps net pay to zero.
const negativeNetNote = "NEGATIVE NET PAY: deductions exceed gross pay"

// =============================================================================
// COMPUTATION ENGINE
// =============================================================================

type ComputationEngine struct {
	store  TxStore
	guard  *AttachmentGuard
	rates  RateProvider
	calc   RateCalculator
	totals *TotalsAggregator
	clock  Clock
	audit  AuditTrailEmitter

	locks keyedLocks
}

// NewComputationEngine wires the engine. Every nil dependency gets a safe
// default; a nil rates falls back to an empty StaticRateProvider, so each
// Compute fails with a rate-config NotFoundError until a real provider is
// wired in.
func NewComputationEngine(
	store TxStore,
	guard *AttachmentGuard,
	rates RateProvider,
	calc RateCalculator,
	totals *TotalsAggregator,
	clock Clock,
	audit AuditTrailEmitter,
) *ComputationEngine {
	if guard == nil {
		guard = NewAttachmentGuard()
	}
	if rates == nil {
		rates = &StaticRateProvider{}
	}
	if calc == nil {
		calc = DailyRateCalculator{}
	}
	if totals == nil {
		totals = NewTotalsAggregator(store)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if audit == nil {
		audit = NopEmitter{}
	}
	return &ComputationEngine{
		store:  store,
		guard:  guard,
		rates:  rates,
		calc:   calc,
		totals: totals,
		clock:  clock,
		audit:  audit,
	}
}

// -----------------------------------------------------------------------------
// Compute
// -----------------------------------------------------------------------------

// Compute creates or recomputes the PayrollRecord for (employee, period).
// Recompute re-uses the prior record's attachments: they are detached,
// pooled with unattached in-period entries, and the included set is attached
// to the new result. Computing twice with no intervening data change yields
// an identical record except ComputedAt.
func (eng *ComputationEngine) Compute(ctx context.Context, employeeID EmployeeID, periodID PeriodID) (*PayrollRecord, error) {
	key := string(employeeID) + "|" + string(periodID)
	if !eng.locks.acquire(key) {
		return nil, &ConflictError{
			Reason: fmt.Sprintf("computation already in progress for employee %s in period %s", employeeID, periodID),
		}
	}
	defer eng.locks.release(key)

	var before, result *PayrollRecord
	action := AuditCreate

	err := eng.store.WithTx(ctx, func(s Store) error {
		period, err := s.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if period.IsFrozen() {
			return &PeriodLockedError{PeriodID: period.ID, Status: period.Status}
		}

		prior, err := s.GetRecordByKey(ctx, employeeID, periodID)
		if err != nil {
			return err
		}
		if prior != nil {
			if prior.PaymentStatus == PaymentPaid {
				return &AlreadyPaidError{RecordID: prior.ID}
			}
			before = prior.Clone()
			action = AuditUpdate
		}

		rate, err := eng.rates.GetRateConfig(ctx, employeeID)
		if err != nil {
			return err
		}

		pool, err := eng.gatherEntries(ctx, s, employeeID, period, prior)
		if err != nil {
			return err
		}

		record, attach, err := eng.buildRecord(employeeID, *rate, period, prior, pool)
		if err != nil {
			return err
		}

		if err := s.PutRecord(ctx, record); err != nil {
			return err
		}
		for _, e := range attach {
			if err := eng.guard.Attach(ctx, s, e, record.ID); err != nil {
				return err
			}
		}
		if err := eng.totals.refreshIn(ctx, s, periodID); err != nil {
			return err
		}

		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := eng.audit.Emit(ctx, newAuditEvent(eng.clock, "record", string(result.ID), action, before, result.Clone())); err != nil {
		return nil, fmt.Errorf("audit emit failed: %w", err)
	}
	return result, nil
}

// gatherEntries assembles the candidate pool: every entry attached to the
// prior record (detached first, so recompute re-uses its own consumption),
// plus all unattached entries for the employee dated within the period.
func (eng *ComputationEngine) gatherEntries(ctx context.Context, s Store, employeeID EmployeeID, period *PayrollPeriod, prior *PayrollRecord) ([]Entry, error) {
	type poolKey struct {
		kind EntryKind
		id   EntryID
	}
	seen := make(map[poolKey]struct{})
	var pool []Entry

	if prior != nil {
		attached, err := s.ListEntries(ctx, EntryFilter{AttachedTo: &prior.ID})
		if err != nil {
			return nil, err
		}
		for _, e := range attached {
			if err := eng.guard.Detach(ctx, s, e); err != nil {
				return nil, err
			}
			seen[poolKey{e.Kind(), e.EntryID()}] = struct{}{}
			pool = append(pool, e)
		}
	}

	unattached, err := s.ListEntries(ctx, EntryFilter{
		EmployeeID: &employeeID,
		From:       &period.StartDate,
		To:         &period.EndDate,
		Unattached: true,
	})
	if err != nil {
		return nil, err
	}
	for _, e := range unattached {
		k := poolKey{e.Kind(), e.EntryID()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		pool = append(pool, e)
	}

	return pool, nil
}

// buildRecord runs the aggregation arithmetic and returns the record plus
// the entries it consumed (the attach set).
func (eng *ComputationEngine) buildRecord(employeeID EmployeeID, rate RateConfig, period *PayrollPeriod, prior *PayrollRecord, pool []Entry) (*PayrollRecord, []Entry, error) {
	var summary AttendanceSummary
	overtimeHours := decimal.Zero
	overtimePay := decimal.Zero
	deductions := make(map[DeductionType]decimal.Decimal)
	deductionsTotal := decimal.Zero
	var attach []Entry

	for _, e := range pool {
		switch v := e.(type) {
		case *AttendanceEntry:
			switch v.Status {
			case AttendancePresent:
				summary.DaysPresent++
			case AttendanceAbsent:
				summary.DaysAbsent++
			case AttendanceLate:
				summary.DaysLate++
			case AttendanceHalfDay:
				summary.DaysHalfDay++
			}
			attach = append(attach, e)
		case *OvertimeEntry:
			// Only approved overtime pays out; pending and rejected
			// entries stay unattached.
			if v.Status != OvertimeApproved {
				continue
			}
			overtimeHours = overtimeHours.Add(v.Hours)
			overtimePay = overtimePay.Add(v.Amount)
			attach = append(attach, e)
		case *DeductionEntry:
			deductions[v.Type] = deductions[v.Type].Add(v.Amount)
			deductionsTotal = deductionsTotal.Add(v.Amount)
			attach = append(attach, e)
		}
	}

	basicPay, err := eng.calc.BasicPay(rate, summary)
	if err != nil {
		return nil, nil, err
	}

	// Administrative components carry forward across recomputes; the engine
	// never invents them. See SetAdjustments.
	holidayPay, nightDiffPay := decimal.Zero, decimal.Zero
	allowance, bonus := decimal.Zero, decimal.Zero
	remarks := ""
	if prior != nil {
		holidayPay, nightDiffPay = prior.HolidayPay, prior.NightDiffPay
		allowance, bonus = prior.Allowance, prior.Bonus
		remarks = prior.Remarks
	}

	grossPay := round2(basicPay.
		Add(round2(overtimePay)).
		Add(holidayPay).
		Add(nightDiffPay).
		Add(allowance).
		Add(bonus))
	deductionsTotal = round2(deductionsTotal)
	netPay := grossPay.Sub(deductionsTotal)
	remarks = applyNegativeNetNote(remarks, netPay.IsNegative())

	for t, amount := range deductions {
		deductions[t] = round2(amount)
	}

	record := &PayrollRecord{
		EmployeeID:      employeeID,
		PeriodID:        period.ID,
		DaysPresent:     summary.DaysPresent,
		DaysAbsent:      summary.DaysAbsent,
		DaysLate:        summary.DaysLate,
		DaysHalfDay:     summary.DaysHalfDay,
		BasicPay:        basicPay,
		OvertimeHours:   overtimeHours,
		OvertimePay:     round2(overtimePay),
		HolidayPay:      holidayPay,
		NightDiffPay:    nightDiffPay,
		Allowance:       allowance,
		Bonus:           bonus,
		GrossPay:        grossPay,
		Deductions:      deductions,
		DeductionsTotal: deductionsTotal,
		NetPay:          netPay,
		ComputedAt:      eng.clock.Now(),
		PaymentStatus:   PaymentUnpaid,
		Remarks:         remarks,
	}

	if prior != nil {
		record.ID = prior.ID
		// A partial payment survives recompute; cancellation resets to
		// unpaid (the record is live again).
		if prior.PaymentStatus == PaymentPartiallyPaid {
			record.PaymentStatus = PaymentPartiallyPaid
			record.PaidAt = prior.PaidAt
			record.PaymentMethod = prior.PaymentMethod
			record.PaymentReference = prior.PaymentReference
		}
	} else {
		record.ID = RecordID(uuid.NewString())
	}

	return record, attach, nil
}

// applyNegativeNetNote keeps the remarks note in sync with the sign of net
// pay, preserving any administrative text around it.
func applyNegativeNetNote(remarks string, negative bool) string {
	has := strings.Contains(remarks, negativeNetNote)
	switch {
	case negative && !has:
		if remarks == "" {
			return negativeNetNote
		}
		return remarks + "; " + negativeNetNote
	case !negative && has:
		remarks = strings.ReplaceAll(remarks, "; "+negativeNetNote, "")
		remarks = strings.ReplaceAll(remarks, negativeNetNote, "")
		return strings.TrimSpace(strings.Trim(remarks, ";  "))
	default:
		return remarks
	}
}

// -----------------------------------------------------------------------------
// Payment state
// -----------------------------------------------------------------------------

// PaymentInfo carries the administrative payment fields.
type PaymentInfo struct {
	Method    string
	Reference string
}

// MarkAsPaid transitions an unpaid or partially-paid record to paid and
// stamps the payment fields. Paid is irreversible except via Cancel on a
// never-paid record - there is no un-pay. Payment-status changes are the
// one mutation allowed while the owning period is locked or closed.
func (eng *ComputationEngine) MarkAsPaid(ctx context.Context, id RecordID, info PaymentInfo) (*PayrollRecord, error) {
	return eng.updatePayment(ctx, id, func(r *PayrollRecord) error {
		if r.PaymentStatus != PaymentUnpaid && r.PaymentStatus != PaymentPartiallyPaid {
			return &InvalidTransitionError{
				Entity: "record", ID: string(id),
				From: string(r.PaymentStatus), To: string(PaymentPaid),
			}
		}
		now := eng.clock.Now()
		r.PaymentStatus = PaymentPaid
		r.PaidAt = &now
		r.PaymentMethod = info.Method
		r.PaymentReference = info.Reference
		return nil
	}, false)
}

// RecordPartialPayment marks a record partially-paid. MarkAsPaid remains the
// only transition into paid.
func (eng *ComputationEngine) RecordPartialPayment(ctx context.Context, id RecordID, info PaymentInfo) (*PayrollRecord, error) {
	return eng.updatePayment(ctx, id, func(r *PayrollRecord) error {
		if r.PaymentStatus != PaymentUnpaid && r.PaymentStatus != PaymentPartiallyPaid {
			return &InvalidTransitionError{
				Entity: "record", ID: string(id),
				From: string(r.PaymentStatus), To: string(PaymentPartiallyPaid),
			}
		}
		r.PaymentStatus = PaymentPartiallyPaid
		r.PaymentMethod = info.Method
		r.PaymentReference = info.Reference
		return nil
	}, false)
}

// Cancel marks a record cancelled. Blocked once paid. Cancellation is a
// payroll-record-level state, not a data deletion: attached sub-ledger
// entries stay attached.
func (eng *ComputationEngine) Cancel(ctx context.Context, id RecordID) (*PayrollRecord, error) {
	return eng.updatePayment(ctx, id, func(r *PayrollRecord) error {
		if r.PaymentStatus == PaymentPaid {
			return &InvalidTransitionError{
				Entity: "record", ID: string(id),
				From: string(PaymentPaid), To: string(PaymentCancelled),
			}
		}
		r.PaymentStatus = PaymentCancelled
		return nil
	}, true)
}

// updatePayment applies a payment-state mutation inside a transaction and
// emits the audit UPDATE. refreshTotals is set for mutations that change
// what the period rollup counts.
func (eng *ComputationEngine) updatePayment(ctx context.Context, id RecordID, mutate func(*PayrollRecord) error, refreshTotals bool) (*PayrollRecord, error) {
	var before, after *PayrollRecord

	err := eng.store.WithTx(ctx, func(s Store) error {
		record, err := s.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		before = record.Clone()

		if err := mutate(record); err != nil {
			return err
		}
		if err := s.PutRecord(ctx, record); err != nil {
			return err
		}
		if refreshTotals {
			if err := eng.totals.refreshIn(ctx, s, record.PeriodID); err != nil {
				return err
			}
		}
		after = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := eng.audit.Emit(ctx, newAuditEvent(eng.clock, "record", string(id), AuditUpdate, before, after.Clone())); err != nil {
		return nil, fmt.Errorf("audit emit failed: %w", err)
	}
	return after, nil
}

// -----------------------------------------------------------------------------
// Adjustments
// -----------------------------------------------------------------------------

// Adjustments are the administrative earning components that enter a record
// outside the sub-ledger: holiday pay, night differential, allowance, bonus.
type Adjustments struct {
	HolidayPay   decimal.Decimal
	NightDiffPay decimal.Decimal
	Allowance    decimal.Decimal
	Bonus        decimal.Decimal
}

// SetAdjustments writes the administrative components onto an existing
// record and re-derives gross and net pay. Gated like any data mutation:
// the record must not be paid and the period must not be locked or closed.
func (eng *ComputationEngine) SetAdjustments(ctx context.Context, id RecordID, adj Adjustments) (*PayrollRecord, error) {
	var violations []string
	if adj.HolidayPay.IsNegative() {
		violations = append(violations, "holidayPay must not be negative")
	}
	if adj.NightDiffPay.IsNegative() {
		violations = append(violations, "nightDiffPay must not be negative")
	}
	if adj.Allowance.IsNegative() {
		violations = append(violations, "allowance must not be negative")
	}
	if adj.Bonus.IsNegative() {
		violations = append(violations, "bonus must not be negative")
	}
	if err := newValidationError(violations); err != nil {
		return nil, err
	}

	var before, after *PayrollRecord
	err := eng.store.WithTx(ctx, func(s Store) error {
		record, err := s.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		if record.PaymentStatus == PaymentPaid {
			return &AlreadyPaidError{RecordID: id}
		}
		period, err := s.GetPeriod(ctx, record.PeriodID)
		if err != nil {
			return err
		}
		if period.IsFrozen() {
			return &PeriodLockedError{PeriodID: period.ID, Status: period.Status}
		}
		before = record.Clone()

		record.HolidayPay = round2(adj.HolidayPay)
		record.NightDiffPay = round2(adj.NightDiffPay)
		record.Allowance = round2(adj.Allowance)
		record.Bonus = round2(adj.Bonus)
		record.GrossPay = round2(record.BasicPay.
			Add(record.OvertimePay).
			Add(record.HolidayPay).
			Add(record.NightDiffPay).
			Add(record.Allowance).
			Add(record.Bonus))
		record.NetPay = record.GrossPay.Sub(record.DeductionsTotal)
		record.Remarks = applyNegativeNetNote(record.Remarks, record.NetPay.IsNegative())

		if err := s.PutRecord(ctx, record); err != nil {
			return err
		}
		if err := eng.totals.refreshIn(ctx, s, record.PeriodID); err != nil {
			return err
		}
		after = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := eng.audit.Emit(ctx, newAuditEvent(eng.clock, "record", string(id), AuditUpdate, before, after.Clone())); err != nil {
		return nil, fmt.Errorf("audit emit failed: %w", err)
	}
	return after, nil
}

// -----------------------------------------------------------------------------
// Delete
// -----------------------------------------------------------------------------

// Delete removes an unpaid record whose period is still mutable, detaching
// every attached sub-ledger entry first. The entries outlive detachment.
func (eng *ComputationEngine) Delete(ctx context.Context, id RecordID) error {
	var before *PayrollRecord

	err := eng.store.WithTx(ctx, func(s Store) error {
		record, err := s.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		if record.PaymentStatus != PaymentUnpaid {
			return &ImmutableStateError{
				Entity: "record",
				ID:     string(id),
				Reason: fmt.Sprintf("payment status is %s, only unpaid records can be deleted", record.PaymentStatus),
			}
		}
		period, err := s.GetPeriod(ctx, record.PeriodID)
		if err != nil {
			return err
		}
		if period.IsFrozen() {
			return &PeriodLockedError{PeriodID: period.ID, Status: period.Status}
		}
		before = record.Clone()

		attached, err := s.ListEntries(ctx, EntryFilter{AttachedTo: &id})
		if err != nil {
			return err
		}
		for _, e := range attached {
			if err := eng.guard.Detach(ctx, s, e); err != nil {
				return err
			}
		}
		if err := s.DeleteRecord(ctx, id); err != nil {
			return err
		}
		return eng.totals.refreshIn(ctx, s, record.PeriodID)
	})
	if err != nil {
		return err
	}

	if err := eng.audit.Emit(ctx, newAuditEvent(eng.clock, "record", string(id), AuditDelete, before, nil)); err != nil {
		return fmt.Errorf("audit emit failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (eng *ComputationEngine) Get(ctx context.Context, id RecordID) (*PayrollRecord, error) {
	return eng.store.GetRecord(ctx, id)
}

func (eng *ComputationEngine) List(ctx context.Context, f RecordFilter) ([]*PayrollRecord, error) {
	return eng.store.ListRecords(ctx, f)
}

// =============================================================================
// KEYED LOCKS - per-(employee, period) mutual exclusion
// =============================================================================

type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) acquire(key string) bool {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	return m.TryLock()
}

func (k *keyedLocks) release(key string) {
	k.mu.Lock()
	m := k.locks[key]
	k.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
}
