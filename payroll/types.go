/*
Package payroll provides the payroll period lifecycle and payroll record
computation engine.

PURPOSE:
  This package contains the domain types and algorithms that keep payroll
  data consistent: the period state machine governing mutability, the
  attachment protocol that links attendance/overtime/deduction entries to a
  computed payroll record, and the aggregation algorithm that derives gross
  pay, deductions, and net pay.

KEY CONCEPTS IN THIS FILE (types.go):
  - PayrollPeriod: A payroll cycle with a fixed date range and pay date
  - PayrollRecord: The computed result for one (employee, period) pair
  - Entry: A sub-ledger row (attendance, overtime, deduction) owned by an
    employee, independent of any period until attached
  - Filters: Explicit optional-field query structs for list operations

DESIGN PRINCIPLES:
  1. Precision: All monetary values use decimal.Decimal, rounded to 2 places
     at computation boundaries. Never floating-point.
  2. Derived fields are never writable by callers: GrossPay, DeductionsTotal,
     and NetPay are set exclusively by the ComputationEngine.
  3. Type Safety: Strong typing for IDs prevents mixing period/record/entry IDs.
  4. Attachment: once an entry's PayrollRecordID is set, the entry is frozen.

SEE ALSO:
  - lifecycle.go: Period state machine and validation
  - engine.go: Payroll record computation
  - guard.go: Sub-ledger attachment protocol
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PeriodID string
type RecordID string
type EntryID string
type EmployeeID string

// =============================================================================
// MONEY - exact decimal arithmetic, 2-digit scale
// =============================================================================

// round2 fixes a monetary value to 2 decimal places. Applied to every derived
// field the engine writes, so equality checks are exact.
func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// MustParseDecimal is for fixtures and tests; returns zero on bad input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// PAYROLL PERIOD
// =============================================================================

type PeriodType string

const (
	PeriodWeekly      PeriodType = "weekly"
	PeriodBiWeekly    PeriodType = "bi-weekly"
	PeriodSemiMonthly PeriodType = "semi-monthly"
	PeriodMonthly     PeriodType = "monthly"
)

func (t PeriodType) Valid() bool {
	switch t {
	case PeriodWeekly, PeriodBiWeekly, PeriodSemiMonthly, PeriodMonthly:
		return true
	}
	return false
}

type PeriodStatus string

const (
	PeriodOpen       PeriodStatus = "open"
	PeriodProcessing PeriodStatus = "processing"
	PeriodLocked     PeriodStatus = "locked"
	PeriodClosed     PeriodStatus = "closed"
)

func (s PeriodStatus) Valid() bool {
	switch s {
	case PeriodOpen, PeriodProcessing, PeriodLocked, PeriodClosed:
		return true
	}
	return false
}

// PayrollPeriod is a payroll cycle. Dates and workingDays are mutable only
// while the period is open or processing; locked and closed are increasingly
// restrictive. The rolled-up totals are derived by the TotalsAggregator and
// never set directly by a caller.
type PayrollPeriod struct {
	ID          PeriodID
	Name        string
	PeriodType  PeriodType
	StartDate   Date
	EndDate     Date
	PayDate     Date
	WorkingDays int
	Status      PeriodStatus
	LockedAt    *time.Time
	ClosedAt    *time.Time

	// Rolled-up totals, owned by TotalsAggregator.
	TotalEmployees  int
	TotalGrossPay   decimal.Decimal
	TotalDeductions decimal.Decimal
	TotalNetPay     decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether a date falls within the period, inclusive.
func (p *PayrollPeriod) Contains(d Date) bool { return d.InRange(p.StartDate, p.EndDate) }

// IsFrozen reports whether the period rejects data mutations. Only
// payment-status fields on already-computed records may change while frozen.
func (p *PayrollPeriod) IsFrozen() bool {
	return p.Status == PeriodLocked || p.Status == PeriodClosed
}

// Clone returns a copy, used for audit before/after snapshots.
func (p *PayrollPeriod) Clone() *PayrollPeriod {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// =============================================================================
// PAYROLL RECORD - one per (employee, period) pair
// =============================================================================

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentPartiallyPaid PaymentStatus = "partially-paid"
	PaymentCancelled     PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentPartiallyPaid, PaymentCancelled:
		return true
	}
	return false
}

// PayrollRecord is the computed payroll result for one employee in one period.
// GrossPay, DeductionsTotal, and NetPay are derived invariants:
//
//	GrossPay        = BasicPay + OvertimePay + HolidayPay + NightDiffPay + Allowance + Bonus
//	DeductionsTotal = sum of attached deduction entry amounts
//	NetPay          = GrossPay - DeductionsTotal
//
// Only the ComputationEngine writes these three.
type PayrollRecord struct {
	ID         RecordID
	EmployeeID EmployeeID
	PeriodID   PeriodID

	// Attendance-derived counters.
	DaysPresent int
	DaysAbsent  int
	DaysLate    int
	DaysHalfDay int

	// Earnings.
	BasicPay      decimal.Decimal
	OvertimeHours decimal.Decimal
	OvertimePay   decimal.Decimal
	HolidayPay    decimal.Decimal
	NightDiffPay  decimal.Decimal
	Allowance     decimal.Decimal
	Bonus         decimal.Decimal
	GrossPay      decimal.Decimal

	// Deductions, grouped by type.
	Deductions      map[DeductionType]decimal.Decimal
	DeductionsTotal decimal.Decimal

	NetPay     decimal.Decimal
	ComputedAt time.Time

	// Payment state. Once paid, only Remarks may change.
	PaymentStatus    PaymentStatus
	PaidAt           *time.Time
	PaymentMethod    string
	PaymentReference string
	Remarks          string
}

// Clone returns a deep copy, used for audit before/after snapshots.
func (r *PayrollRecord) Clone() *PayrollRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Deductions = make(map[DeductionType]decimal.Decimal, len(r.Deductions))
	for k, v := range r.Deductions {
		cp.Deductions[k] = v
	}
	return &cp
}

// =============================================================================
// SUB-LEDGER ENTRIES
// =============================================================================

// EntryKind discriminates the three sub-ledger tables.
type EntryKind string

const (
	KindAttendance EntryKind = "attendance"
	KindOvertime   EntryKind = "overtime"
	KindDeduction  EntryKind = "deduction"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindAttendance, KindOvertime, KindDeduction:
		return true
	}
	return false
}

// Entry is the common surface of the three sub-ledger row types. The engine
// and the AttachmentGuard operate on this interface; concrete fields stay in
// the typed structs below.
type Entry interface {
	// EntryID returns the row identifier.
	EntryID() EntryID

	// Kind returns which sub-ledger table the row belongs to.
	Kind() EntryKind

	// Employee returns the owning employee.
	Employee() EmployeeID

	// OccurredOn returns the date used for in-period matching.
	OccurredOn() Date

	// AttachedTo returns the payroll record the entry was consumed by,
	// or nil while unattached. While non-nil the entry is immutable.
	AttachedTo() *RecordID

	// Validate returns every violated rule, not just the first.
	Validate() []string
}

// -----------------------------------------------------------------------------
// Attendance
// -----------------------------------------------------------------------------

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceHalfDay AttendanceStatus = "half-day"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceHalfDay:
		return true
	}
	return false
}

type AttendanceEntry struct {
	ID              EntryID
	EmployeeID      EmployeeID
	Date            Date
	Status          AttendanceStatus
	TimeIn          string // "HH:MM", informational
	TimeOut         string
	PayrollRecordID *RecordID
	Remarks         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e *AttendanceEntry) EntryID() EntryID      { return e.ID }
func (e *AttendanceEntry) Kind() EntryKind       { return KindAttendance }
func (e *AttendanceEntry) Employee() EmployeeID  { return e.EmployeeID }
func (e *AttendanceEntry) OccurredOn() Date      { return e.Date }
func (e *AttendanceEntry) AttachedTo() *RecordID { return e.PayrollRecordID }

func (e *AttendanceEntry) Validate() []string {
	var violations []string
	if e.EmployeeID == "" {
		violations = append(violations, "employeeId is required")
	}
	if e.Date.IsZero() {
		violations = append(violations, "date is required")
	}
	if !e.Status.Valid() {
		violations = append(violations, "status must be one of: present, absent, late, half-day")
	}
	return violations
}

// -----------------------------------------------------------------------------
// Overtime
// -----------------------------------------------------------------------------

type OvertimeStatus string

const (
	OvertimePending  OvertimeStatus = "pending"
	OvertimeApproved OvertimeStatus = "approved"
	OvertimeRejected OvertimeStatus = "rejected"
)

func (s OvertimeStatus) Valid() bool {
	switch s {
	case OvertimePending, OvertimeApproved, OvertimeRejected:
		return true
	}
	return false
}

type OvertimeEntry struct {
	ID              EntryID
	EmployeeID      EmployeeID
	Date            Date
	Hours           decimal.Decimal
	Rate            decimal.Decimal
	Amount          decimal.Decimal
	Status          OvertimeStatus
	PayrollRecordID *RecordID
	Remarks         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e *OvertimeEntry) EntryID() EntryID      { return e.ID }
func (e *OvertimeEntry) Kind() EntryKind       { return KindOvertime }
func (e *OvertimeEntry) Employee() EmployeeID  { return e.EmployeeID }
func (e *OvertimeEntry) OccurredOn() Date      { return e.Date }
func (e *OvertimeEntry) AttachedTo() *RecordID { return e.PayrollRecordID }

func (e *OvertimeEntry) Validate() []string {
	var violations []string
	if e.EmployeeID == "" {
		violations = append(violations, "employeeId is required")
	}
	if e.Date.IsZero() {
		violations = append(violations, "date is required")
	}
	if !e.Status.Valid() {
		violations = append(violations, "status must be one of: pending, approved, rejected")
	}
	if e.Hours.IsNegative() {
		violations = append(violations, "hours must not be negative")
	}
	if e.Amount.IsNegative() {
		violations = append(violations, "amount must not be negative")
	}
	return violations
}

// -----------------------------------------------------------------------------
// Deduction
// -----------------------------------------------------------------------------

// DeductionType names the statutory and ad-hoc deduction categories. The
// engine groups deduction amounts by type; it does not compute the amounts
// themselves (tax-table correctness is a collaborator concern).
type DeductionType string

const (
	DeductionSSS         DeductionType = "sss"
	DeductionPhilHealth  DeductionType = "philhealth"
	DeductionPagIbig     DeductionType = "pagibig"
	DeductionTax         DeductionType = "tax"
	DeductionLoan        DeductionType = "loan"
	DeductionCashAdvance DeductionType = "cash-advance"
	DeductionOther       DeductionType = "other"
)

func (t DeductionType) Valid() bool {
	switch t {
	case DeductionSSS, DeductionPhilHealth, DeductionPagIbig, DeductionTax,
		DeductionLoan, DeductionCashAdvance, DeductionOther:
		return true
	}
	return false
}

type DeductionEntry struct {
	ID              EntryID
	EmployeeID      EmployeeID
	Date            Date
	Type            DeductionType
	Amount          decimal.Decimal
	PayrollRecordID *RecordID
	Remarks         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e *DeductionEntry) EntryID() EntryID      { return e.ID }
func (e *DeductionEntry) Kind() EntryKind       { return KindDeduction }
func (e *DeductionEntry) Employee() EmployeeID  { return e.EmployeeID }
func (e *DeductionEntry) OccurredOn() Date      { return e.Date }
func (e *DeductionEntry) AttachedTo() *RecordID { return e.PayrollRecordID }

func (e *DeductionEntry) Validate() []string {
	var violations []string
	if e.EmployeeID == "" {
		violations = append(violations, "employeeId is required")
	}
	if e.Date.IsZero() {
		violations = append(violations, "date is required")
	}
	if !e.Type.Valid() {
		violations = append(violations, "type must be one of: sss, philhealth, pagibig, tax, loan, cash-advance, other")
	}
	if e.Amount.IsNegative() {
		violations = append(violations, "amount must not be negative")
	}
	return violations
}

// =============================================================================
// FILTERS - Explicit optional-field query structs
// =============================================================================

// PeriodFilter narrows ListPeriods. Nil fields match everything.
type PeriodFilter struct {
	Status     *PeriodStatus
	PeriodType *PeriodType
	From       *Date // periods with EndDate >= From
	To         *Date // periods with StartDate <= To
}

// RecordFilter narrows ListRecords.
type RecordFilter struct {
	EmployeeID    *EmployeeID
	PeriodID      *PeriodID
	PaymentStatus *PaymentStatus
}

// EntryFilter narrows ListEntries.
type EntryFilter struct {
	Kinds      []EntryKind // empty = all kinds
	EmployeeID *EmployeeID
	From       *Date
	To         *Date

	// AttachedTo matches entries attached to a specific record.
	// Unattached matches entries with no attachment. Setting both is a
	// caller bug; AttachedTo wins.
	AttachedTo *RecordID
	Unattached bool
}

// =============================================================================
// CLOCK - injectable time source
// =============================================================================

type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. For tests.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
