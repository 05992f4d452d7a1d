/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements payroll.TxStore using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  payroll.PeriodStore:    Payroll period rows and range queries
  payroll.RecordStore:    Payroll record rows, keyed lookups, per-period counts
  payroll.SubLedgerStore: Attendance/overtime/deduction rows and attachment
  payroll.TxStore:        All of the above inside database transactions

KEY TABLES:
  payroll_periods:    Period lifecycle rows with rolled-up totals
  payroll_records:    One row per (employee, period), derived pay fields
  attendance_entries: Sub-ledger, one row per employee-day
  overtime_entries:   Sub-ledger, approval-gated
  deduction_entries:  Sub-ledger, typed amounts
  audit_events:       Before/after snapshots of every mutation

INDEXES:
  - idx_records_employee_period: the (employee, period) key lookup (hot path)
  - idx_periods_range: overlap checks on period creation/update
  - per-table (employee_id, date) indexes: entry gathering during computation
  - per-table payroll_record_id indexes: detach cycles and attachment listings

DATA ENCODING:
  Dates are stored as "YYYY-MM-DD" strings, timestamps as RFC3339, monetary
  values as decimal strings, and the per-type deduction breakdown as JSON.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := payroll.NewComputationEngine(store, ...)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements payroll.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Payroll periods
	CREATE TABLE IF NOT EXISTS payroll_periods (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		period_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		pay_date TEXT NOT NULL,
		working_days INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		locked_at TEXT,
		closed_at TEXT,
		total_employees INTEGER NOT NULL DEFAULT 0,
		total_gross_pay TEXT NOT NULL DEFAULT '0',
		total_deductions TEXT NOT NULL DEFAULT '0',
		total_net_pay TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- For overlap checks on create/update
	CREATE INDEX IF NOT EXISTS idx_periods_range
		ON payroll_periods(start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_periods_status
		ON payroll_periods(status);

	-- Payroll records: one per (employee, period)
	CREATE TABLE IF NOT EXISTS payroll_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		days_present INTEGER NOT NULL DEFAULT 0,
		days_absent INTEGER NOT NULL DEFAULT 0,
		days_late INTEGER NOT NULL DEFAULT 0,
		days_half_day INTEGER NOT NULL DEFAULT 0,
		basic_pay TEXT NOT NULL DEFAULT '0',
		overtime_hours TEXT NOT NULL DEFAULT '0',
		overtime_pay TEXT NOT NULL DEFAULT '0',
		holiday_pay TEXT NOT NULL DEFAULT '0',
		night_diff_pay TEXT NOT NULL DEFAULT '0',
		allowance TEXT NOT NULL DEFAULT '0',
		bonus TEXT NOT NULL DEFAULT '0',
		gross_pay TEXT NOT NULL DEFAULT '0',
		deductions_json TEXT NOT NULL DEFAULT '{}',
		deductions_total TEXT NOT NULL DEFAULT '0',
		net_pay TEXT NOT NULL DEFAULT '0',
		computed_at TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		paid_at TEXT,
		payment_method TEXT,
		payment_reference TEXT,
		remarks TEXT
	);

	-- CRITICAL: one record per (employee, period). The engine's keyed lock
	-- serializes computation; this index is the storage-level backstop.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_records_employee_period
		ON payroll_records(employee_id, period_id);
	CREATE INDEX IF NOT EXISTS idx_records_period
		ON payroll_records(period_id);
	CREATE INDEX IF NOT EXISTS idx_records_payment_status
		ON payroll_records(payment_status);

	-- Attendance sub-ledger
	CREATE TABLE IF NOT EXISTS attendance_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		time_in TEXT,
		time_out TEXT,
		payroll_record_id TEXT,
		remarks TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee_date
		ON attendance_entries(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_record
		ON attendance_entries(payroll_record_id) WHERE payroll_record_id IS NOT NULL;

	-- Overtime sub-ledger
	CREATE TABLE IF NOT EXISTS overtime_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		hours TEXT NOT NULL DEFAULT '0',
		rate TEXT NOT NULL DEFAULT '0',
		amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		payroll_record_id TEXT,
		remarks TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_overtime_employee_date
		ON overtime_entries(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_overtime_record
		ON overtime_entries(payroll_record_id) WHERE payroll_record_id IS NOT NULL;

	-- Deduction sub-ledger
	CREATE TABLE IF NOT EXISTS deduction_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		payroll_record_id TEXT,
		remarks TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deduction_employee_date
		ON deduction_entries(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_deduction_record
		ON deduction_entries(payroll_record_id) WHERE payroll_record_id IS NOT NULL;

	-- Audit trail
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		old_data TEXT,
		new_data TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_events(entity, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp
		ON audit_events(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query below works
// standalone and inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// PERIOD STORE (payroll.PeriodStore interface)
// =============================================================================

func (s *Store) CreatePeriod(ctx context.Context, p *payroll.PayrollPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPeriod(ctx, s.db, p)
}

func createPeriod(ctx context.Context, db dbtx, p *payroll.PayrollPeriod) error {
	query := `
		INSERT INTO payroll_periods
		(id, name, period_type, start_date, end_date, pay_date, working_days, status,
		 locked_at, closed_at, total_employees, total_gross_pay, total_deductions,
		 total_net_pay, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		p.ID, p.Name, p.PeriodType,
		p.StartDate.String(), p.EndDate.String(), p.PayDate.String(),
		p.WorkingDays, p.Status,
		nullTime(p.LockedAt), nullTime(p.ClosedAt),
		p.TotalEmployees,
		p.TotalGrossPay.String(), p.TotalDeductions.String(), p.TotalNetPay.String(),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert period: %w", err)
	}
	return nil
}

func (s *Store) UpdatePeriod(ctx context.Context, p *payroll.PayrollPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePeriod(ctx, s.db, p)
}

func updatePeriod(ctx context.Context, db dbtx, p *payroll.PayrollPeriod) error {
	query := `
		UPDATE payroll_periods SET
			name = ?, period_type = ?, start_date = ?, end_date = ?, pay_date = ?,
			working_days = ?, status = ?, locked_at = ?, closed_at = ?,
			total_employees = ?, total_gross_pay = ?, total_deductions = ?,
			total_net_pay = ?, updated_at = ?
		WHERE id = ?
	`

	res, err := db.ExecContext(ctx, query,
		p.Name, p.PeriodType,
		p.StartDate.String(), p.EndDate.String(), p.PayDate.String(),
		p.WorkingDays, p.Status,
		nullTime(p.LockedAt), nullTime(p.ClosedAt),
		p.TotalEmployees,
		p.TotalGrossPay.String(), p.TotalDeductions.String(), p.TotalNetPay.String(),
		p.UpdatedAt.Format(time.RFC3339),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &payroll.NotFoundError{Entity: "period", ID: string(p.ID)}
	}
	return nil
}

func (s *Store) GetPeriod(ctx context.Context, id payroll.PeriodID) (*payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPeriod(ctx, s.db, id)
}

const periodColumns = `id, name, period_type, start_date, end_date, pay_date, working_days,
	status, locked_at, closed_at, total_employees, total_gross_pay, total_deductions,
	total_net_pay, created_at, updated_at`

func getPeriod(ctx context.Context, db dbtx, id payroll.PeriodID) (*payroll.PayrollPeriod, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+periodColumns+" FROM payroll_periods WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, &payroll.NotFoundError{Entity: "period", ID: string(id)}
	}
	return scanPeriod(rows)
}

func (s *Store) ListPeriods(ctx context.Context, f payroll.PeriodFilter) ([]*payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPeriods(ctx, s.db, f)
}

func listPeriods(ctx context.Context, db dbtx, f payroll.PeriodFilter) ([]*payroll.PayrollPeriod, error) {
	var where []string
	var args []any

	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *f.Status)
	}
	if f.PeriodType != nil {
		where = append(where, "period_type = ?")
		args = append(args, *f.PeriodType)
	}
	if f.From != nil {
		where = append(where, "end_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "start_date <= ?")
		args = append(args, f.To.String())
	}

	query := "SELECT " + periodColumns + " FROM payroll_periods"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date ASC"

	return queryPeriods(ctx, db, query, args...)
}

func (s *Store) DeletePeriod(ctx context.Context, id payroll.PeriodID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePeriod(ctx, s.db, id)
}

func deletePeriod(ctx context.Context, db dbtx, id payroll.PeriodID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM payroll_periods WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &payroll.NotFoundError{Entity: "period", ID: string(id)}
	}
	return nil
}

func (s *Store) FindOverlapping(ctx context.Context, start, end payroll.Date, exclude payroll.PeriodID) ([]*payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findOverlapping(ctx, s.db, start, end, exclude)
}

func findOverlapping(ctx context.Context, db dbtx, start, end payroll.Date, exclude payroll.PeriodID) ([]*payroll.PayrollPeriod, error) {
	// Half-open overlap: A.start < B.end AND A.end > B.start. Two periods may
	// share a boundary day but never an interior day.
	query := `
		SELECT ` + periodColumns + ` FROM payroll_periods
		WHERE start_date < ? AND end_date > ? AND id != ?
		ORDER BY start_date ASC
	`
	return queryPeriods(ctx, db, query, end.String(), start.String(), exclude)
}

func queryPeriods(ctx context.Context, db dbtx, query string, args ...any) ([]*payroll.PayrollPeriod, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods []*payroll.PayrollPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func scanPeriod(rows *sql.Rows) (*payroll.PayrollPeriod, error) {
	var (
		p                  payroll.PayrollPeriod
		startDate          string
		endDate            string
		payDate            string
		lockedAt, closedAt sql.NullString
		gross, deductions  string
		net                string
		createdAt          string
		updatedAt          string
	)

	err := rows.Scan(
		&p.ID, &p.Name, &p.PeriodType, &startDate, &endDate, &payDate,
		&p.WorkingDays, &p.Status, &lockedAt, &closedAt,
		&p.TotalEmployees, &gross, &deductions, &net,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan period: %w", err)
	}

	p.StartDate = parseDate(startDate)
	p.EndDate = parseDate(endDate)
	p.PayDate = parseDate(payDate)
	p.LockedAt = parseNullTime(lockedAt)
	p.ClosedAt = parseNullTime(closedAt)
	p.TotalGrossPay = parseDecimal(gross)
	p.TotalDeductions = parseDecimal(deductions)
	p.TotalNetPay = parseDecimal(net)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &p, nil
}

// =============================================================================
// RECORD STORE (payroll.RecordStore interface)
// =============================================================================

func (s *Store) PutRecord(ctx context.Context, r *payroll.PayrollRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putRecord(ctx, s.db, r)
}

func putRecord(ctx context.Context, db dbtx, r *payroll.PayrollRecord) error {
	deductionsJSON, _ := json.Marshal(r.Deductions)

	query := `
		INSERT INTO payroll_records
		(id, employee_id, period_id, days_present, days_absent, days_late, days_half_day,
		 basic_pay, overtime_hours, overtime_pay, holiday_pay, night_diff_pay, allowance,
		 bonus, gross_pay, deductions_json, deductions_total, net_pay, computed_at,
		 payment_status, paid_at, payment_method, payment_reference, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			days_present = excluded.days_present,
			days_absent = excluded.days_absent,
			days_late = excluded.days_late,
			days_half_day = excluded.days_half_day,
			basic_pay = excluded.basic_pay,
			overtime_hours = excluded.overtime_hours,
			overtime_pay = excluded.overtime_pay,
			holiday_pay = excluded.holiday_pay,
			night_diff_pay = excluded.night_diff_pay,
			allowance = excluded.allowance,
			bonus = excluded.bonus,
			gross_pay = excluded.gross_pay,
			deductions_json = excluded.deductions_json,
			deductions_total = excluded.deductions_total,
			net_pay = excluded.net_pay,
			computed_at = excluded.computed_at,
			payment_status = excluded.payment_status,
			paid_at = excluded.paid_at,
			payment_method = excluded.payment_method,
			payment_reference = excluded.payment_reference,
			remarks = excluded.remarks
	`

	_, err := db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.PeriodID,
		r.DaysPresent, r.DaysAbsent, r.DaysLate, r.DaysHalfDay,
		r.BasicPay.String(), r.OvertimeHours.String(), r.OvertimePay.String(),
		r.HolidayPay.String(), r.NightDiffPay.String(), r.Allowance.String(),
		r.Bonus.String(), r.GrossPay.String(),
		string(deductionsJSON), r.DeductionsTotal.String(), r.NetPay.String(),
		r.ComputedAt.Format(time.RFC3339),
		r.PaymentStatus, nullTime(r.PaidAt),
		nullString(r.PaymentMethod), nullString(r.PaymentReference), nullString(r.Remarks),
	)
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

const recordColumns = `id, employee_id, period_id, days_present, days_absent, days_late,
	days_half_day, basic_pay, overtime_hours, overtime_pay, holiday_pay, night_diff_pay,
	allowance, bonus, gross_pay, deductions_json, deductions_total, net_pay, computed_at,
	payment_status, paid_at, payment_method, payment_reference, remarks`

func (s *Store) GetRecord(ctx context.Context, id payroll.RecordID) (*payroll.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecord(ctx, s.db, id)
}

func getRecord(ctx context.Context, db dbtx, id payroll.RecordID) (*payroll.PayrollRecord, error) {
	records, err := queryRecords(ctx, db,
		"SELECT "+recordColumns+" FROM payroll_records WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &payroll.NotFoundError{Entity: "record", ID: string(id)}
	}
	return records[0], nil
}

func (s *Store) GetRecordByKey(ctx context.Context, employeeID payroll.EmployeeID, periodID payroll.PeriodID) (*payroll.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecordByKey(ctx, s.db, employeeID, periodID)
}

func getRecordByKey(ctx context.Context, db dbtx, employeeID payroll.EmployeeID, periodID payroll.PeriodID) (*payroll.PayrollRecord, error) {
	records, err := queryRecords(ctx, db,
		"SELECT "+recordColumns+" FROM payroll_records WHERE employee_id = ? AND period_id = ?",
		employeeID, periodID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		// Absence is a normal outcome: first-time computation.
		return nil, nil
	}
	return records[0], nil
}

func (s *Store) ListRecords(ctx context.Context, f payroll.RecordFilter) ([]*payroll.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRecords(ctx, s.db, f)
}

func listRecords(ctx context.Context, db dbtx, f payroll.RecordFilter) ([]*payroll.PayrollRecord, error) {
	var where []string
	var args []any

	if f.EmployeeID != nil {
		where = append(where, "employee_id = ?")
		args = append(args, *f.EmployeeID)
	}
	if f.PeriodID != nil {
		where = append(where, "period_id = ?")
		args = append(args, *f.PeriodID)
	}
	if f.PaymentStatus != nil {
		where = append(where, "payment_status = ?")
		args = append(args, *f.PaymentStatus)
	}

	query := "SELECT " + recordColumns + " FROM payroll_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	return queryRecords(ctx, db, query, args...)
}

func (s *Store) DeleteRecord(ctx context.Context, id payroll.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRecord(ctx, s.db, id)
}

func deleteRecord(ctx context.Context, db dbtx, id payroll.RecordID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM payroll_records WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &payroll.NotFoundError{Entity: "record", ID: string(id)}
	}
	return nil
}

func (s *Store) CountRecordsForPeriod(ctx context.Context, periodID payroll.PeriodID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countRecordsForPeriod(ctx, s.db, periodID)
}

func countRecordsForPeriod(ctx context.Context, db dbtx, periodID payroll.PeriodID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payroll_records WHERE period_id = ?", periodID,
	).Scan(&count)
	return count, err
}

func queryRecords(ctx context.Context, db dbtx, query string, args ...any) ([]*payroll.PayrollRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*payroll.PayrollRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (*payroll.PayrollRecord, error) {
	var (
		r                                       payroll.PayrollRecord
		basicPay, overtimeHours, overtimePay    string
		holidayPay, nightDiffPay                string
		allowance, bonus, grossPay              string
		deductionsJSON, deductionsTotal, netPay string
		computedAt                              string
		paidAt                                  sql.NullString
		method, reference, remarks              sql.NullString
	)

	err := rows.Scan(
		&r.ID, &r.EmployeeID, &r.PeriodID,
		&r.DaysPresent, &r.DaysAbsent, &r.DaysLate, &r.DaysHalfDay,
		&basicPay, &overtimeHours, &overtimePay, &holidayPay, &nightDiffPay,
		&allowance, &bonus, &grossPay, &deductionsJSON, &deductionsTotal, &netPay,
		&computedAt, &r.PaymentStatus, &paidAt, &method, &reference, &remarks,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	r.BasicPay = parseDecimal(basicPay)
	r.OvertimeHours = parseDecimal(overtimeHours)
	r.OvertimePay = parseDecimal(overtimePay)
	r.HolidayPay = parseDecimal(holidayPay)
	r.NightDiffPay = parseDecimal(nightDiffPay)
	r.Allowance = parseDecimal(allowance)
	r.Bonus = parseDecimal(bonus)
	r.GrossPay = parseDecimal(grossPay)
	r.DeductionsTotal = parseDecimal(deductionsTotal)
	r.NetPay = parseDecimal(netPay)
	r.ComputedAt, _ = time.Parse(time.RFC3339, computedAt)
	r.PaidAt = parseNullTime(paidAt)
	r.PaymentMethod = method.String
	r.PaymentReference = reference.String
	r.Remarks = remarks.String

	r.Deductions = make(map[payroll.DeductionType]decimal.Decimal)
	if deductionsJSON != "" {
		raw := make(map[payroll.DeductionType]string)
		if err := json.Unmarshal([]byte(deductionsJSON), &raw); err == nil {
			for k, v := range raw {
				r.Deductions[k] = parseDecimal(v)
			}
		}
	}

	return &r, nil
}

// =============================================================================
// SUB-LEDGER STORE (payroll.SubLedgerStore interface)
// =============================================================================

func entryTable(kind payroll.EntryKind) (string, error) {
	switch kind {
	case payroll.KindAttendance:
		return "attendance_entries", nil
	case payroll.KindOvertime:
		return "overtime_entries", nil
	case payroll.KindDeduction:
		return "deduction_entries", nil
	}
	return "", fmt.Errorf("unknown entry kind %q", kind)
}

func (s *Store) PutEntry(ctx context.Context, e payroll.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putEntry(ctx, s.db, e)
}

func putEntry(ctx context.Context, db dbtx, e payroll.Entry) error {
	switch v := e.(type) {
	case *payroll.AttendanceEntry:
		query := `
			INSERT INTO attendance_entries
			(id, employee_id, date, status, time_in, time_out, payroll_record_id, remarks, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				employee_id = excluded.employee_id,
				date = excluded.date,
				status = excluded.status,
				time_in = excluded.time_in,
				time_out = excluded.time_out,
				payroll_record_id = excluded.payroll_record_id,
				remarks = excluded.remarks,
				updated_at = excluded.updated_at
		`
		_, err := db.ExecContext(ctx, query,
			v.ID, v.EmployeeID, v.Date.String(), v.Status,
			nullString(v.TimeIn), nullString(v.TimeOut),
			nullRecordID(v.PayrollRecordID), nullString(v.Remarks),
			v.CreatedAt.Format(time.RFC3339), v.UpdatedAt.Format(time.RFC3339),
		)
		return err

	case *payroll.OvertimeEntry:
		query := `
			INSERT INTO overtime_entries
			(id, employee_id, date, hours, rate, amount, status, payroll_record_id, remarks, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				employee_id = excluded.employee_id,
				date = excluded.date,
				hours = excluded.hours,
				rate = excluded.rate,
				amount = excluded.amount,
				status = excluded.status,
				payroll_record_id = excluded.payroll_record_id,
				remarks = excluded.remarks,
				updated_at = excluded.updated_at
		`
		_, err := db.ExecContext(ctx, query,
			v.ID, v.EmployeeID, v.Date.String(),
			v.Hours.String(), v.Rate.String(), v.Amount.String(), v.Status,
			nullRecordID(v.PayrollRecordID), nullString(v.Remarks),
			v.CreatedAt.Format(time.RFC3339), v.UpdatedAt.Format(time.RFC3339),
		)
		return err

	case *payroll.DeductionEntry:
		query := `
			INSERT INTO deduction_entries
			(id, employee_id, date, type, amount, payroll_record_id, remarks, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				employee_id = excluded.employee_id,
				date = excluded.date,
				type = excluded.type,
				amount = excluded.amount,
				payroll_record_id = excluded.payroll_record_id,
				remarks = excluded.remarks,
				updated_at = excluded.updated_at
		`
		_, err := db.ExecContext(ctx, query,
			v.ID, v.EmployeeID, v.Date.String(), v.Type, v.Amount.String(),
			nullRecordID(v.PayrollRecordID), nullString(v.Remarks),
			v.CreatedAt.Format(time.RFC3339), v.UpdatedAt.Format(time.RFC3339),
		)
		return err
	}
	return fmt.Errorf("unsupported entry type %T", e)
}

func (s *Store) GetEntry(ctx context.Context, kind payroll.EntryKind, id payroll.EntryID) (payroll.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, kind, id)
}

func getEntry(ctx context.Context, db dbtx, kind payroll.EntryKind, id payroll.EntryID) (payroll.Entry, error) {
	table, err := entryTable(kind)
	if err != nil {
		return nil, err
	}
	entries, err := queryEntries(ctx, db, kind,
		"SELECT "+entryColumns(kind)+" FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &payroll.NotFoundError{Entity: string(kind), ID: string(id)}
	}
	return entries[0], nil
}

func (s *Store) DeleteEntry(ctx context.Context, kind payroll.EntryKind, id payroll.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntry(ctx, s.db, kind, id)
}

func deleteEntry(ctx context.Context, db dbtx, kind payroll.EntryKind, id payroll.EntryID) error {
	table, err := entryTable(kind)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &payroll.NotFoundError{Entity: string(kind), ID: string(id)}
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, f payroll.EntryFilter) ([]payroll.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEntries(ctx, s.db, f)
}

func listEntries(ctx context.Context, db dbtx, f payroll.EntryFilter) ([]payroll.Entry, error) {
	kinds := f.Kinds
	if len(kinds) == 0 {
		kinds = []payroll.EntryKind{payroll.KindAttendance, payroll.KindOvertime, payroll.KindDeduction}
	}

	var where []string
	var args []any
	if f.EmployeeID != nil {
		where = append(where, "employee_id = ?")
		args = append(args, *f.EmployeeID)
	}
	if f.From != nil {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	switch {
	case f.AttachedTo != nil:
		where = append(where, "payroll_record_id = ?")
		args = append(args, *f.AttachedTo)
	case f.Unattached:
		where = append(where, "payroll_record_id IS NULL")
	}

	var all []payroll.Entry
	for _, kind := range kinds {
		table, err := entryTable(kind)
		if err != nil {
			return nil, err
		}
		query := "SELECT " + entryColumns(kind) + " FROM " + table
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}
		query += " ORDER BY date ASC, id ASC"

		entries, err := queryEntries(ctx, db, kind, query, args...)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].OccurredOn().Before(all[j].OccurredOn())
	})
	return all, nil
}

func (s *Store) SetAttachment(ctx context.Context, kind payroll.EntryKind, id payroll.EntryID, recordID *payroll.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setAttachment(ctx, s.db, kind, id, recordID)
}

func setAttachment(ctx context.Context, db dbtx, kind payroll.EntryKind, id payroll.EntryID, recordID *payroll.RecordID) error {
	table, err := entryTable(kind)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		"UPDATE "+table+" SET payroll_record_id = ? WHERE id = ?",
		nullRecordID(recordID), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &payroll.NotFoundError{Entity: string(kind), ID: string(id)}
	}
	return nil
}

func entryColumns(kind payroll.EntryKind) string {
	switch kind {
	case payroll.KindAttendance:
		return "id, employee_id, date, status, time_in, time_out, payroll_record_id, remarks, created_at, updated_at"
	case payroll.KindOvertime:
		return "id, employee_id, date, hours, rate, amount, status, payroll_record_id, remarks, created_at, updated_at"
	case payroll.KindDeduction:
		return "id, employee_id, date, type, amount, payroll_record_id, remarks, created_at, updated_at"
	}
	return ""
}

func queryEntries(ctx context.Context, db dbtx, kind payroll.EntryKind, query string, args ...any) ([]payroll.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s entries: %w", kind, err)
	}
	defer rows.Close()

	var entries []payroll.Entry
	for rows.Next() {
		e, err := scanEntry(rows, kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows, kind payroll.EntryKind) (payroll.Entry, error) {
	switch kind {
	case payroll.KindAttendance:
		var (
			e                       payroll.AttendanceEntry
			date                    string
			timeIn, timeOut         sql.NullString
			recordID, remarks       sql.NullString
			createdAt, updatedAt    string
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &date, &e.Status, &timeIn, &timeOut,
			&recordID, &remarks, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance entry: %w", err)
		}
		e.Date = parseDate(date)
		e.TimeIn = timeIn.String
		e.TimeOut = timeOut.String
		e.PayrollRecordID = parseRecordID(recordID)
		e.Remarks = remarks.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		return &e, nil

	case payroll.KindOvertime:
		var (
			e                    payroll.OvertimeEntry
			date                 string
			hours, rate, amount  string
			recordID, remarks    sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &date, &hours, &rate, &amount, &e.Status,
			&recordID, &remarks, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan overtime entry: %w", err)
		}
		e.Date = parseDate(date)
		e.Hours = parseDecimal(hours)
		e.Rate = parseDecimal(rate)
		e.Amount = parseDecimal(amount)
		e.PayrollRecordID = parseRecordID(recordID)
		e.Remarks = remarks.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		return &e, nil

	case payroll.KindDeduction:
		var (
			e                    payroll.DeductionEntry
			date, amount         string
			recordID, remarks    sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &date, &e.Type, &amount,
			&recordID, &remarks, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deduction entry: %w", err)
		}
		e.Date = parseDate(date)
		e.Amount = parseDecimal(amount)
		e.PayrollRecordID = parseRecordID(recordID)
		e.Remarks = remarks.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		return &e, nil
	}
	return nil, fmt.Errorf("unknown entry kind %q", kind)
}

// =============================================================================
// TRANSACTIONAL STORE (payroll.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store payroll.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every call through the open *sql.Tx. The parent mutex is
// already held for the duration of the transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreatePeriod(ctx context.Context, p *payroll.PayrollPeriod) error {
	return createPeriod(ctx, ts.tx, p)
}

func (ts *txStore) UpdatePeriod(ctx context.Context, p *payroll.PayrollPeriod) error {
	return updatePeriod(ctx, ts.tx, p)
}

func (ts *txStore) GetPeriod(ctx context.Context, id payroll.PeriodID) (*payroll.PayrollPeriod, error) {
	return getPeriod(ctx, ts.tx, id)
}

func (ts *txStore) ListPeriods(ctx context.Context, f payroll.PeriodFilter) ([]*payroll.PayrollPeriod, error) {
	return listPeriods(ctx, ts.tx, f)
}

func (ts *txStore) DeletePeriod(ctx context.Context, id payroll.PeriodID) error {
	return deletePeriod(ctx, ts.tx, id)
}

func (ts *txStore) FindOverlapping(ctx context.Context, start, end payroll.Date, exclude payroll.PeriodID) ([]*payroll.PayrollPeriod, error) {
	return findOverlapping(ctx, ts.tx, start, end, exclude)
}

func (ts *txStore) PutRecord(ctx context.Context, r *payroll.PayrollRecord) error {
	return putRecord(ctx, ts.tx, r)
}

func (ts *txStore) GetRecord(ctx context.Context, id payroll.RecordID) (*payroll.PayrollRecord, error) {
	return getRecord(ctx, ts.tx, id)
}

func (ts *txStore) GetRecordByKey(ctx context.Context, employeeID payroll.EmployeeID, periodID payroll.PeriodID) (*payroll.PayrollRecord, error) {
	return getRecordByKey(ctx, ts.tx, employeeID, periodID)
}

func (ts *txStore) ListRecords(ctx context.Context, f payroll.RecordFilter) ([]*payroll.PayrollRecord, error) {
	return listRecords(ctx, ts.tx, f)
}

func (ts *txStore) DeleteRecord(ctx context.Context, id payroll.RecordID) error {
	return deleteRecord(ctx, ts.tx, id)
}

func (ts *txStore) CountRecordsForPeriod(ctx context.Context, periodID payroll.PeriodID) (int, error) {
	return countRecordsForPeriod(ctx, ts.tx, periodID)
}

func (ts *txStore) PutEntry(ctx context.Context, e payroll.Entry) error {
	return putEntry(ctx, ts.tx, e)
}

func (ts *txStore) GetEntry(ctx context.Context, kind payroll.EntryKind, id payroll.EntryID) (payroll.Entry, error) {
	return getEntry(ctx, ts.tx, kind, id)
}

func (ts *txStore) DeleteEntry(ctx context.Context, kind payroll.EntryKind, id payroll.EntryID) error {
	return deleteEntry(ctx, ts.tx, kind, id)
}

func (ts *txStore) ListEntries(ctx context.Context, f payroll.EntryFilter) ([]payroll.Entry, error) {
	return listEntries(ctx, ts.tx, f)
}

func (ts *txStore) SetAttachment(ctx context.Context, kind payroll.EntryKind, id payroll.EntryID, recordID *payroll.RecordID) error {
	return setAttachment(ctx, ts.tx, kind, id, recordID)
}

// =============================================================================
// AUDIT TRAIL (payroll.AuditTrailEmitter interface)
// =============================================================================

// Emit persists an audit event. Snapshots are stored as JSON blobs; they are
// for humans and compliance exports, never re-hydrated into domain types.
func (s *Store) Emit(ctx context.Context, event payroll.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldJSON, _ := json.Marshal(event.OldData)
	newJSON, _ := json.Marshal(event.NewData)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, entity, entity_id, action, old_data, new_data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID, event.Entity, event.EntityID, event.Action,
		string(oldJSON), string(newJSON),
		event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// AuditRecord is a stored audit event with raw JSON snapshots.
type AuditRecord struct {
	ID        string
	Entity    string
	EntityID  string
	Action    string
	OldData   string
	NewData   string
	Timestamp time.Time
}

// ListAuditEvents returns audit events for an entity, newest first. Empty
// entityID returns all events for the entity type.
func (s *Store) ListAuditEvents(ctx context.Context, entity, entityID string, limit int) ([]AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, entity, entity_id, action, old_data, new_data, timestamp
		FROM audit_events
		WHERE entity = ?
	`
	args := []any{entity}
	if entityID != "" {
		query += " AND entity_id = ?"
		args = append(args, entityID)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditRecord
	for rows.Next() {
		var a AuditRecord
		var ts string
		if err := rows.Scan(&a.ID, &a.Entity, &a.EntityID, &a.Action, &a.OldData, &a.NewData, &ts); err != nil {
			return nil, err
		}
		a.Timestamp, _ = time.Parse(time.RFC3339, ts)
		events = append(events, a)
	}
	return events, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"attendance_entries", "overtime_entries", "deduction_entries",
		"payroll_records", "payroll_periods", "audit_events",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func nullRecordID(id *payroll.RecordID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseRecordID(s sql.NullString) *payroll.RecordID {
	if !s.Valid || s.String == "" {
		return nil
	}
	id := payroll.RecordID(s.String)
	return &id
}

func parseDate(s string) payroll.Date {
	d, err := payroll.ParseDate(s)
	if err != nil {
		return payroll.Date{}
	}
	return d
}

func parseDecimal(s string) decimal.Decimal {
	return payroll.MustParseDecimal(s)
}
