/*
store.go - Persistence interfaces for periods, records, and sub-ledger entries

PURPOSE:
  Defines the interface between the domain logic and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  PeriodStore:    PayrollPeriod rows and range queries
  RecordStore:    PayrollRecord rows, keyed lookups, per-period counts
  SubLedgerStore: Attendance/overtime/deduction rows and the attachment pointer
  Store:          All of the above
  TxStore:        Store plus atomic multi-write transactions

OWNERSHIP PARTITION:
  PeriodLifecycle is the sole writer of period status/dates/totals-carrying
  rows. The ComputationEngine is the sole writer of record derived fields and
  of the sub-ledger attachment pointer. The stores do not enforce this -
  the components do - but implementations must never mutate rows on their own.

ATOMICITY:
  Every mutating sequence in the engine runs inside WithTx. A reader must
  never observe a PayrollRecord whose derived fields reflect a
  partially-attached set of sub-ledger entries.

IMPLEMENTATIONS:
  - store/sqlite:        Production SQLite (database/sql transactions)
  - payroll/store:       In-memory with snapshot/rollback (tests, dev)

SEE ALSO:
  - engine.go: uses WithTx for compute/delete cycles
  - payroll/store/memory.go, store/sqlite/sqlite.go
*/
package payroll

import "context"

// =============================================================================
// PERIOD STORE
// =============================================================================

type PeriodStore interface {
	// CreatePeriod inserts a new period row.
	CreatePeriod(ctx context.Context, p *PayrollPeriod) error

	// UpdatePeriod replaces an existing period row by ID.
	UpdatePeriod(ctx context.Context, p *PayrollPeriod) error

	// GetPeriod returns the period or a NotFoundError.
	GetPeriod(ctx context.Context, id PeriodID) (*PayrollPeriod, error)

	// ListPeriods returns periods matching the filter, ordered by StartDate.
	ListPeriods(ctx context.Context, f PeriodFilter) ([]*PayrollPeriod, error)

	// DeletePeriod removes the period row. The lifecycle checks the
	// record-reference constraint before calling this.
	DeletePeriod(ctx context.Context, id PeriodID) error

	// FindOverlapping returns periods whose [StartDate, EndDate) range
	// overlaps [start, end), excluding the given ID (zero value excludes
	// nothing). Used for the range-uniqueness invariant.
	FindOverlapping(ctx context.Context, start, end Date, exclude PeriodID) ([]*PayrollPeriod, error)
}

// =============================================================================
// RECORD STORE
// =============================================================================

type RecordStore interface {
	// PutRecord inserts or replaces a record by ID.
	PutRecord(ctx context.Context, r *PayrollRecord) error

	// GetRecord returns the record or a NotFoundError.
	GetRecord(ctx context.Context, id RecordID) (*PayrollRecord, error)

	// GetRecordByKey returns the record for (employee, period), or
	// (nil, nil) when none exists. Absence is a normal outcome here -
	// it means first-time computation.
	GetRecordByKey(ctx context.Context, employeeID EmployeeID, periodID PeriodID) (*PayrollRecord, error)

	// ListRecords returns records matching the filter.
	ListRecords(ctx context.Context, f RecordFilter) ([]*PayrollRecord, error)

	// DeleteRecord removes the record row.
	DeleteRecord(ctx context.Context, id RecordID) error

	// CountRecordsForPeriod returns how many records reference the period.
	// Used to block period deletion.
	CountRecordsForPeriod(ctx context.Context, periodID PeriodID) (int, error)
}

// =============================================================================
// SUB-LEDGER STORE
// =============================================================================

type SubLedgerStore interface {
	// PutEntry inserts or replaces an entry. The concrete type determines
	// which table the row lands in.
	PutEntry(ctx context.Context, e Entry) error

	// GetEntry returns the entry or a NotFoundError.
	GetEntry(ctx context.Context, kind EntryKind, id EntryID) (Entry, error)

	// DeleteEntry removes the entry row. The AttachmentGuard checks
	// immutability before this is called.
	DeleteEntry(ctx context.Context, kind EntryKind, id EntryID) error

	// ListEntries returns entries matching the filter, ordered by date.
	ListEntries(ctx context.Context, f EntryFilter) ([]Entry, error)

	// SetAttachment points the entry's PayrollRecordID at recordID
	// (nil detaches). Only the AttachmentGuard calls this.
	SetAttachment(ctx context.Context, kind EntryKind, id EntryID, recordID *RecordID) error
}

// =============================================================================
// COMBINED / TRANSACTIONAL STORE
// =============================================================================

// Store is the full persistence surface the engine depends on.
type Store interface {
	PeriodStore
	RecordStore
	SubLedgerStore
}

// TxStore wraps Store with transaction support. All mutating sequences in
// the lifecycle and the engine run through WithTx: validate everything
// first, then apply everything, with rollback of any applied step on failure.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
