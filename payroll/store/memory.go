// Package store provides in-memory Store implementations for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type entryKey struct {
	Kind payroll.EntryKind
	ID   payroll.EntryID
}

type Memory struct {
	mu      sync.RWMutex
	periods map[payroll.PeriodID]*payroll.PayrollPeriod
	records map[payroll.RecordID]*payroll.PayrollRecord
	entries map[entryKey]payroll.Entry
}

func NewMemory() *Memory {
	return &Memory{
		periods: make(map[payroll.PeriodID]*payroll.PayrollPeriod),
		records: make(map[payroll.RecordID]*payroll.PayrollRecord),
		entries: make(map[entryKey]payroll.Entry),
	}
}

// -----------------------------------------------------------------------------
// PeriodStore
// -----------------------------------------------------------------------------

func (m *Memory) CreatePeriod(_ context.Context, p *payroll.PayrollPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPeriodLocked(p)
}

func (m *Memory) createPeriodLocked(p *payroll.PayrollPeriod) error {
	m.periods[p.ID] = p.Clone()
	return nil
}

func (m *Memory) UpdatePeriod(_ context.Context, p *payroll.PayrollPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePeriodLocked(p)
}

func (m *Memory) updatePeriodLocked(p *payroll.PayrollPeriod) error {
	if _, ok := m.periods[p.ID]; !ok {
		return &payroll.NotFoundError{Entity: "period", ID: string(p.ID)}
	}
	m.periods[p.ID] = p.Clone()
	return nil
}

func (m *Memory) GetPeriod(_ context.Context, id payroll.PeriodID) (*payroll.PayrollPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPeriodLocked(id)
}

func (m *Memory) getPeriodLocked(id payroll.PeriodID) (*payroll.PayrollPeriod, error) {
	p, ok := m.periods[id]
	if !ok {
		return nil, &payroll.NotFoundError{Entity: "period", ID: string(id)}
	}
	return p.Clone(), nil
}

func (m *Memory) ListPeriods(_ context.Context, f payroll.PeriodFilter) ([]*payroll.PayrollPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPeriodsLocked(f)
}

func (m *Memory) listPeriodsLocked(f payroll.PeriodFilter) ([]*payroll.PayrollPeriod, error) {
	var out []*payroll.PayrollPeriod
	for _, p := range m.periods {
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.PeriodType != nil && p.PeriodType != *f.PeriodType {
			continue
		}
		if f.From != nil && p.EndDate.Before(*f.From) {
			continue
		}
		if f.To != nil && p.StartDate.After(*f.To) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *Memory) DeletePeriod(_ context.Context, id payroll.PeriodID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePeriodLocked(id)
}

func (m *Memory) deletePeriodLocked(id payroll.PeriodID) error {
	if _, ok := m.periods[id]; !ok {
		return &payroll.NotFoundError{Entity: "period", ID: string(id)}
	}
	delete(m.periods, id)
	return nil
}

func (m *Memory) FindOverlapping(_ context.Context, start, end payroll.Date, exclude payroll.PeriodID) ([]*payroll.PayrollPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findOverlappingLocked(start, end, exclude)
}

func (m *Memory) findOverlappingLocked(start, end payroll.Date, exclude payroll.PeriodID) ([]*payroll.PayrollPeriod, error) {
	var out []*payroll.PayrollPeriod
	for _, p := range m.periods {
		if p.ID == exclude {
			continue
		}
		if payroll.RangesOverlap(start, end, p.StartDate, p.EndDate) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// -----------------------------------------------------------------------------
// RecordStore
// -----------------------------------------------------------------------------

func (m *Memory) PutRecord(_ context.Context, r *payroll.PayrollRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putRecordLocked(r)
}

func (m *Memory) putRecordLocked(r *payroll.PayrollRecord) error {
	m.records[r.ID] = r.Clone()
	return nil
}

func (m *Memory) GetRecord(_ context.Context, id payroll.RecordID) (*payroll.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRecordLocked(id)
}

func (m *Memory) getRecordLocked(id payroll.RecordID) (*payroll.PayrollRecord, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, &payroll.NotFoundError{Entity: "record", ID: string(id)}
	}
	return r.Clone(), nil
}

func (m *Memory) GetRecordByKey(_ context.Context, employeeID payroll.EmployeeID, periodID payroll.PeriodID) (*payroll.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRecordByKeyLocked(employeeID, periodID)
}

func (m *Memory) getRecordByKeyLocked(employeeID payroll.EmployeeID, periodID payroll.PeriodID) (*payroll.PayrollRecord, error) {
	for _, r := range m.records {
		if r.EmployeeID == employeeID && r.PeriodID == periodID {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) ListRecords(_ context.Context, f payroll.RecordFilter) ([]*payroll.PayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRecordsLocked(f)
}

func (m *Memory) listRecordsLocked(f payroll.RecordFilter) ([]*payroll.PayrollRecord, error) {
	var out []*payroll.PayrollRecord
	for _, r := range m.records {
		if f.EmployeeID != nil && r.EmployeeID != *f.EmployeeID {
			continue
		}
		if f.PeriodID != nil && r.PeriodID != *f.PeriodID {
			continue
		}
		if f.PaymentStatus != nil && r.PaymentStatus != *f.PaymentStatus {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteRecord(_ context.Context, id payroll.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRecordLocked(id)
}

func (m *Memory) deleteRecordLocked(id payroll.RecordID) error {
	if _, ok := m.records[id]; !ok {
		return &payroll.NotFoundError{Entity: "record", ID: string(id)}
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) CountRecordsForPeriod(_ context.Context, periodID payroll.PeriodID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countRecordsForPeriodLocked(periodID)
}

func (m *Memory) countRecordsForPeriodLocked(periodID payroll.PeriodID) (int, error) {
	n := 0
	for _, r := range m.records {
		if r.PeriodID == periodID {
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// SubLedgerStore
// -----------------------------------------------------------------------------

func (m *Memory) PutEntry(_ context.Context, e payroll.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putEntryLocked(e)
}

func (m *Memory) putEntryLocked(e payroll.Entry) error {
	m.entries[entryKey{e.Kind(), e.EntryID()}] = payroll.CloneEntry(e)
	return nil
}

func (m *Memory) GetEntry(_ context.Context, kind payroll.EntryKind, id payroll.EntryID) (payroll.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntryLocked(kind, id)
}

func (m *Memory) getEntryLocked(kind payroll.EntryKind, id payroll.EntryID) (payroll.Entry, error) {
	e, ok := m.entries[entryKey{kind, id}]
	if !ok {
		return nil, &payroll.NotFoundError{Entity: string(kind), ID: string(id)}
	}
	return payroll.CloneEntry(e), nil
}

func (m *Memory) DeleteEntry(_ context.Context, kind payroll.EntryKind, id payroll.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEntryLocked(kind, id)
}

func (m *Memory) deleteEntryLocked(kind payroll.EntryKind, id payroll.EntryID) error {
	k := entryKey{kind, id}
	if _, ok := m.entries[k]; !ok {
		return &payroll.NotFoundError{Entity: string(kind), ID: string(id)}
	}
	delete(m.entries, k)
	return nil
}

func (m *Memory) ListEntries(_ context.Context, f payroll.EntryFilter) ([]payroll.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEntriesLocked(f)
}

func (m *Memory) listEntriesLocked(f payroll.EntryFilter) ([]payroll.Entry, error) {
	kinds := make(map[payroll.EntryKind]bool)
	for _, k := range f.Kinds {
		kinds[k] = true
	}

	var out []payroll.Entry
	for _, e := range m.entries {
		if len(kinds) > 0 && !kinds[e.Kind()] {
			continue
		}
		if f.EmployeeID != nil && e.Employee() != *f.EmployeeID {
			continue
		}
		if f.From != nil && e.OccurredOn().Before(*f.From) {
			continue
		}
		if f.To != nil && e.OccurredOn().After(*f.To) {
			continue
		}
		switch {
		case f.AttachedTo != nil:
			if e.AttachedTo() == nil || *e.AttachedTo() != *f.AttachedTo {
				continue
			}
		case f.Unattached:
			if e.AttachedTo() != nil {
				continue
			}
		}
		out = append(out, payroll.CloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredOn().Equal(out[j].OccurredOn()) {
			return out[i].OccurredOn().Before(out[j].OccurredOn())
		}
		if out[i].Kind() != out[j].Kind() {
			return out[i].Kind() < out[j].Kind()
		}
		return out[i].EntryID() < out[j].EntryID()
	})
	return out, nil
}

func (m *Memory) SetAttachment(_ context.Context, kind payroll.EntryKind, id payroll.EntryID, recordID *payroll.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setAttachmentLocked(kind, id, recordID)
}

func (m *Memory) setAttachmentLocked(kind payroll.EntryKind, id payroll.EntryID, recordID *payroll.RecordID) error {
	k := entryKey{kind, id}
	e, ok := m.entries[k]
	if !ok {
		return &payroll.NotFoundError{Entity: string(kind), ID: string(id)}
	}
	cp := payroll.CloneEntry(e)
	switch v := cp.(type) {
	case *payroll.AttendanceEntry:
		v.PayrollRecordID = recordID
	case *payroll.OvertimeEntry:
		v.PayrollRecordID = recordID
	case *payroll.DeductionEntry:
		v.PayrollRecordID = recordID
	}
	m.entries[k] = cp
	return nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods = make(map[payroll.PeriodID]*payroll.PayrollPeriod)
	m.records = make(map[payroll.RecordID]*payroll.PayrollRecord)
	m.entries = make(map[entryKey]payroll.Entry)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot, restored when fn fails.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	periods map[payroll.PeriodID]*payroll.PayrollPeriod
	records map[payroll.RecordID]*payroll.PayrollRecord
	entries map[entryKey]payroll.Entry
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		periods: make(map[payroll.PeriodID]*payroll.PayrollPeriod, len(tm.periods)),
		records: make(map[payroll.RecordID]*payroll.PayrollRecord, len(tm.records)),
		entries: make(map[entryKey]payroll.Entry, len(tm.entries)),
	}
	for k, v := range tm.periods {
		s.periods[k] = v.Clone()
	}
	for k, v := range tm.records {
		s.records[k] = v.Clone()
	}
	for k, v := range tm.entries {
		s.entries[k] = payroll.CloneEntry(v)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.periods = s.periods
	tm.records = s.records
	tm.entries = s.entries
}

// txMemoryView routes calls to the locked internals; the parent mutex is
// already held for the duration of the transaction.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) CreatePeriod(_ context.Context, p *payroll.PayrollPeriod) error {
	return tv.parent.createPeriodLocked(p)
}

func (tv *txMemoryView) UpdatePeriod(_ context.Context, p *payroll.PayrollPeriod) error {
	return tv.parent.updatePeriodLocked(p)
}

func (tv *txMemoryView) GetPeriod(_ context.Context, id payroll.PeriodID) (*payroll.PayrollPeriod, error) {
	return tv.parent.getPeriodLocked(id)
}

func (tv *txMemoryView) ListPeriods(_ context.Context, f payroll.PeriodFilter) ([]*payroll.PayrollPeriod, error) {
	return tv.parent.listPeriodsLocked(f)
}

func (tv *txMemoryView) DeletePeriod(_ context.Context, id payroll.PeriodID) error {
	return tv.parent.deletePeriodLocked(id)
}

func (tv *txMemoryView) FindOverlapping(_ context.Context, start, end payroll.Date, exclude payroll.PeriodID) ([]*payroll.PayrollPeriod, error) {
	return tv.parent.findOverlappingLocked(start, end, exclude)
}

func (tv *txMemoryView) PutRecord(_ context.Context, r *payroll.PayrollRecord) error {
	return tv.parent.putRecordLocked(r)
}

func (tv *txMemoryView) GetRecord(_ context.Context, id payroll.RecordID) (*payroll.PayrollRecord, error) {
	return tv.parent.getRecordLocked(id)
}

func (tv *txMemoryView) GetRecordByKey(_ context.Context, employeeID payroll.EmployeeID, periodID payroll.PeriodID) (*payroll.PayrollRecord, error) {
	return tv.parent.getRecordByKeyLocked(employeeID, periodID)
}

func (tv *txMemoryView) ListRecords(_ context.Context, f payroll.RecordFilter) ([]*payroll.PayrollRecord, error) {
	return tv.parent.listRecordsLocked(f)
}

func (tv *txMemoryView) DeleteRecord(_ context.Context, id payroll.RecordID) error {
	return tv.parent.deleteRecordLocked(id)
}

func (tv *txMemoryView) CountRecordsForPeriod(_ context.Context, periodID payroll.PeriodID) (int, error) {
	return tv.parent.countRecordsForPeriodLocked(periodID)
}

func (tv *txMemoryView) PutEntry(_ context.Context, e payroll.Entry) error {
	return tv.parent.putEntryLocked(e)
}

func (tv *txMemoryView) GetEntry(_ context.Context, kind payroll.EntryKind, id payroll.EntryID) (payroll.Entry, error) {
	return tv.parent.getEntryLocked(kind, id)
}

func (tv *txMemoryView) DeleteEntry(_ context.Context, kind payroll.EntryKind, id payroll.EntryID) error {
	return tv.parent.deleteEntryLocked(kind, id)
}

func (tv *txMemoryView) ListEntries(_ context.Context, f payroll.EntryFilter) ([]payroll.Entry, error) {
	return tv.parent.listEntriesLocked(f)
}

func (tv *txMemoryView) SetAttachment(_ context.Context, kind payroll.EntryKind, id payroll.EntryID, recordID *payroll.RecordID) error {
	return tv.parent.setAttachmentLocked(kind, id, recordID)
}
