/*
audit.go - Audit trail contract

PURPOSE:
  Every mutating operation in this package emits a structured audit event
  after the change succeeds. The emit call is a documented postcondition of
  each operation - a deliberate call at the end of the mutation, never an
  implicit persistence hook.

WHAT IS AUDITED:
  - Period transitions and edits (before/after snapshots)
  - Record computation, payment, cancellation, deletion
  - Sub-ledger entry creation, update, deletion

STORAGE:
  Storage and querying of audit events is external to the core. The core
  ships a no-op emitter and an in-memory emitter; store/sqlite provides a
  persistent one.

SEE ALSO:
  - lifecycle.go, engine.go, subledger.go: emit call sites
*/
package payroll

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT EVENT
// =============================================================================

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditEvent is the before/after snapshot of one mutation.
type AuditEvent struct {
	ID        string
	Entity    string // "period", "record", "attendance", "overtime", "deduction"
	EntityID  string
	Action    AuditAction
	OldData   any // nil for CREATE
	NewData   any // nil for DELETE
	Timestamp time.Time
}

// AuditTrailEmitter receives audit events. Implementations must not mutate
// the event payloads; emitters run after the change has been applied.
type AuditTrailEmitter interface {
	Emit(ctx context.Context, event AuditEvent) error
}

// newAuditEvent stamps an ID and timestamp onto an event.
func newAuditEvent(clock Clock, entity, entityID string, action AuditAction, oldData, newData any) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Entity:    entity,
		EntityID:  entityID,
		Action:    action,
		OldData:   oldData,
		NewData:   newData,
		Timestamp: clock.Now(),
	}
}

// =============================================================================
// EMITTERS
// =============================================================================

// NopEmitter discards events. Default when no sink is wired.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, AuditEvent) error { return nil }

// MemoryEmitter collects events in memory. For tests and dev.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []AuditEvent
}

func NewMemoryEmitter() *MemoryEmitter { return &MemoryEmitter{} }

func (m *MemoryEmitter) Emit(_ context.Context, event AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *MemoryEmitter) Events() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// LastFor returns the most recent event for an entity type, or nil.
func (m *MemoryEmitter) LastFor(entity string) *AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Entity == entity {
			e := m.events[i]
			return &e
		}
	}
	return nil
}
