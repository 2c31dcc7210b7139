package websocket

import (
	"sync"
	"time"

	"stagesync/pkg/types"
)

// Record is the registry's view of one live channel. Owned exclusively
// by the registry; callers get copies.
type Record struct {
	UserName  string
	Role      types.Role
	EventCode string
	OpenedAt  time.Time
}

// Registry is the authoritative record of who is currently reachable.
// It only tracks connections; it never writes to them. Iteration is in
// registration order. User names carry no uniqueness constraint, so the
// same identity may appear on several channels at once.
type Registry struct {
	mu      sync.RWMutex
	order   []*Connection
	records map[*Connection]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[*Connection]*Record),
	}
}

// Register stores a connection record keyed by the channel handle. The
// connection must have announced its identity first. Registering the
// same channel twice is an error; duplicate identities are not.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsIdentified() {
		return ErrConnectionNotIdentified
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[conn]; exists {
		return ErrAlreadyRegistered
	}

	r.order = append(r.order, conn)
	r.records[conn] = &Record{
		UserName:  conn.UserName(),
		Role:      conn.Role(),
		EventCode: conn.EventCode(),
		OpenedAt:  conn.OpenedAt(),
	}
	return nil
}

// Unregister removes the record for a channel and returns the removed
// identity so the caller can decrement counters and announce the
// departure. Idempotent: unknown channels return ok=false.
func (r *Registry) Unregister(conn *Connection) (Record, bool) {
	if conn == nil {
		return Record{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[conn]
	if !exists {
		return Record{}, false
	}
	delete(r.records, conn)

	for i, c := range r.order {
		if c == conn {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *rec, true
}

// ForEach is the sole traversal primitive. It visits every registered
// channel in registration order and calls fn for each one the predicate
// accepts. A nil predicate matches everything. fn must not call back
// into the registry's write operations.
func (r *Registry) ForEach(pred func(Record) bool, fn func(conn *Connection, rec Record)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, conn := range r.order {
		rec := r.records[conn]
		if pred == nil || pred(*rec) {
			fn(conn, *rec)
		}
	}
}

// Users returns the identities connected to one event, in registration
// order. Duplicates appear once per channel.
func (r *Registry) Users(eventCode string) []types.User {
	users := make([]types.User, 0)
	r.ForEach(func(rec Record) bool {
		return rec.EventCode == eventCode
	}, func(conn *Connection, rec Record) {
		users = append(users, types.User{Name: rec.UserName, Role: rec.Role, Event: rec.EventCode})
	})
	return users
}

// Count returns how many channels are registered for one event.
func (r *Registry) Count(eventCode string) int {
	count := 0
	r.ForEach(func(rec Record) bool {
		return rec.EventCode == eventCode
	}, func(*Connection, Record) {
		count++
	})
	return count
}

// Stats returns registry totals for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make(map[string]bool)
	for _, rec := range r.records {
		events[rec.EventCode] = true
	}

	return map[string]int{
		"total_connections": len(r.records),
		"active_events":     len(events),
	}
}
