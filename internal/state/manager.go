package state

import (
	"context"
	"log"
	"sync"
	"time"
)

// Manager keys room state by event code, turning the former single
// global namespace into an explicit multi-tenant map. An empty code is
// mapped to the configured default room so legacy clients that never
// send an event code keep working.
type Manager struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	defaultCode string
}

// NewManager creates a manager using defaultCode as the room for
// clients without an event code.
func NewManager(defaultCode string) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		defaultCode: defaultCode,
	}
}

// Normalize maps the empty event code to the default room code.
func (m *Manager) Normalize(code string) string {
	if code == "" {
		return m.defaultCode
	}
	return code
}

// Room returns the state for an event code, creating it on first use.
func (m *Manager) Room(code string) *Room {
	code = m.Normalize(code)

	m.mu.RLock()
	room, exists := m.rooms[code]
	m.mu.RUnlock()
	if exists {
		return room
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if room, exists = m.rooms[code]; exists {
		return room
	}
	room = NewRoom(code)
	m.rooms[code] = room
	return room
}

// Rooms returns a snapshot of all live rooms.
func (m *Manager) Rooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// StartPruning runs the notification prune loop until ctx is cancelled.
// Every interval, notifications older than ttl are dropped from every
// room.
func (m *Manager) StartPruning(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.PruneAll(time.Now().Add(-ttl))
			case <-ctx.Done():
				return
			}
		}
	}()
}

// PruneAll prunes every room against the given cutoff.
func (m *Manager) PruneAll(cutoff time.Time) {
	for _, room := range m.Rooms() {
		if removed := room.PruneNotifications(cutoff); removed > 0 {
			log.Printf("pruned notifications: event=%s removed=%d", room.Code(), removed)
		}
	}
}
