package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagesync/pkg/types"
)

func TestManager_RoomCreateOnDemand(t *testing.T) {
	m := NewManager("lobby")

	room := m.Room("friday-night")
	require.NotNil(t, room)
	assert.Equal(t, "friday-night", room.Code())

	// Same code returns the same room instance.
	assert.Same(t, room, m.Room("friday-night"))
	assert.Len(t, m.Rooms(), 1)
}

func TestManager_EmptyCodeMapsToDefault(t *testing.T) {
	m := NewManager("lobby")

	room := m.Room("")
	assert.Equal(t, "lobby", room.Code())
	assert.Same(t, room, m.Room("lobby"))
}

func TestManager_RoomsAreIsolated(t *testing.T) {
	m := NewManager("lobby")

	m.Room("stage-a").AddNotification(types.Notification{ID: "n1", Timestamp: time.Now()})
	m.Room("stage-a").IncrementConnected()

	assert.Len(t, m.Room("stage-b").Notifications(), 0)
	assert.Equal(t, 0, m.Room("stage-b").ConnectedUsers())
	assert.Equal(t, 1, m.Room("stage-a").ConnectedUsers())
}

func TestManager_PruneAll(t *testing.T) {
	m := NewManager("lobby")
	now := time.Now()

	m.Room("stage-a").AddNotification(types.Notification{ID: "old-a", Timestamp: now.Add(-2 * time.Hour)})
	m.Room("stage-a").AddNotification(types.Notification{ID: "new-a", Timestamp: now})
	m.Room("stage-b").AddNotification(types.Notification{ID: "old-b", Timestamp: now.Add(-90 * time.Minute)})

	m.PruneAll(now.Add(-time.Hour))

	require.Len(t, m.Room("stage-a").Notifications(), 1)
	assert.Equal(t, "new-a", m.Room("stage-a").Notifications()[0].ID)
	assert.Len(t, m.Room("stage-b").Notifications(), 0)
}

func TestManager_StartPruning(t *testing.T) {
	m := NewManager("lobby")
	room := m.Room("stage-a")
	room.AddNotification(types.Notification{ID: "old", Timestamp: time.Now().Add(-2 * time.Hour)})
	room.AddNotification(types.Notification{ID: "new", Timestamp: time.Now().Add(time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.StartPruning(ctx, 10*time.Millisecond, time.Hour)

	require.Eventually(t, func() bool {
		return len(room.Notifications()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "new", room.Notifications()[0].ID)
}
