package state

import (
	"sync"
	"time"

	"stagesync/pkg/types"
)

// Room is the shared mutable aggregate for one event: the performance
// queue, the notification log and the connected-user counter. All
// mutation goes through the router running on the hub goroutine; the
// mutex exists for readers on the REST path and the prune ticker.
type Room struct {
	mu            sync.RWMutex
	code          string
	queue         []types.QueueItem
	notifications []types.Notification
	connected     int
}

// NewRoom creates an empty room for the given event code.
func NewRoom(code string) *Room {
	return &Room{code: code}
}

// Code returns the event code the room belongs to.
func (r *Room) Code() string {
	return r.code
}

// AddQueueItem appends an item to the queue.
func (r *Room) AddQueueItem(item types.QueueItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, item)
}

// UpdateQueueStatus moves the item with the given id to a new status.
// Lookup is a linear scan; a missing id is a no-op reported through
// ErrQueueItemNotFound, an invalid transition through
// ErrInvalidTransition. On success the updated item is returned.
func (r *Room) UpdateQueueStatus(id string, status types.QueueStatus) (types.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.queue {
		if r.queue[i].ID != id {
			continue
		}
		if !r.queue[i].Status.CanTransitionTo(status) {
			return types.QueueItem{}, ErrInvalidTransition
		}
		r.queue[i].Status = status
		return r.queue[i], nil
	}
	return types.QueueItem{}, ErrQueueItemNotFound
}

// Queue returns a copy of the queue in insertion order.
func (r *Room) Queue() []types.QueueItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queue := make([]types.QueueItem, len(r.queue))
	copy(queue, r.queue)
	return queue
}

// CurrentlyPlaying returns the first queue item in the playing state.
func (r *Room) CurrentlyPlaying() (types.QueueItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.queue {
		if item.Status == types.StatusPlaying {
			return item, true
		}
	}
	return types.QueueItem{}, false
}

// AddNotification appends to the notification log.
func (r *Room) AddNotification(n types.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// RemoveNotification deletes a notification by id. Unknown ids are a
// no-op.
func (r *Room) RemoveNotification(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
			return true
		}
	}
	return false
}

// Notifications returns a copy of the notification log.
func (r *Room) Notifications() []types.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notifications := make([]types.Notification, len(r.notifications))
	copy(notifications, r.notifications)
	return notifications
}

// PruneNotifications drops every notification with a timestamp before
// cutoff and returns how many were removed.
func (r *Room) PruneNotifications(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.notifications[:0]
	for _, n := range r.notifications {
		if !n.Timestamp.Before(cutoff) {
			kept = append(kept, n)
		}
	}
	removed := len(r.notifications) - len(kept)
	r.notifications = kept
	return removed
}

// IncrementConnected bumps the connected-user counter and returns the
// new value.
func (r *Room) IncrementConnected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
	return r.connected
}

// DecrementConnected lowers the counter, clamped at zero.
func (r *Room) DecrementConnected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected > 0 {
		r.connected--
	}
	return r.connected
}

// ConnectedUsers returns the current counter value.
func (r *Room) ConnectedUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}
