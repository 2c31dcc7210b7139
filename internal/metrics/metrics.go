// Package metrics tracks connection and message counters for the
// health endpoint. Everything is atomic; no locks on the hot path.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics tracks server activity since process start.
type Metrics struct {
	activeConnections int64
	totalConnections  int64
	messagesReceived  int64
	messagesSent      int64
	broadcastErrors   int64
	ignoredMessages   int64
	lastMessageTime   int64 // Unix timestamp

	startTime time.Time
}

// New creates a metrics tracker.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncrementConnections() {
	atomic.AddInt64(&m.activeConnections, 1)
	atomic.AddInt64(&m.totalConnections, 1)
}

func (m *Metrics) DecrementConnections() {
	atomic.AddInt64(&m.activeConnections, -1)
}

func (m *Metrics) IncrementMessagesReceived() {
	atomic.AddInt64(&m.messagesReceived, 1)
	atomic.StoreInt64(&m.lastMessageTime, time.Now().Unix())
}

func (m *Metrics) IncrementMessagesSent() {
	atomic.AddInt64(&m.messagesSent, 1)
}

func (m *Metrics) IncrementBroadcastErrors() {
	atomic.AddInt64(&m.broadcastErrors, 1)
}

func (m *Metrics) IncrementIgnoredMessages() {
	atomic.AddInt64(&m.ignoredMessages, 1)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	ActiveConnections int64   `json:"active_connections"`
	TotalConnections  int64   `json:"total_connections"`
	MessagesReceived  int64   `json:"messages_received"`
	MessagesSent      int64   `json:"messages_sent"`
	BroadcastErrors   int64   `json:"broadcast_errors"`
	IgnoredMessages   int64   `json:"ignored_messages"`
	LastMessageTime   int64   `json:"last_message_time"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// GetSnapshot reads all counters.
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		ActiveConnections: atomic.LoadInt64(&m.activeConnections),
		TotalConnections:  atomic.LoadInt64(&m.totalConnections),
		MessagesReceived:  atomic.LoadInt64(&m.messagesReceived),
		MessagesSent:      atomic.LoadInt64(&m.messagesSent),
		BroadcastErrors:   atomic.LoadInt64(&m.broadcastErrors),
		IgnoredMessages:   atomic.LoadInt64(&m.ignoredMessages),
		LastMessageTime:   atomic.LoadInt64(&m.lastMessageTime),
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
	}
}
