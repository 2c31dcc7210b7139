package types

// QueueStatus is the lifecycle state of a queue item. The set is closed
// and transitions go through CanTransitionTo; free-form status strings
// are rejected at the router.
type QueueStatus string

const (
	StatusPending   QueueStatus = "pending"
	StatusPlaying   QueueStatus = "playing"
	StatusCompleted QueueStatus = "completed"
	StatusSkipped   QueueStatus = "skipped"
)

// Valid reports whether s is a known queue status.
func (s QueueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPlaying, StatusCompleted, StatusSkipped:
		return true
	}
	return false
}

// CanTransitionTo reports whether a status update from s to next is
// allowed. Completed is terminal; a skipped item may be re-queued.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusPlaying || next == StatusSkipped
	case StatusPlaying:
		return next == StatusCompleted || next == StatusSkipped
	case StatusSkipped:
		return next == StatusPending
	default:
		return false
	}
}
