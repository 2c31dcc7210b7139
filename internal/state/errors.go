package state

import "errors"

var (
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrInvalidTransition = errors.New("invalid queue status transition")
)
