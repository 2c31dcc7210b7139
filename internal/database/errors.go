package database

import "errors"

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrEventCodeTaken = errors.New("event code already in use")
	ErrStoreClosed    = errors.New("store is closed")
	ErrWriteTimeout   = errors.New("write operation timed out")
)
