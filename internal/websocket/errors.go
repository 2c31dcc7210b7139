package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteBufferFull  = errors.New("write buffer full")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry-related errors
var (
	ErrNilConnection           = errors.New("connection cannot be nil")
	ErrConnectionNotIdentified = errors.New("connection must announce identity before registration")
	ErrAlreadyRegistered       = errors.New("connection already registered")
)

// Handler-related errors
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)
