package client

import "errors"

var (
	ErrNotConnected  = errors.New("client is not connected")
	ErrClientClosed  = errors.New("client is closed")
	ErrAlreadyOpen   = errors.New("connection already open")
	ErrInvalidConfig = errors.New("invalid client configuration")
)
