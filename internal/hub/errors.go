package hub

import "errors"

var (
	ErrHubAlreadyRunning    = errors.New("hub is already running")
	ErrHubNotRunning        = errors.New("hub is not running")
	ErrInboundChannelFull   = errors.New("inbound channel is full")
	ErrDepartureChannelFull = errors.New("departure channel is full")
)
