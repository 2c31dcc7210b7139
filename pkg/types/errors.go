package types

import "errors"

var (
	ErrEmptyMessageType = errors.New("message type cannot be empty")
	ErrInvalidRole      = errors.New("role must be admin, staff or player")
	ErrEmptyPayload     = errors.New("envelope has no payload")
	ErrInvalidUserName  = errors.New("user name must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidEventCode = errors.New("event code must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidStatus    = errors.New("unknown queue status")
	ErrInvalidEventName = errors.New("event name must be 1-200 characters")
)
