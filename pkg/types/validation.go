package types

import "regexp"

var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUserName checks that a user name is safe to carry in query
// parameters and log lines. Names are not unique; duplicates each get
// their own connection record.
func IsValidUserName(name string) bool {
	if len(name) < 1 || len(name) > 50 {
		return false
	}
	return identifierRegex.MatchString(name)
}

// IsValidEventCode checks an event code's format. The empty code is
// handled before this point (it maps to the default room).
func IsValidEventCode(code string) bool {
	if len(code) < 1 || len(code) > 50 {
		return false
	}
	return identifierRegex.MatchString(code)
}

// IsKnownMessageType reports whether msgType belongs to the closed
// catalogue. The router does not reject unknown types, it ignores them;
// this helper exists for callers that want to warn early.
func IsKnownMessageType(msgType string) bool {
	switch msgType {
	case MessageTypeUserConnect,
		MessageTypeInitialState,
		MessageTypeUserJoined,
		MessageTypeUserLeft,
		MessageTypeQueueUpdate,
		MessageTypeQueueUpdated,
		MessageTypeQueueItemAdded,
		MessageTypeAdminAnnouncement,
		MessageTypeStaffUpdate,
		MessageTypeNotification,
		MessageTypePlayerJoinQueue,
		MessageTypeHeartbeat,
		MessageTypeHeartbeatAck,
		MessageTypeChatMessage:
		return true
	default:
		return false
	}
}

// Validate checks an event record before it is persisted.
func (e *EventRecord) Validate() error {
	if len(e.Name) < 1 || len(e.Name) > 200 {
		return ErrInvalidEventName
	}
	if !IsValidEventCode(e.Code) {
		return ErrInvalidEventCode
	}
	return nil
}
