package types

import (
	"encoding/json"
	"time"
)

// Message type constants for every envelope exchanged over a channel.
// The catalogue is closed: the router dispatches on these values and
// logs-and-ignores anything else.
const (
	MessageTypeUserConnect       = "USER_CONNECT"
	MessageTypeInitialState      = "INITIAL_STATE"
	MessageTypeUserJoined        = "USER_JOINED"
	MessageTypeUserLeft          = "USER_LEFT"
	MessageTypeQueueUpdate       = "QUEUE_UPDATE"
	MessageTypeQueueUpdated      = "QUEUE_UPDATED"
	MessageTypeQueueItemAdded    = "QUEUE_ITEM_ADDED"
	MessageTypeAdminAnnouncement = "ADMIN_ANNOUNCEMENT"
	MessageTypeStaffUpdate       = "STAFF_UPDATE"
	MessageTypeNotification      = "NOTIFICATION"
	MessageTypePlayerJoinQueue   = "PLAYER_JOIN_QUEUE"
	MessageTypeHeartbeat         = "HEARTBEAT"
	MessageTypeHeartbeatAck      = "HEARTBEAT_ACK"
	MessageTypeChatMessage       = "CHAT_MESSAGE"
)

// Role identifies the kind of participant behind a connection.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RolePlayer Role = "player"
)

// Valid reports whether r is one of the three connection roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff || r == RolePlayer
}

// Envelope is the wire-level unit exchanged in both directions.
// Immutable once constructed; Payload stays opaque until a handler
// decodes it into the payload struct for its type.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	From      Role            `json:"from,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	EventID   string          `json:"eventId,omitempty"`
}

// NewEnvelope builds an envelope with the payload marshaled in place and
// the timestamp set to now.
func NewEnvelope(msgType string, payload interface{}, from Role, eventID string) (*Envelope, error) {
	env := &Envelope{
		Type:      msgType,
		From:      from,
		Timestamp: time.Now().UTC(),
		EventID:   eventID,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = data
	}
	return env, nil
}

// Validate checks the envelope invariants that hold for both directions.
func (e *Envelope) Validate() error {
	if e.Type == "" {
		return ErrEmptyMessageType
	}
	if e.From != "" && !e.From.Valid() {
		return ErrInvalidRole
	}
	return nil
}

// Decode unmarshals the opaque payload into v.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(e.Payload, v)
}

// User is the identity attached to a connection, as seen by other clients.
type User struct {
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Event string `json:"event,omitempty"`
}

// QueueItem is one entry in an event's performance queue. Identity is the
// ID field; lookups are by linear scan over the room's queue.
type QueueItem struct {
	ID      string      `json:"id"`
	Status  QueueStatus `json:"status"`
	Players []string    `json:"players"`
	Song    string      `json:"song"`
	AddedAt time.Time   `json:"addedAt"`
}

// Notification severity levels.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// NotificationFromSystem marks notifications originated by the server
// itself rather than an admin or staff sender.
const NotificationFromSystem = "system"

// Notification is an announcement shown to connected clients. Append-only
// until pruned on the hourly cadence or removed by ID.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	From      string    `json:"from"`
	Timestamp time.Time `json:"timestamp"`
}

// Event lifecycle states.
const (
	EventStatusActive = "active"
	EventStatusEnded  = "ended"
)

// EventRecord describes one live event. Persisted in the event store and
// exposed through the REST surface; the Code is what clients put in the
// event query parameter.
type EventRecord struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
