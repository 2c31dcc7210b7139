package types

import "time"

// Typed payloads for each envelope type. Handlers decode the opaque
// envelope payload into exactly one of these.

// ConnectPayload accompanies USER_CONNECT. Identity normally comes from
// the connection's query parameters; fields here are informational.
type ConnectPayload struct {
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role,omitempty"`
	Event string `json:"event,omitempty"`
}

// InitialStatePayload is the full room snapshot sent to a newly connected
// client. Best-effort: a broadcast racing the connect may not be included.
type InitialStatePayload struct {
	Event          string         `json:"event"`
	Queue          []QueueItem    `json:"queue"`
	Notifications  []Notification `json:"notifications"`
	Users          []User         `json:"users"`
	ConnectedUsers int            `json:"connectedUsers"`
}

// UserPresencePayload accompanies USER_JOINED and USER_LEFT.
type UserPresencePayload struct {
	User           User `json:"user"`
	ConnectedUsers int  `json:"connectedUsers"`
}

// QueueUpdatePayload is a client- or REST-originated request to move a
// queue item to a new status. Player, when set, names the performer the
// update concerns so players can be notified.
type QueueUpdatePayload struct {
	ID     string      `json:"id"`
	Status QueueStatus `json:"status"`
	Player string      `json:"player,omitempty"`
}

// QueueUpdatedPayload carries the full queue after a mutation plus a
// human-readable description of what changed.
type QueueUpdatedPayload struct {
	Queue  []QueueItem `json:"queue"`
	Change string      `json:"change,omitempty"`
}

// QueueItemAddedPayload accompanies QUEUE_ITEM_ADDED.
type QueueItemAddedPayload struct {
	Item QueueItem `json:"item"`
}

// JoinQueuePayload is a player's request to enter the performance queue.
type JoinQueuePayload struct {
	Player  string   `json:"player,omitempty"`
	Players []string `json:"players,omitempty"`
	Song    string   `json:"song"`
}

// AnnouncementPayload accompanies ADMIN_ANNOUNCEMENT and STAFF_UPDATE.
type AnnouncementPayload struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}

// Tournament is a staff-managed bracket running alongside the queue.
type Tournament struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Players []string `json:"players,omitempty"`
	Status  string   `json:"status,omitempty"`
}

// StaffUpdatePayload is the superset STAFF_UPDATE carries: an optional
// announcement plus an optional full tournament list. Either part may
// be absent.
type StaffUpdatePayload struct {
	Message     string       `json:"message,omitempty"`
	Level       string       `json:"level,omitempty"`
	Tournaments []Tournament `json:"tournaments,omitempty"`
}

// HeartbeatAckPayload is the reply to a HEARTBEAT probe.
type HeartbeatAckPayload struct {
	Time time.Time `json:"time"`
}
