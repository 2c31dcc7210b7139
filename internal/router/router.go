package router

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"stagesync/internal/metrics"
	"stagesync/internal/state"
	"stagesync/internal/websocket"
	"stagesync/pkg/types"
)

// QueueStore persists queue mutations for the REST surface. Optional;
// a nil store disables persistence without changing routing behaviour.
type QueueStore interface {
	SaveQueueItem(ctx context.Context, eventCode string, item types.QueueItem) error
	UpdateQueueItemStatus(ctx context.Context, id string, status types.QueueStatus) error
}

// handlerFunc processes one inbound envelope on the hub goroutine.
type handlerFunc func(ctx context.Context, conn *websocket.Connection, env *types.Envelope)

// Router maps an envelope's type to its handler. The handler table is
// closed: unknown types are counted, logged and ignored — never an
// error back to the sender.
type Router struct {
	registry   *websocket.Registry
	states     *state.Manager
	dispatcher *Dispatcher
	store      QueueStore
	metrics    *metrics.Metrics
	handlers   map[string]handlerFunc
}

// NewRouter builds the dispatch table. store and m may be nil.
func NewRouter(registry *websocket.Registry, states *state.Manager, dispatcher *Dispatcher, store QueueStore, m *metrics.Metrics) *Router {
	r := &Router{
		registry:   registry,
		states:     states,
		dispatcher: dispatcher,
		store:      store,
		metrics:    m,
	}
	r.handlers = map[string]handlerFunc{
		types.MessageTypeUserConnect:       r.handleUserConnect,
		types.MessageTypeQueueUpdate:       r.handleQueueUpdate,
		types.MessageTypePlayerJoinQueue:   r.handlePlayerJoinQueue,
		types.MessageTypeAdminAnnouncement: r.handleAnnouncement,
		types.MessageTypeStaffUpdate:       r.handleAnnouncement,
		types.MessageTypeHeartbeat:         r.handleHeartbeat,
		types.MessageTypeChatMessage:       r.handleChatMessage,
	}
	return r
}

// Route processes one envelope. conn may be nil for messages injected
// by the REST surface; handlers that need a sender treat that as a
// broadcast-only trigger. Failures never propagate to the sender: they
// degrade to a log line and unchanged state.
func (r *Router) Route(ctx context.Context, conn *websocket.Connection, env *types.Envelope) {
	if r.metrics != nil {
		r.metrics.IncrementMessagesReceived()
	}

	handler, known := r.handlers[env.Type]
	if !known {
		log.Printf("ignoring unknown message type: type=%s from=%s", env.Type, env.From)
		if r.metrics != nil {
			r.metrics.IncrementIgnoredMessages()
		}
		return
	}
	handler(ctx, conn, env)
}

// HandleDisconnect reacts to a transport-level close: the record is
// removed, the counter decremented and the departure announced. Safe
// for channels that never registered (closed before USER_CONNECT).
func (r *Router) HandleDisconnect(ctx context.Context, conn *websocket.Connection) {
	rec, ok := r.registry.Unregister(conn)
	if !ok {
		return
	}
	if r.metrics != nil {
		r.metrics.DecrementConnections()
	}

	eventCode := rec.EventCode
	room := r.states.Room(eventCode)
	connected := room.DecrementConnected()

	env, err := types.NewEnvelope(types.MessageTypeUserLeft, types.UserPresencePayload{
		User:           types.User{Name: rec.UserName, Role: rec.Role, Event: rec.EventCode},
		ConnectedUsers: connected,
	}, "", eventCode)
	if err != nil {
		log.Printf("user left broadcast failed: user=%s err=%v", rec.UserName, err)
		return
	}
	r.dispatcher.BroadcastAll(eventCode, env, nil)
	log.Printf("connection departed: user=%s role=%s event=%s connected=%d", rec.UserName, rec.Role, eventCode, connected)
}

// handleUserConnect registers the channel, bumps the counter, replies
// to the sender alone with the full room snapshot, then announces the
// join to everyone else.
func (r *Router) handleUserConnect(ctx context.Context, conn *websocket.Connection, env *types.Envelope) {
	if conn == nil {
		log.Printf("USER_CONNECT without a channel ignored")
		return
	}

	if err := r.registry.Register(conn); err != nil {
		log.Printf("registration failed: user=%s err=%v", conn.UserName(), err)
		return
	}
	if r.metrics != nil {
		r.metrics.IncrementConnections()
	}

	eventCode := conn.EventCode()
	room := r.states.Room(eventCode)
	connected := room.IncrementConnected()

	// Snapshot reply to the sender only. Best effort: a broadcast that
	// raced this connect may not be reflected.
	snapshot := types.InitialStatePayload{
		Event:          eventCode,
		Queue:          room.Queue(),
		Notifications:  room.Notifications(),
		Users:          r.registry.Users(eventCode),
		ConnectedUsers: connected,
	}
	if reply, err := types.NewEnvelope(types.MessageTypeInitialState, snapshot, "", eventCode); err == nil {
		if err := r.dispatcher.SendTo(conn, reply); err != nil {
			log.Printf("initial state delivery failed: user=%s err=%v", conn.UserName(), err)
		}
	}

	joined, err := types.NewEnvelope(types.MessageTypeUserJoined, types.UserPresencePayload{
		User:           conn.User(),
		ConnectedUsers: connected,
	}, "", eventCode)
	if err != nil {
		return
	}
	r.dispatcher.BroadcastAll(eventCode, joined, conn)
	log.Printf("connection registered: user=%s role=%s event=%s connected=%d", conn.UserName(), conn.Role(), eventCode, connected)
}

// handleQueueUpdate applies a status change to an existing queue item.
// A missing id or an invalid transition leaves the queue untouched; the
// full (possibly unchanged) queue snapshot is still broadcast so clients
// converge on a structurally valid view.
func (r *Router) handleQueueUpdate(ctx context.Context, conn *websocket.Connection, env *types.Envelope) {
	var payload types.QueueUpdatePayload
	if err := env.Decode(&payload); err != nil {
		log.Printf("queue update payload discarded: err=%v", err)
		return
	}

	eventCode := r.eventCodeFor(conn, env)
	room := r.states.Room(eventCode)

	change := ""
	item, err := room.UpdateQueueStatus(payload.ID, payload.Status)
	switch err {
	case nil:
		change = fmt.Sprintf("%s is now %s", item.Song, item.Status)
		if r.store != nil {
			if dbErr := r.store.UpdateQueueItemStatus(ctx, item.ID, item.Status); dbErr != nil {
				log.Printf("queue persistence failed: id=%s err=%v", item.ID, dbErr)
			}
		}
	case state.ErrQueueItemNotFound:
		log.Printf("queue update for unknown item: id=%s", payload.ID)
	case state.ErrInvalidTransition:
		log.Printf("queue update rejected: id=%s status=%s err=%v", payload.ID, payload.Status, err)
	default:
		log.Printf("queue update failed: id=%s err=%v", payload.ID, err)
	}

	updated, envErr := types.NewEnvelope(types.MessageTypeQueueUpdated, types.QueueUpdatedPayload{
		Queue:  room.Queue(),
		Change: change,
	}, "", eventCode)
	if envErr != nil {
		return
	}
	r.dispatcher.BroadcastAll(eventCode, updated, nil)

	// A successful update that names a player also notifies every
	// player-typed connection.
	if err == nil && payload.Player != "" {
		r.sendRoleNotification(eventCode, types.RolePlayer, types.Notification{
			ID:        uuid.New().String(),
			Message:   fmt.Sprintf("%s: your song %q is now %s", payload.Player, item.Song, item.Status),
			Type:      types.NotificationInfo,
			From:      types.NotificationFromSystem,
			Timestamp: time.Now().UTC(),
		})
	}
}

// handlePlayerJoinQueue appends a new pending item, broadcasts the
// updated queue plus a distinct item-added event, and tips off staff.
func (r *Router) handlePlayerJoinQueue(ctx context.Context, conn *websocket.Connection, env *types.Envelope) {
	var payload types.JoinQueuePayload
	if err := env.Decode(&payload); err != nil {
		log.Printf("join queue payload discarded: err=%v", err)
		return
	}

	players := payload.Players
	if len(players) == 0 && payload.Player != "" {
		players = []string{payload.Player}
	}
	if len(players) == 0 && conn != nil {
		players = []string{conn.UserName()}
	}
	if len(players) == 0 || payload.Song == "" {
		log.Printf("join queue missing player or song")
		return
	}

	eventCode := r.eventCodeFor(conn, env)
	room := r.states.Room(eventCode)

	item := types.QueueItem{
		ID:      uuid.New().String(),
		Status:  types.StatusPending,
		Players: players,
		Song:    payload.Song,
		AddedAt: time.Now().UTC(),
	}
	room.AddQueueItem(item)
	if r.store != nil {
		if err := r.store.SaveQueueItem(ctx, eventCode, item); err != nil {
			log.Printf("queue persistence failed: id=%s err=%v", item.ID, err)
		}
	}

	if updated, err := types.NewEnvelope(types.MessageTypeQueueUpdated, types.QueueUpdatedPayload{
		Queue:  room.Queue(),
		Change: fmt.Sprintf("%s joined the queue with %q", players[0], item.Song),
	}, "", eventCode); err == nil {
		r.dispatcher.BroadcastAll(eventCode, updated, nil)
	}

	if added, err := types.NewEnvelope(types.MessageTypeQueueItemAdded, types.QueueItemAddedPayload{Item: item}, "", eventCode); err == nil {
		r.dispatcher.BroadcastAll(eventCode, added, nil)
	}

	r.sendRoleNotification(eventCode, types.RoleStaff, types.Notification{
		ID:        uuid.New().String(),
		Message:   fmt.Sprintf("%s joined the queue with %q", players[0], item.Song),
		Type:      types.NotificationInfo,
		From:      types.NotificationFromSystem,
		Timestamp: time.Now().UTC(),
	})
}

// handleAnnouncement covers ADMIN_ANNOUNCEMENT and STAFF_UPDATE: the
// notification is appended to room state and broadcast to everyone. A
// STAFF_UPDATE carrying a tournament list is relayed to the room as-is
// so client stores can replace theirs.
func (r *Router) handleAnnouncement(ctx context.Context, conn *websocket.Connection, env *types.Envelope) {
	var payload types.StaffUpdatePayload
	if err := env.Decode(&payload); err != nil {
		log.Printf("announcement payload discarded: err=%v", err)
		return
	}

	if len(payload.Tournaments) > 0 {
		eventCode := r.eventCodeFor(conn, env)
		r.dispatcher.BroadcastAll(eventCode, env, nil)
	}
	if payload.Message == "" {
		return
	}

	level := payload.Level
	switch level {
	case types.NotificationInfo, types.NotificationSuccess, types.NotificationWarning, types.NotificationError:
	default:
		level = types.NotificationInfo
	}

	from := string(env.From)
	if from == "" {
		from = types.NotificationFromSystem
	}

	notification := types.Notification{
		ID:        uuid.New().String(),
		Message:   payload.Message,
		Type:      level,
		From:      from,
		Timestamp: time.Now().UTC(),
	}

	eventCode := r.eventCodeFor(conn, env)
	r.states.Room(eventCode).AddNotification(notification)

	if out, err := types.NewEnvelope(types.MessageTypeNotification, notification, "", eventCode); err == nil {
		r.dispatcher.BroadcastAll(eventCode, out, nil)
	}
}

// handleHeartbeat acknowledges the sender only. Heartbeats are a client
// liveness probe; they do not drive server-side eviction.
func (r *Router) handleHeartbeat(ctx context.Context, conn *websocket.Connection, env *types.Envelope) {
	if conn == nil {
		return
	}
	ack, err := types.NewEnvelope(types.MessageTypeHeartbeatAck, types.HeartbeatAckPayload{Time: time.Now().UTC()}, "", env.EventID)
	if err != nil {
		return
	}
	if err := r.dispatcher.SendTo(conn, ack); err != nil {
		log.Printf("heartbeat ack failed: user=%s err=%v", conn.UserName(), err)
	}
}

// handleChatMessage accepts and drops chat. The feature is disabled on
// purpose; accepting the type keeps old clients from tripping the
// unknown-type path.
func (r *Router) handleChatMessage(ctx context.Context, conn *websocket.Connection, env *types.Envelope) {
}

// sendRoleNotification broadcasts a notification envelope to one role
// only. It does not touch room state; role-filtered notices are
// transient.
func (r *Router) sendRoleNotification(eventCode string, role types.Role, notification types.Notification) {
	out, err := types.NewEnvelope(types.MessageTypeNotification, notification, "", eventCode)
	if err != nil {
		return
	}
	r.dispatcher.BroadcastRole(eventCode, role, out)
}

// eventCodeFor resolves the room for a message: the sender's announced
// event wins, then the envelope's eventId, then the default room.
func (r *Router) eventCodeFor(conn *websocket.Connection, env *types.Envelope) string {
	if conn != nil && conn.EventCode() != "" {
		return conn.EventCode()
	}
	return r.states.Normalize(env.EventID)
}
