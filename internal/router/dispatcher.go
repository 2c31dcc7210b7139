package router

import (
	"encoding/json"
	"log"

	"stagesync/internal/metrics"
	"stagesync/internal/websocket"
	"stagesync/pkg/types"
)

// Dispatcher delivers one logical message to every matching open
// channel, at most once each. Serialization happens once per call and
// the bytes are reused for every recipient. A channel whose liveness
// check fails is silently skipped; removal only ever happens through
// the close callback.
type Dispatcher struct {
	registry *websocket.Registry
	metrics  *metrics.Metrics
}

// NewDispatcher creates a dispatcher over the given registry. metrics
// may be nil.
func NewDispatcher(registry *websocket.Registry, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, metrics: m}
}

// BroadcastAll sends to every open channel of one event except the
// optional sender.
func (d *Dispatcher) BroadcastAll(eventCode string, env *types.Envelope, exclude *websocket.Connection) {
	d.broadcast(env, func(conn *websocket.Connection, rec websocket.Record) bool {
		return rec.EventCode == eventCode && conn != exclude
	})
}

// BroadcastRole sends only to channels whose record carries the given
// role.
func (d *Dispatcher) BroadcastRole(eventCode string, role types.Role, env *types.Envelope) {
	d.broadcast(env, func(conn *websocket.Connection, rec websocket.Record) bool {
		return rec.EventCode == eventCode && rec.Role == role
	})
}

// BroadcastUser sends to every channel announcing the given user name.
// Identities are not unique, so this is plural delivery by design.
func (d *Dispatcher) BroadcastUser(eventCode, userName string, env *types.Envelope) {
	d.broadcast(env, func(conn *websocket.Connection, rec websocket.Record) bool {
		return rec.EventCode == eventCode && rec.UserName == userName
	})
}

// SendTo delivers an envelope to a single connection, marshaling once.
func (d *Dispatcher) SendTo(conn *websocket.Connection, env *types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := conn.Write(data); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.IncrementMessagesSent()
	}
	return nil
}

func (d *Dispatcher) broadcast(env *types.Envelope, match func(*websocket.Connection, websocket.Record) bool) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("broadcast marshal failed: type=%s err=%v", env.Type, err)
		return
	}

	d.registry.ForEach(nil, func(conn *websocket.Connection, rec websocket.Record) {
		if !match(conn, rec) {
			return
		}
		if !conn.IsAlive() {
			return
		}
		if err := conn.Write(data); err != nil {
			// At-most-once, best effort: skip and move on.
			log.Printf("broadcast write skipped: user=%s type=%s err=%v", rec.UserName, env.Type, err)
			if d.metrics != nil {
				d.metrics.IncrementBroadcastErrors()
			}
			return
		}
		if d.metrics != nil {
			d.metrics.IncrementMessagesSent()
		}
	})
}
