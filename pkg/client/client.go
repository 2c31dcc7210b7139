// Package client is the Go SDK for a stagesync server: one WebSocket
// connection with automatic reconnection, a reducer-backed state store
// and a per-type listener registry.
package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stagesync/pkg/types"
)

// Connection states.
const (
	stateDisconnected = iota
	stateConnecting
	stateConnected
)

// Config holds connection parameters. Zero retry/delay fields get the
// defaults: 5 retries, 1s base delay, 30s cap.
type Config struct {
	ServerURL  string // ws endpoint, e.g. "ws://localhost:8080/ws"
	Name       string
	Role       types.Role
	EventCode  string
	Token      string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client maintains one connection to the server. All inbound envelopes
// feed the store first, then any listeners registered for their type.
type Client struct {
	cfg       Config
	store     *Store
	listeners *listenerRegistry

	mu       sync.Mutex
	conn     *websocket.Conn
	state    int
	attempts int
	closed   bool
	timer    *time.Timer
}

// New validates the configuration and returns an unconnected client.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%w: server URL is required", ErrInvalidConfig)
	}
	if !types.IsValidUserName(cfg.Name) {
		return nil, fmt.Errorf("%w: invalid user name %q", ErrInvalidConfig, cfg.Name)
	}
	if !cfg.Role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", ErrInvalidConfig, cfg.Role)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}

	return &Client{
		cfg:       cfg,
		store:     NewStore(),
		listeners: newListenerRegistry(),
	}, nil
}

// Connect dials the server. A no-op when a connection is already open
// or being opened; an error when the client has been closed. A failed
// dial schedules a retry on the usual backoff.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if c.state != stateDisconnected {
		return nil
	}
	c.state = stateConnecting

	conn, _, err := websocket.DefaultDialer.Dial(c.dialURL(), nil)
	if err != nil {
		c.state = stateDisconnected
		log.Printf("dial failed: url=%s err=%v", c.cfg.ServerURL, err)
		c.scheduleReconnectLocked()
		return err
	}

	c.conn = conn
	c.state = stateConnected
	c.attempts = 0
	c.store.Dispatch(SetConnected{Connected: true})
	log.Printf("connected: user=%s event=%s", c.cfg.Name, c.cfg.EventCode)

	go c.readLoop(conn)

	// Announce ourselves so the server registers the channel and
	// replies with the room snapshot.
	if err := c.writeLocked(types.MessageTypeUserConnect, types.ConnectPayload{
		Name:  c.cfg.Name,
		Role:  c.cfg.Role,
		Event: c.cfg.EventCode,
	}); err != nil {
		log.Printf("user connect announcement failed: err=%v", err)
	}
	return nil
}

// Send marshals an envelope and writes it. While disconnected the
// message is dropped: a warning is logged, a reconnect is triggered and
// ErrNotConnected returned. Nothing is queued for later.
func (c *Client) Send(msgType string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if c.state != stateConnected {
		log.Printf("send while disconnected, message dropped: type=%s", msgType)
		go func() { _ = c.Connect() }()
		return ErrNotConnected
	}
	return c.writeLocked(msgType, payload)
}

// On registers a callback for an exact message type string.
func (c *Client) On(msgType string, cb Listener) {
	c.listeners.add(msgType, cb)
}

// Off removes a previously registered callback. Unknown callbacks are
// a no-op.
func (c *Client) Off(msgType string, cb Listener) {
	c.listeners.remove(msgType, cb)
}

// State returns the current reduced snapshot.
func (c *Client) State() State {
	return c.store.Snapshot()
}

// IsConnected reports whether the transport is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

// Close shuts the client down for good: no reconnection follows.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = stateDisconnected
	c.store.Dispatch(SetConnected{Connected: false})
	return nil
}

func (c *Client) dialURL() string {
	q := url.Values{}
	q.Set("name", c.cfg.Name)
	q.Set("role", string(c.cfg.Role))
	q.Set("event", c.cfg.EventCode)
	q.Set("token", c.cfg.Token)
	return c.cfg.ServerURL + "?" + q.Encode()
}

// writeLocked marshals and writes one envelope. Caller holds c.mu,
// which also serializes writers on the socket.
func (c *Client) writeLocked(msgType string, payload interface{}) error {
	env, err := types.NewEnvelope(msgType, payload, c.cfg.Role, c.cfg.EventCode)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop consumes server envelopes until the transport errors, then
// hands off to the close path, which owns reconnection.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn)
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("malformed server message discarded: err=%v", err)
			continue
		}

		c.store.Apply(&env)
		c.listeners.invoke(&env)
	}
}

// handleClose marks the transport down and schedules a reconnect while
// attempts remain.
func (c *Client) handleClose(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn != c.conn {
		return // a stale read loop, already superseded
	}
	_ = c.conn.Close()
	c.conn = nil
	c.state = stateDisconnected
	c.store.Dispatch(SetConnected{Connected: false})

	if c.closed {
		return
	}
	log.Printf("connection lost: user=%s", c.cfg.Name)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.attempts >= c.cfg.MaxRetries {
		log.Printf("reconnect attempts exhausted: attempts=%d", c.attempts)
		return
	}

	delay := backoffDelay(c.attempts, c.cfg.BaseDelay, c.cfg.MaxDelay)
	c.attempts++
	log.Printf("reconnecting: attempt=%d delay=%s", c.attempts, delay)

	c.timer = time.AfterFunc(delay, func() {
		_ = c.Connect()
	})
}

// backoffDelay doubles the base delay per attempt up to the cap:
// 1s, 2s, 4s, 8s, 16s with the defaults.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
