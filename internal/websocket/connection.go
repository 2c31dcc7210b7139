package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stagesync/pkg/types"
)

// Connection wraps a gorilla WebSocket connection with a single writer
// goroutine. Broadcast callers hand pre-serialized bytes to Write; the
// writer goroutine is the only place that touches the underlying socket
// for outbound frames.
type Connection struct {
	conn       *websocket.Conn
	writeCh    chan []byte
	writeWait  time.Duration
	userName   string
	role       types.Role
	eventCode  string
	openedAt   time.Time
	identified bool
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
	mu         sync.RWMutex
}

// NewConnection creates the wrapper and starts its writer goroutine.
// bufferSize bounds the per-connection outbound queue; a full queue
// fails the write instead of stalling the broadcast loop.
func NewConnection(conn *websocket.Conn, bufferSize int, writeWait time.Duration) *Connection {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:      conn,
		writeCh:   make(chan []byte, bufferSize),
		writeWait: writeWait,
		openedAt:  time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	defer func() {
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
	}()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Write queues pre-serialized bytes for delivery. It never blocks: a
// closed connection or a full buffer returns an error so the dispatcher
// can skip this recipient and move on.
func (c *Connection) Write(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrWriteBufferFull
	}
}

// WriteJSON marshals v and queues it. Used for single-recipient replies
// where there is nothing to share a serialization with.
func (c *Connection) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}
	return c.Write(data)
}

// IsAlive reports whether the connection has not been closed. Used as
// the liveness check before a broadcast write.
func (c *Connection) IsAlive() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// Close shuts the connection down exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// SetIdentity attaches the identity announced at connect time. The
// role label is caller-supplied; no further authorization happens here.
func (c *Connection) SetIdentity(userName string, role types.Role, eventCode string) error {
	if !types.IsValidUserName(userName) {
		return types.ErrInvalidUserName
	}
	if !role.Valid() {
		return types.ErrInvalidRole
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.userName = userName
	c.role = role
	c.eventCode = eventCode
	c.identified = true
	return nil
}

// IsIdentified reports whether SetIdentity has run.
func (c *Connection) IsIdentified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identified
}

// UserName returns the announced user name. Names are not unique.
func (c *Connection) UserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userName
}

// Role returns the announced role label.
func (c *Connection) Role() types.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// EventCode returns the event code attached at connect time. The
// handler substitutes the default room code when the client omits one.
func (c *Connection) EventCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventCode
}

// OpenedAt returns when the transport was accepted.
func (c *Connection) OpenedAt() time.Time {
	return c.openedAt
}

// User returns the connection's identity as shared with other clients.
func (c *Connection) User() types.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.User{Name: c.userName, Role: c.role, Event: c.eventCode}
}
