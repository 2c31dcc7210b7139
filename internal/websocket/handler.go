package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"stagesync/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering belongs to the deployment's proxy layer.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// MessageSink receives parsed inbound envelopes and close notifications.
// Implemented by the hub; kept as an interface so the handler can be
// tested without one.
type MessageSink interface {
	Dispatch(conn *Connection, env *types.Envelope) error
	NotifyClosed(conn *Connection) error
}

// TokenValidator checks the bearer token from the connect URL. Token
// issuance and real authorization live in an external collaborator; the
// default implementation only requires the token to be present.
type TokenValidator interface {
	ValidateToken(token string) error
}

// TokenValidatorFunc adapts a function to the TokenValidator interface.
type TokenValidatorFunc func(token string) error

// ValidateToken implements TokenValidator.
func (f TokenValidatorFunc) ValidateToken(token string) error {
	return f(token)
}

// RequireToken accepts any non-empty token.
func RequireToken() TokenValidator {
	return TokenValidatorFunc(func(token string) error {
		if token == "" {
			return ErrMissingToken
		}
		return nil
	})
}

// Options tunes per-connection behaviour from the websocket config
// section. DefaultEventCode is attached to connections that omit the
// event parameter so the registry and the state manager share one
// keyspace.
type Options struct {
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	BufferSize       int
	DefaultEventCode string
}

// Handler accepts WebSocket upgrade requests, attaches the identity
// from the query parameters, and pumps inbound frames into the sink.
type Handler struct {
	sink      MessageSink
	validator TokenValidator
	opts      Options
}

// NewHandler creates a handler delivering to sink. A nil validator
// falls back to RequireToken.
func NewHandler(sink MessageSink, validator TokenValidator, opts Options) *Handler {
	if validator == nil {
		validator = RequireToken()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.DefaultEventCode == "" {
		opts.DefaultEventCode = "lobby"
	}
	return &Handler{sink: sink, validator: validator, opts: opts}
}

// HandleWebSocket upgrades the request and runs the connection until
// the channel closes. Identity comes from the name, role, event and
// token query parameters; the event parameter is optional.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	role := types.Role(r.URL.Query().Get("role"))
	eventCode := r.URL.Query().Get("event")
	token := r.URL.Query().Get("token")

	if !types.IsValidUserName(name) {
		http.Error(w, "invalid or missing name parameter", http.StatusBadRequest)
		return
	}
	if !role.Valid() {
		http.Error(w, "role must be admin, staff or player", http.StatusBadRequest)
		return
	}
	if eventCode == "" {
		eventCode = h.opts.DefaultEventCode
	}
	if !types.IsValidEventCode(eventCode) {
		http.Error(w, "invalid event parameter", http.StatusBadRequest)
		return
	}
	if err := h.validator.ValidateToken(token); err != nil {
		http.Error(w, "token rejected", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.opts.BufferSize, h.opts.WriteTimeout)
	if err := wsConn.SetIdentity(name, role, eventCode); err != nil {
		log.Printf("failed to set identity: %v", err)
		_ = wsConn.Close()
		return
	}

	go h.readPump(wsConn)
}

// readPump reads frames until the transport closes. Malformed payloads
// are logged and dropped; the channel stays open and processing
// continues with the next message.
func (h *Handler) readPump(conn *Connection) {
	defer func() {
		if err := h.sink.NotifyClosed(conn); err != nil {
			log.Printf("close notification dropped: user=%s err=%v", conn.UserName(), err)
		}
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		log.Printf("failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: user=%s err=%v", conn.UserName(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("malformed envelope discarded: user=%s err=%v", conn.UserName(), err)
			continue
		}
		if err := env.Validate(); err != nil {
			log.Printf("invalid envelope discarded: user=%s err=%v", conn.UserName(), err)
			continue
		}

		if err := h.sink.Dispatch(conn, &env); err != nil {
			log.Printf("inbound message dropped: user=%s type=%s err=%v", conn.UserName(), env.Type, err)
		}
	}
}
