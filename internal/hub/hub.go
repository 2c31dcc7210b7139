package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"stagesync/internal/router"
	"stagesync/internal/websocket"
	"stagesync/pkg/types"
)

// inbound pairs an envelope with the channel it arrived on. conn is nil
// for envelopes injected by the REST surface.
type inbound struct {
	conn     *websocket.Connection
	env      *types.Envelope
	received time.Time
}

// Hub serializes all state mutation onto a single goroutine: every
// inbound envelope and every departure funnels through run, so the
// router and registry never see concurrent writers from the transport
// side.
type Hub struct {
	inboundCh   chan inbound
	departureCh chan *websocket.Connection
	shutdownCh  chan struct{}

	router *router.Router

	running bool
	mu      sync.RWMutex
}

// New builds a hub over the given router. Buffer sizes absorb bursts
// around queue changes without blocking read pumps.
func New(r *router.Router) *Hub {
	return &Hub{
		inboundCh:   make(chan inbound, 1000),
		departureCh: make(chan *websocket.Connection, 100),
		shutdownCh:  make(chan struct{}),
		router:      r,
	}
}

// Start launches the processing goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Printf("hub starting")
	go h.run(ctx)
	return nil
}

// Stop signals the processing goroutine to drain and exit. Idempotent
// once running; an un-started hub reports ErrHubNotRunning.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownCh:
	default:
		close(h.shutdownCh)
	}
	return nil
}

// Dispatch queues an envelope for routing. Implements the transport's
// message sink; conn may be nil for REST-injected envelopes. Never
// blocks: a full queue is an error to the caller, not a stalled pump.
func (h *Hub) Dispatch(conn *websocket.Connection, env *types.Envelope) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.inboundCh <- inbound{conn: conn, env: env, received: time.Now()}:
		return nil
	default:
		return ErrInboundChannelFull
	}
}

// NotifyClosed queues a departure for processing.
func (h *Hub) NotifyClosed(conn *websocket.Connection) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.departureCh <- conn:
		return nil
	default:
		return ErrDepartureChannelFull
	}
}

// run is the single processing loop. Routing failures degrade to log
// lines; nothing here can take the loop down.
func (h *Hub) run(ctx context.Context) {
	defer log.Printf("hub stopped")

	for {
		select {
		case msg := <-h.inboundCh:
			h.router.Route(ctx, msg.conn, msg.env)

		case conn := <-h.departureCh:
			if conn == nil {
				continue
			}
			h.router.HandleDisconnect(ctx, conn)

		case <-h.shutdownCh:
			log.Printf("hub shutdown requested")
			return

		case <-ctx.Done():
			log.Printf("hub context cancelled")
			return
		}
	}
}
