package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"stagesync/internal/api"
	"stagesync/internal/config"
	"stagesync/internal/database"
	"stagesync/internal/hub"
	"stagesync/internal/metrics"
	"stagesync/internal/router"
	"stagesync/internal/state"
	"stagesync/internal/websocket"
)

// Application wires all components together. Initialization order is
// strict: store first, then state, then the message pipeline, finally
// the HTTP surfaces.
type Application struct {
	config     *config.Config
	store      *database.Store
	states     *state.Manager
	registry   *websocket.Registry
	metrics    *metrics.Metrics
	messageHub *hub.Hub
	httpServer *http.Server

	pruneCancel context.CancelFunc
}

// New builds the full component graph from configuration.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}

	states := state.NewManager(cfg.State.DefaultEventCode)
	registry := websocket.NewRegistry()
	m := metrics.New()

	dispatcher := router.NewDispatcher(registry, m)
	messageRouter := router.NewRouter(registry, states, dispatcher, store, m)
	messageHub := hub.New(messageRouter)

	apiServer := api.NewServer(store, states, registry, messageHub, m)
	wsHandler := websocket.NewHandler(messageHub, websocket.RequireToken(), websocket.Options{
		PingInterval:     cfg.WebSocket.PingInterval,
		ReadTimeout:      cfg.WebSocket.ReadTimeout,
		WriteTimeout:     cfg.WebSocket.WriteTimeout,
		BufferSize:       cfg.WebSocket.BufferSize,
		DefaultEventCode: cfg.State.DefaultEventCode,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      store,
		states:     states,
		registry:   registry,
		metrics:    m,
		messageHub: messageHub,
		httpServer: httpServer,
	}, nil
}

// Start brings the system up: hub first so messages can flow, then the
// notification pruner, then the HTTP listener.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("starting stagesync: addr=%s", app.httpServer.Addr)

	if err := app.messageHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message hub: %w", err)
	}

	pruneCtx, cancel := context.WithCancel(ctx)
	app.pruneCancel = cancel
	app.states.StartPruning(pruneCtx, app.config.State.PruneInterval, app.config.State.NotificationTTL)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.pruneCancel()
		_ = app.messageHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("stagesync started")
		return nil
	case <-ctx.Done():
		app.pruneCancel()
		_ = app.messageHub.Stop()
		return ctx.Err()
	}
}

// Stop tears components down in reverse order: listener, pruner, hub,
// store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("shutting down stagesync")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown error: err=%v", err)
	}
	if app.pruneCancel != nil {
		app.pruneCancel()
	}
	if err := app.messageHub.Stop(); err != nil && err != hub.ErrHubNotRunning {
		log.Printf("message hub shutdown error: err=%v", err)
	}
	if err := app.store.Close(); err != nil {
		log.Printf("event store shutdown error: err=%v", err)
	}

	log.Printf("stagesync shutdown complete")
	return nil
}

// Addr returns the listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
