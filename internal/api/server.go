package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"stagesync/internal/database"
	"stagesync/internal/metrics"
	"stagesync/internal/state"
	"stagesync/internal/websocket"
	"stagesync/pkg/types"
)

// EventStore is the slice of the database layer the API needs.
type EventStore interface {
	CreateEvent(ctx context.Context, event *types.EventRecord) error
	GetEvent(ctx context.Context, code string) (*types.EventRecord, error)
	ListEvents(ctx context.Context) ([]*types.EventRecord, error)
	EndEvent(ctx context.Context, code string) error
	GetQueue(ctx context.Context, eventCode string) ([]types.QueueItem, error)
	HealthCheck(ctx context.Context) error
}

// Registry exposes connection statistics without coupling to the full
// registry implementation.
type Registry interface {
	Count(eventCode string) int
	Stats() map[string]int
}

// Sink injects envelopes into the message pipeline. REST mutations go
// through the same path as client messages so every connected client
// sees them.
type Sink interface {
	Dispatch(conn *websocket.Connection, env *types.Envelope) error
}

// Server is the REST surface: event lifecycle, queue reads and
// staff-console queue mutations. No business logic lives here; queue
// changes are forwarded to the hub.
type Server struct {
	store    EventStore
	states   *state.Manager
	registry Registry
	sink     Sink
	metrics  *metrics.Metrics
	router   *http.ServeMux
}

func NewServer(store EventStore, states *state.Manager, registry Registry, sink Sink, m *metrics.Metrics) *Server {
	s := &Server{
		store:    store,
		states:   states,
		registry: registry,
		sink:     sink,
		metrics:  m,
		router:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/events", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleEvents))))
	s.router.Handle("/api/events/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleEventByCode))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createEvent(w, r)
	case http.MethodGet:
		s.listEvents(w, r)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleEventByCode splits /api/events/{code} and the nested
// /api/events/{code}/queue resource.
func (s *Server) handleEventByCode(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/events/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.sendError(w, "Event code required", http.StatusBadRequest)
		return
	}
	code := parts[0]
	if !types.IsValidEventCode(code) {
		s.sendError(w, "Invalid event code", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 && parts[1] == "queue" {
		switch r.Method {
		case http.MethodGet:
			s.getQueue(w, r, code)
		case http.MethodPatch:
			s.patchQueue(w, r, code)
		default:
			s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}
	if len(parts) != 1 {
		s.sendError(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getEvent(w, r, code)
	case http.MethodDelete:
		s.endEvent(w, r, code)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type CreateEventRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type EventResponse struct {
	Event          *types.EventRecord `json:"event"`
	ConnectedUsers int                `json:"connected_users"`
}

type ListEventsResponse struct {
	Events []EventWithConnections `json:"events"`
}

type EventWithConnections struct {
	*types.EventRecord
	ConnectedUsers int `json:"connected_users"`
}

type QueueResponse struct {
	Event string            `json:"event"`
	Queue []types.QueueItem `json:"queue"`
}

type PatchQueueRequest struct {
	ID     string            `json:"id"`
	Status types.QueueStatus `json:"status"`
	Player string            `json:"player,omitempty"`
}

type HealthResponse struct {
	Status      string           `json:"status"`
	Timestamp   time.Time        `json:"timestamp"`
	Database    string           `json:"database"`
	Connections map[string]int   `json:"connections"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POST /api/events
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	event := &types.EventRecord{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Name:      req.Name,
		Status:    types.EventStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateEvent(r.Context(), event); err != nil {
		if err == database.ErrEventCodeTaken {
			s.sendError(w, "Event code already in use", http.StatusConflict)
		} else {
			s.sendError(w, "Failed to create event", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(EventResponse{Event: event})
}

// GET /api/events
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		s.sendError(w, "Failed to list events", http.StatusInternalServerError)
		return
	}

	out := make([]EventWithConnections, len(events))
	for i, event := range events {
		out[i] = EventWithConnections{
			EventRecord:    event,
			ConnectedUsers: s.registry.Count(event.Code),
		}
	}
	json.NewEncoder(w).Encode(ListEventsResponse{Events: out})
}

// GET /api/events/{code}
func (s *Server) getEvent(w http.ResponseWriter, r *http.Request, code string) {
	event, err := s.store.GetEvent(r.Context(), code)
	if err != nil {
		if err == database.ErrEventNotFound {
			s.sendError(w, "Event not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get event", http.StatusInternalServerError)
		}
		return
	}

	json.NewEncoder(w).Encode(EventResponse{
		Event:          event,
		ConnectedUsers: s.registry.Count(code),
	})
}

// DELETE /api/events/{code} ends the event. Connected clients hear
// about it through a system announcement on the usual pipeline.
func (s *Server) endEvent(w http.ResponseWriter, r *http.Request, code string) {
	if _, err := s.store.GetEvent(r.Context(), code); err != nil {
		if err == database.ErrEventNotFound {
			s.sendError(w, "Event not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get event", http.StatusInternalServerError)
		}
		return
	}
	if err := s.store.EndEvent(r.Context(), code); err != nil {
		s.sendError(w, "Failed to end event", http.StatusInternalServerError)
		return
	}

	if env, err := types.NewEnvelope(types.MessageTypeAdminAnnouncement, types.AnnouncementPayload{
		Message: "This event has ended",
		Level:   types.NotificationWarning,
	}, "", code); err == nil {
		_ = s.sink.Dispatch(nil, env)
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Event ended"})
}

// GET /api/events/{code}/queue serves the live queue; an empty room
// falls back to the persisted rows so a restart does not blank the
// staff console.
func (s *Server) getQueue(w http.ResponseWriter, r *http.Request, code string) {
	queue := s.states.Room(code).Queue()
	if len(queue) == 0 {
		stored, err := s.store.GetQueue(r.Context(), code)
		if err != nil {
			s.sendError(w, "Failed to get queue", http.StatusInternalServerError)
			return
		}
		queue = stored
	}
	if queue == nil {
		queue = []types.QueueItem{}
	}
	json.NewEncoder(w).Encode(QueueResponse{Event: code, Queue: queue})
}

// PATCH /api/events/{code}/queue injects a status change into the
// message pipeline. The response is 202: the change is applied by the
// hub goroutine and announced over the sockets, not in this request.
func (s *Server) patchQueue(w http.ResponseWriter, r *http.Request, code string) {
	var req PatchQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		s.sendError(w, "Queue item id is required", http.StatusBadRequest)
		return
	}
	if !req.Status.Valid() {
		s.sendError(w, "Invalid queue status", http.StatusBadRequest)
		return
	}

	env, err := types.NewEnvelope(types.MessageTypeQueueUpdate, types.QueueUpdatePayload{
		ID:     req.ID,
		Status: req.Status,
		Player: req.Player,
	}, "", code)
	if err != nil {
		s.sendError(w, "Failed to build update", http.StatusInternalServerError)
		return
	}
	if err := s.sink.Dispatch(nil, env); err != nil {
		s.sendError(w, "Message pipeline unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"message": "Queue update accepted"})
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Database:    dbStatus,
		Connections: s.registry.Stats(),
		Metrics:     s.metrics.GetSnapshot(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
