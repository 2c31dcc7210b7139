package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"stagesync/internal/database"
	"stagesync/internal/metrics"
	"stagesync/internal/state"
	"stagesync/internal/websocket"
	"stagesync/pkg/types"
)

type fakeEventStore struct {
	mu      sync.Mutex
	events  map[string]*types.EventRecord
	queues  map[string][]types.QueueItem
	healthy bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		events:  make(map[string]*types.EventRecord),
		queues:  make(map[string][]types.QueueItem),
		healthy: true,
	}
}

func (f *fakeEventStore) CreateEvent(ctx context.Context, event *types.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.events[event.Code]; exists {
		return database.ErrEventCodeTaken
	}
	f.events[event.Code] = event
	return nil
}

func (f *fakeEventStore) GetEvent(ctx context.Context, code string) (*types.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, exists := f.events[code]
	if !exists {
		return nil, database.ErrEventNotFound
	}
	return event, nil
}

func (f *fakeEventStore) ListEvents(ctx context.Context) ([]*types.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.EventRecord
	for _, event := range f.events {
		out = append(out, event)
	}
	return out, nil
}

func (f *fakeEventStore) EndEvent(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event, exists := f.events[code]; exists {
		event.Status = types.EventStatusEnded
	}
	return nil
}

func (f *fakeEventStore) GetQueue(ctx context.Context, eventCode string) ([]types.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queues[eventCode], nil
}

func (f *fakeEventStore) HealthCheck(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.healthy {
		return errors.New("database is down")
	}
	return nil
}

type fakeRegistry struct {
	counts map[string]int
}

func (f *fakeRegistry) Count(eventCode string) int {
	return f.counts[eventCode]
}

func (f *fakeRegistry) Stats() map[string]int {
	total := 0
	for _, n := range f.counts {
		total += n
	}
	return map[string]int{"total_connections": total, "active_events": len(f.counts)}
}

type fakeSink struct {
	mu        sync.Mutex
	envelopes []*types.Envelope
	fail      error
}

func (f *fakeSink) Dispatch(conn *websocket.Connection, env *types.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.envelopes = append(f.envelopes, env)
	return nil
}

func (f *fakeSink) last() *types.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.envelopes) == 0 {
		return nil
	}
	return f.envelopes[len(f.envelopes)-1]
}

type apiFixture struct {
	store  *fakeEventStore
	states *state.Manager
	sink   *fakeSink
	server *Server
}

func newAPIFixture() *apiFixture {
	f := &apiFixture{
		store:  newFakeEventStore(),
		states: state.NewManager("lobby"),
		sink:   &fakeSink{},
	}
	registry := &fakeRegistry{counts: map[string]int{"friday": 3}}
	f.server = NewServer(f.store, f.states, registry, f.sink, metrics.New())
	return f
}

func (f *apiFixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestServer_CreateEvent(t *testing.T) {
	f := newAPIFixture()

	rec := f.request(t, http.MethodPost, "/api/events", CreateEventRequest{
		Code: "friday", Name: "Friday Karaoke",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp EventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.Event.Code != "friday" || resp.Event.Status != types.EventStatusActive {
		t.Errorf("event = %+v", resp.Event)
	}
	if resp.Event.ID == "" {
		t.Error("event id must be assigned")
	}
}

func TestServer_CreateEventValidation(t *testing.T) {
	f := newAPIFixture()

	tests := []struct {
		name string
		req  CreateEventRequest
		want int
	}{
		{"missing name", CreateEventRequest{Code: "friday"}, http.StatusBadRequest},
		{"bad code", CreateEventRequest{Code: "no spaces", Name: "x"}, http.StatusBadRequest},
		{"missing code", CreateEventRequest{Name: "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.request(t, http.MethodPost, "/api/events", tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestServer_CreateEventDuplicateCode(t *testing.T) {
	f := newAPIFixture()

	first := f.request(t, http.MethodPost, "/api/events", CreateEventRequest{Code: "friday", Name: "x"})
	if first.Code != http.StatusCreated {
		t.Fatalf("first create = %d", first.Code)
	}
	second := f.request(t, http.MethodPost, "/api/events", CreateEventRequest{Code: "friday", Name: "y"})
	if second.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", second.Code)
	}
}

func TestServer_GetEvent(t *testing.T) {
	f := newAPIFixture()
	f.request(t, http.MethodPost, "/api/events", CreateEventRequest{Code: "friday", Name: "x"})

	rec := f.request(t, http.MethodGet, "/api/events/friday", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp EventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.ConnectedUsers != 3 {
		t.Errorf("connected = %d, want 3 from registry", resp.ConnectedUsers)
	}

	if rec := f.request(t, http.MethodGet, "/api/events/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing event = %d, want 404", rec.Code)
	}
	if rec := f.request(t, http.MethodGet, "/api/events/bad%20code", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad code = %d, want 400", rec.Code)
	}
}

func TestServer_ListEventsIncludesConnectionCounts(t *testing.T) {
	f := newAPIFixture()
	f.request(t, http.MethodPost, "/api/events", CreateEventRequest{Code: "friday", Name: "x"})

	rec := f.request(t, http.MethodGet, "/api/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ListEventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].ConnectedUsers != 3 {
		t.Errorf("events = %+v", resp.Events)
	}
}

func TestServer_GetQueuePrefersLiveState(t *testing.T) {
	f := newAPIFixture()

	f.states.Room("friday").AddQueueItem(types.QueueItem{
		ID: "live-1", Status: types.StatusPending, Players: []string{"carol"}, Song: "Live Song",
	})
	f.store.queues["friday"] = []types.QueueItem{
		{ID: "stored-1", Status: types.StatusPending, Players: []string{"old"}, Song: "Stored Song"},
	}

	rec := f.request(t, http.MethodGet, "/api/events/friday/queue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp QueueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(resp.Queue) != 1 || resp.Queue[0].ID != "live-1" {
		t.Errorf("queue = %+v, want the live item", resp.Queue)
	}
}

func TestServer_GetQueueFallsBackToStore(t *testing.T) {
	f := newAPIFixture()
	f.store.queues["friday"] = []types.QueueItem{
		{ID: "stored-1", Status: types.StatusPending, Players: []string{"carol"}, Song: "Stored Song"},
	}

	rec := f.request(t, http.MethodGet, "/api/events/friday/queue", nil)
	var resp QueueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(resp.Queue) != 1 || resp.Queue[0].ID != "stored-1" {
		t.Errorf("queue = %+v, want the stored item", resp.Queue)
	}
}

func TestServer_GetQueueEmptyIsArray(t *testing.T) {
	f := newAPIFixture()

	rec := f.request(t, http.MethodGet, "/api/events/friday/queue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"queue":[]`)) {
		t.Errorf("body = %s, want empty array not null", rec.Body.String())
	}
}

func TestServer_PatchQueueInjectsUpdate(t *testing.T) {
	f := newAPIFixture()

	rec := f.request(t, http.MethodPatch, "/api/events/friday/queue", PatchQueueRequest{
		ID: "item-1", Status: types.StatusPlaying, Player: "carol",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	env := f.sink.last()
	if env == nil {
		t.Fatal("no envelope reached the sink")
	}
	if env.Type != types.MessageTypeQueueUpdate {
		t.Errorf("type = %q, want QUEUE_UPDATE", env.Type)
	}
	if env.EventID != "friday" {
		t.Errorf("eventId = %q, want friday", env.EventID)
	}
	var payload types.QueueUpdatePayload
	if err := env.Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.ID != "item-1" || payload.Status != types.StatusPlaying || payload.Player != "carol" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestServer_PatchQueueValidation(t *testing.T) {
	f := newAPIFixture()

	if rec := f.request(t, http.MethodPatch, "/api/events/friday/queue", PatchQueueRequest{
		Status: types.StatusPlaying,
	}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id = %d, want 400", rec.Code)
	}
	if rec := f.request(t, http.MethodPatch, "/api/events/friday/queue", PatchQueueRequest{
		ID: "item-1", Status: types.QueueStatus("vanished"),
	}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", rec.Code)
	}
}

func TestServer_PatchQueuePipelineDown(t *testing.T) {
	f := newAPIFixture()
	f.sink.fail = errors.New("hub is not running")

	rec := f.request(t, http.MethodPatch, "/api/events/friday/queue", PatchQueueRequest{
		ID: "item-1", Status: types.StatusPlaying,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestServer_EndEvent(t *testing.T) {
	f := newAPIFixture()
	f.request(t, http.MethodPost, "/api/events", CreateEventRequest{Code: "friday", Name: "x"})

	rec := f.request(t, http.MethodDelete, "/api/events/friday", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.store.events["friday"].Status != types.EventStatusEnded {
		t.Error("event must be marked ended")
	}

	env := f.sink.last()
	if env == nil || env.Type != types.MessageTypeAdminAnnouncement {
		t.Errorf("clients must hear about the ending, got %+v", env)
	}

	if rec := f.request(t, http.MethodDelete, "/api/events/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing event = %d, want 404", rec.Code)
	}
}

func TestServer_HealthCheck(t *testing.T) {
	f := newAPIFixture()

	rec := f.request(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.Status != "healthy" || resp.Database != "healthy" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Connections["total_connections"] != 3 {
		t.Errorf("connections = %+v", resp.Connections)
	}

	f.store.mu.Lock()
	f.store.healthy = false
	f.store.mu.Unlock()

	rec = f.request(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	f := newAPIFixture()

	if rec := f.request(t, http.MethodPut, "/api/events", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/events = %d, want 405", rec.Code)
	}
	if rec := f.request(t, http.MethodPost, "/api/events/friday/queue", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST queue = %d, want 405", rec.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	f := newAPIFixture()

	rec := f.request(t, http.MethodOptions, "/api/events", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("preflight = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q", got)
	}
}
