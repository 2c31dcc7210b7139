package types

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleAdmin, true},
		{RoleStaff, true},
		{RolePlayer, true},
		{Role("system"), false},
		{Role(""), false},
		{Role("ADMIN"), false},
	}

	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr error
	}{
		{
			name:    "valid envelope",
			env:     Envelope{Type: MessageTypeHeartbeat, From: RolePlayer, Timestamp: time.Now()},
			wantErr: nil,
		},
		{
			name:    "empty type",
			env:     Envelope{From: RolePlayer, Timestamp: time.Now()},
			wantErr: ErrEmptyMessageType,
		},
		{
			name:    "unknown role",
			env:     Envelope{Type: MessageTypeHeartbeat, From: Role("viewer")},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "missing from is allowed for server-originated envelopes",
			env:     Envelope{Type: MessageTypeNotification},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.env.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvelope_PayloadRoundTrip(t *testing.T) {
	original := JoinQueuePayload{
		Player:  "lady_gaga_fan",
		Players: []string{"lady_gaga_fan", "duet_partner"},
		Song:    "Bad Romance",
	}

	env, err := NewEnvelope(MessageTypePlayerJoinQueue, original, RolePlayer, "friday-night")
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}

	// Serialize the whole envelope and parse it back, as the transport does.
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed Envelope
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.Type != MessageTypePlayerJoinQueue {
		t.Errorf("Type = %q, want %q", parsed.Type, MessageTypePlayerJoinQueue)
	}
	if parsed.From != RolePlayer {
		t.Errorf("From = %q, want %q", parsed.From, RolePlayer)
	}
	if parsed.EventID != "friday-night" {
		t.Errorf("EventID = %q, want %q", parsed.EventID, "friday-night")
	}

	var decoded JoinQueuePayload
	if err := parsed.Decode(&decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("payload round trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestEnvelope_DecodeEmptyPayload(t *testing.T) {
	env := Envelope{Type: MessageTypeHeartbeat}
	var p HeartbeatAckPayload
	if err := env.Decode(&p); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("Decode on empty payload = %v, want ErrEmptyPayload", err)
	}
}

func TestQueueStatus_Valid(t *testing.T) {
	valid := []QueueStatus{StatusPending, StatusPlaying, StatusCompleted, StatusSkipped}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("QueueStatus(%q).Valid() = false, want true", s)
		}
	}
	if QueueStatus("paused").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestQueueStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to QueueStatus
		want     bool
	}{
		{StatusPending, StatusPlaying, true},
		{StatusPending, StatusSkipped, true},
		{StatusPending, StatusCompleted, false},
		{StatusPlaying, StatusCompleted, true},
		{StatusPlaying, StatusSkipped, true},
		{StatusPlaying, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusPlaying, false},
		{StatusSkipped, StatusPending, true},
		{StatusSkipped, StatusPlaying, false},
		{StatusPending, QueueStatus("paused"), false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsValidUserName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"alice", true},
		{"dj_mike-42", true},
		{"", false},
		{strings.Repeat("a", 51), false},
		{"bad name", false},
		{"naïve", false},
	}

	for _, tt := range tests {
		if got := IsValidUserName(tt.name); got != tt.want {
			t.Errorf("IsValidUserName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsKnownMessageType(t *testing.T) {
	known := []string{
		MessageTypeUserConnect, MessageTypeInitialState, MessageTypeUserJoined,
		MessageTypeUserLeft, MessageTypeQueueUpdate, MessageTypeQueueUpdated,
		MessageTypeQueueItemAdded, MessageTypeAdminAnnouncement, MessageTypeStaffUpdate,
		MessageTypeNotification, MessageTypePlayerJoinQueue, MessageTypeHeartbeat,
		MessageTypeHeartbeatAck, MessageTypeChatMessage,
	}
	for _, mt := range known {
		if !IsKnownMessageType(mt) {
			t.Errorf("IsKnownMessageType(%q) = false, want true", mt)
		}
	}
	if IsKnownMessageType("TEAM_FORMED") {
		t.Error("uncatalogued type should not be known")
	}
}

func TestEventRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   EventRecord
		wantErr error
	}{
		{
			name:    "valid event",
			event:   EventRecord{Name: "Friday Karaoke", Code: "friday-night"},
			wantErr: nil,
		},
		{
			name:    "empty name",
			event:   EventRecord{Code: "friday-night"},
			wantErr: ErrInvalidEventName,
		},
		{
			name:    "name too long",
			event:   EventRecord{Name: strings.Repeat("a", 201), Code: "friday-night"},
			wantErr: ErrInvalidEventName,
		},
		{
			name:    "bad code",
			event:   EventRecord{Name: "Friday Karaoke", Code: "friday night!"},
			wantErr: ErrInvalidEventCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.event.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
