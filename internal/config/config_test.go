package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig should not return nil")
	}

	if config.HTTP.Port != 8080 {
		t.Errorf("default port = %d, want 8080", config.HTTP.Port)
	}

	if config.Database.Path == "" {
		t.Error("default database path should not be empty")
	}

	if config.State.NotificationTTL != time.Hour {
		t.Errorf("default notification TTL = %v, want 1h", config.State.NotificationTTL)
	}

	if config.State.PruneInterval != time.Hour {
		t.Errorf("default prune interval = %v, want 1h", config.State.PruneInterval)
	}

	if config.State.DefaultEventCode != "lobby" {
		t.Errorf("default event code = %q, want lobby", config.State.DefaultEventCode)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.HTTP.Port = -1 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero database timeout", func(c *Config) { c.Database.Timeout = 0 }},
		{"nil websocket section", func(c *Config) { c.WebSocket = nil }},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"zero notification TTL", func(c *Config) { c.State.NotificationTTL = 0 }},
		{"empty default event code", func(c *Config) { c.State.DefaultEventCode = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STAGESYNC_PORT", "9090")
	t.Setenv("STAGESYNC_HOST", "127.0.0.1")
	t.Setenv("STAGESYNC_DATABASE_PATH", "/tmp/test.db")
	t.Setenv("STAGESYNC_NOTIFICATION_TTL", "30m")
	t.Setenv("STAGESYNC_DEFAULT_EVENT", "main-stage")

	config := LoadFromEnv()

	if config.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", config.HTTP.Port)
	}
	if config.HTTP.Host != "127.0.0.1" {
		t.Errorf("host = %q, want 127.0.0.1", config.HTTP.Host)
	}
	if config.Database.Path != "/tmp/test.db" {
		t.Errorf("database path = %q, want /tmp/test.db", config.Database.Path)
	}
	if config.State.NotificationTTL != 30*time.Minute {
		t.Errorf("notification TTL = %v, want 30m", config.State.NotificationTTL)
	}
	if config.State.DefaultEventCode != "main-stage" {
		t.Errorf("default event code = %q, want main-stage", config.State.DefaultEventCode)
	}
}

func TestLoadFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("STAGESYNC_PORT", "not-a-number")
	t.Setenv("STAGESYNC_NOTIFICATION_TTL", "soon")

	config := LoadFromEnv()

	if config.HTTP.Port != 8080 {
		t.Errorf("unparsable port should keep default, got %d", config.HTTP.Port)
	}
	if config.State.NotificationTTL != time.Hour {
		t.Errorf("unparsable TTL should keep default, got %v", config.State.NotificationTTL)
	}
}
