package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings for the combined HTTP + WebSocket listener.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	State     *StateConfig     `json:"state"`
}

// DatabaseConfig configures the sqlite event store.
type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// HTTPConfig configures the shared listener used by both the REST surface
// and the WebSocket endpoint.
type HTTPConfig struct {
	Port         int           `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig tunes per-connection behaviour.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// StateConfig tunes the shared room state.
type StateConfig struct {
	NotificationTTL  time.Duration `json:"notification_ttl"`
	PruneInterval    time.Duration `json:"prune_interval"`
	DefaultEventCode string        `json:"default_event_code"`
}

// DefaultConfig returns production defaults: one listener on 8080, hourly
// notification pruning, 100-message write buffers.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./stagesync.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		State: &StateConfig{
			NotificationTTL:  time.Hour,
			PruneInterval:    time.Hour,
			DefaultEventCode: "lobby",
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.State == nil {
		return fmt.Errorf("state configuration is required")
	}
	if c.State.NotificationTTL <= 0 {
		return fmt.Errorf("notification TTL must be positive")
	}
	if c.State.PruneInterval <= 0 {
		return fmt.Errorf("prune interval must be positive")
	}
	if c.State.DefaultEventCode == "" {
		return fmt.Errorf("default event code cannot be empty")
	}

	return nil
}

// LoadDotEnv loads a .env file when present. Missing files are fine;
// deployed environments set real variables instead.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadFromEnv builds a config from STAGESYNC_* environment variables,
// falling back to defaults for anything unset or unparsable.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("STAGESYNC_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}

	if host := os.Getenv("STAGESYNC_HOST"); host != "" {
		config.HTTP.Host = host
	}

	if dbPath := os.Getenv("STAGESYNC_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if dbTimeout := os.Getenv("STAGESYNC_DATABASE_TIMEOUT"); dbTimeout != "" {
		if timeout, err := time.ParseDuration(dbTimeout); err == nil {
			config.Database.Timeout = timeout
		}
	}

	if readTimeout := os.Getenv("STAGESYNC_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("STAGESYNC_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}

	if pingInterval := os.Getenv("STAGESYNC_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}

	if wsReadTimeout := os.Getenv("STAGESYNC_WEBSOCKET_READ_TIMEOUT"); wsReadTimeout != "" {
		if timeout, err := time.ParseDuration(wsReadTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}

	if wsWriteTimeout := os.Getenv("STAGESYNC_WEBSOCKET_WRITE_TIMEOUT"); wsWriteTimeout != "" {
		if timeout, err := time.ParseDuration(wsWriteTimeout); err == nil {
			config.WebSocket.WriteTimeout = timeout
		}
	}

	if bufferSize := os.Getenv("STAGESYNC_WEBSOCKET_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.WebSocket.BufferSize = size
		}
	}

	if ttl := os.Getenv("STAGESYNC_NOTIFICATION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.State.NotificationTTL = d
		}
	}

	if interval := os.Getenv("STAGESYNC_PRUNE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.State.PruneInterval = d
		}
	}

	if code := os.Getenv("STAGESYNC_DEFAULT_EVENT"); code != "" {
		config.State.DefaultEventCode = code
	}

	return config
}
