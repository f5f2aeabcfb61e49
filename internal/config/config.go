package config

import "time"

// Config holds client configuration values.
type Config struct {
	RelayURL string `mapstructure:"relay_url" yaml:"relay_url"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	HTTP  HTTPConfig  `mapstructure:"http" yaml:"http"`
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// DefaultTopic is joined on startup when set.
	DefaultTopic    string `mapstructure:"default_topic" yaml:"default_topic"`
	DefaultRoomName string `mapstructure:"default_room_name" yaml:"default_room_name"`

	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff" yaml:"reconnect_backoff"`
	PublishTimeout   time.Duration `mapstructure:"publish_timeout" yaml:"publish_timeout"`
	TypingTTL        time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	TypingThrottle   time.Duration `mapstructure:"typing_throttle" yaml:"typing_throttle"`
	ReadReceiptDelay time.Duration `mapstructure:"read_receipt_delay" yaml:"read_receipt_delay"`
}

// HTTPConfig configures the local presentation API.
type HTTPConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig selects the local persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // sqlite or pebble
	Path    string `mapstructure:"path" yaml:"path"`
}

const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		RelayURL: "https://ntfy.sh",
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:              "127.0.0.1:8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    "relaychat.db",
		},
		DefaultRoomName:  "Relay Chat",
		ReconnectBackoff: 5 * time.Second,
		PublishTimeout:   10 * time.Second,
		TypingTTL:        3 * time.Second,
		TypingThrottle:   3 * time.Second,
		ReadReceiptDelay: time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.RelayURL != "" {
		c.RelayURL = other.RelayURL
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}
	if other.HTTP.ReadHeaderTimeout != 0 {
		c.HTTP.ReadHeaderTimeout = other.HTTP.ReadHeaderTimeout
	}
	if other.HTTP.ShutdownTimeout != 0 {
		c.HTTP.ShutdownTimeout = other.HTTP.ShutdownTimeout
	}
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.DefaultTopic != "" {
		c.DefaultTopic = other.DefaultTopic
	}
	if other.DefaultRoomName != "" {
		c.DefaultRoomName = other.DefaultRoomName
	}
	if other.ReconnectBackoff != 0 {
		c.ReconnectBackoff = other.ReconnectBackoff
	}
	if other.PublishTimeout != 0 {
		c.PublishTimeout = other.PublishTimeout
	}
	if other.TypingTTL != 0 {
		c.TypingTTL = other.TypingTTL
	}
	if other.TypingThrottle != 0 {
		c.TypingThrottle = other.TypingThrottle
	}
	if other.ReadReceiptDelay != 0 {
		c.ReadReceiptDelay = other.ReadReceiptDelay
	}
}
