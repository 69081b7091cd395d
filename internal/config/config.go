// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Provide New() to build a Config with defaults, Load(ctx) to layer
//     file and environment sources on top.
//   - External errors must be wrapped via this package's error helpers.
package config

import "time"

// Store backend names accepted by the Store field.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Token authenticates against the chat platform.
	Token string `koanf:"token"`

	// StreamURL is the websocket endpoint producing check-in events.
	StreamURL string `koanf:"stream_url"`

	// APIURL is the web API base used for outbound messages.
	APIURL string `koanf:"api_url"`

	// TriggerWord is the exact message text that counts as a check-in.
	TriggerWord string `koanf:"trigger_word"`

	// ListenChannel names the channel whose messages are scored.
	ListenChannel string `koanf:"listen_channel"`

	// ReportChannel names the channel scoreboards are mirrored to.
	ReportChannel string `koanf:"report_channel"`

	// Store selects the persistence backend: postgres or memory.
	Store string `koanf:"store"`

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `koanf:"database_url"`

	// DBMaxOpenConns and DBMaxIdleConns bound the connection pool.
	DBMaxOpenConns int `koanf:"db_max_open_conns"`
	DBMaxIdleConns int `koanf:"db_max_idle_conns"`

	// QueueSize bounds the in-memory event queue.
	QueueSize int `koanf:"queue_size"`

	// RetryDelay is the fixed wait between reconnect attempts.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// DayLength is the base length of a scoring day.
	DayLength time.Duration `koanf:"day_length"`

	// MaxJitter is the upper bound of the random extension added to each day.
	MaxJitter time.Duration `koanf:"max_jitter"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":9080",
		TriggerWord:    "tally",
		ListenChannel:  "checkins",
		ReportChannel:  "general",
		Store:          StorePostgres,
		DBMaxOpenConns: 10,
		DBMaxIdleConns: 5,
		QueueSize:      1024,
		RetryDelay:     10 * time.Second,
		DayLength:      24 * time.Hour,
		MaxJitter:      15 * time.Minute,
	}
}
