package config

// Config is the root of the service configuration file.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`

	// Storage configures the short-link persistence layer.
	// If omitted, links live in memory only.
	Storage *StorageConfig `json:"storage,omitempty"`

	Notify   NotifyConfig   `json:"notify"`
	Dispatch DispatchConfig `json:"dispatch"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `json:"addr"` // default ":8080"

	// BaseURL is the public prefix used when rendering short links
	// (e.g. "https://s.example.com"). Defaults to http://<addr>.
	BaseURL string `json:"base_url,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// RatePerSec throttles the JSON API endpoints. 0 disables throttling.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	Burst      int `json:"burst,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the short-link persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/links" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotifyConfig controls the durable message store.
type NotifyConfig struct {
	// Path of the message snapshot file. Default "./data/messages.json".
	Path string `json:"path,omitempty"`

	MaxAge      string `json:"max_age,omitempty"`      // default "168h"
	MaxAttempts int    `json:"max_attempts,omitempty"` // default 10

	BackoffBase   string `json:"backoff_base,omitempty"`   // default "2s"
	BackoffMax    string `json:"backoff_max,omitempty"`    // default "30s"
	PurgeInterval string `json:"purge_interval,omitempty"` // default "60s"
}

// DispatchConfig controls websocket delivery.
type DispatchConfig struct {
	PollInterval string `json:"poll_interval,omitempty"` // default "1s"
	SendRate     int    `json:"send_rate,omitempty"`     // outbound frames per second
}
