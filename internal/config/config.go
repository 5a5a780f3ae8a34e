package config

import (
	"errors"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// API configuration
	API APIConfig `json:"api"`

	// Sync behavior
	Sync SyncConfig `json:"sync"`

	// Logging
	Log LogConfig `json:"log"`
}

// APIConfig for server communication.
type APIConfig struct {
	BaseURL   string        `json:"base_url"`
	HubURL    string        `json:"hub_url"` // push notification endpoint, derived from BaseURL if empty
	Timeout   time.Duration `json:"timeout"`
	UserAgent string        `json:"user_agent"`
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	LocalRetryAttempts int           `json:"local_retry_attempts"` // bounded retry ceiling for local I/O
	LocalRetryDelay    time.Duration `json:"local_retry_delay"`    // sleep between local I/O attempts
	EchoWindow         time.Duration `json:"echo_window"`          // ignore watcher echo of own writes/deletes
	ChangeDedupWindow  time.Duration `json:"change_dedup_window"`  // collapse rapid re-change events
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // log file path (empty = stdout)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8080/api/FileTransfer",
			Timeout:   30 * time.Second,
			UserAgent: "foldsync",
		},
		Sync: SyncConfig{
			LocalRetryAttempts: 50,
			LocalRetryDelay:    20 * time.Millisecond,
			EchoWindow:         5 * time.Second,
			ChangeDedupWindow:  3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.Sync.LocalRetryAttempts < 0 {
		return errors.New("sync.local_retry_attempts cannot be negative")
	}

	if c.Sync.EchoWindow <= 0 {
		return errors.New("sync.echo_window must be positive")
	}

	return nil
}
