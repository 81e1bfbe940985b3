// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and MATCHPULSE_ env vars.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Supported store backends.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory, badger or postgres.
	Store string `koanf:"store"`

	// BadgerDir is the data directory of the badger store.
	BadgerDir string `koanf:"badger_dir"`

	// PostgresDSN is the connection string of the postgres store.
	PostgresDSN string `koanf:"postgres_dsn"`

	// PostgresMaxConns caps the postgres connection pool.
	PostgresMaxConns int `koanf:"postgres_max_conns"`

	// QueueSize bounds the live update queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of broadcast workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the recently-accepted event id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxSubscribersTotal and MaxSubscribersPerMatch cap live stream connections.
	MaxSubscribersTotal    int `koanf:"max_subscribers_total"`
	MaxSubscribersPerMatch int `koanf:"max_subscribers_per_match"`

	// SendTimeoutMS bounds each per-subscriber send.
	SendTimeoutMS int `koanf:"send_timeout_ms"`

	// MaxRecentLimit caps the limit query of the recent reads.
	MaxRecentLimit int `koanf:"max_recent_limit"`

	// IngestRateLimit is the number of POST /api/v1/events requests allowed
	// per client IP per IngestRateWindowMS. Zero disables the limit.
	IngestRateLimit    int `koanf:"ingest_rate_limit"`
	IngestRateWindowMS int `koanf:"ingest_rate_window_ms"`

	// IngestMaxAttempts bounds retries of an ingest that lost a version race.
	IngestMaxAttempts int `koanf:"ingest_max_attempts"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":8080",
		Store:                  StoreMemory,
		BadgerDir:              "data/badger",
		PostgresMaxConns:       10,
		QueueSize:              1024,
		WorkerCount:            runtime.NumCPU() * 2,
		DedupeSize:             50_000,
		MaxSubscribersTotal:    100,
		MaxSubscribersPerMatch: 20,
		SendTimeoutMS:          5000,
		MaxRecentLimit:         200,
		IngestRateLimit:        0,
		IngestRateWindowMS:     1000,
		IngestMaxAttempts:      3,
	}
}

// SendTimeout returns SendTimeoutMS as a duration.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMS) * time.Millisecond
}

// IngestRateWindow returns IngestRateWindowMS as a duration.
func (c *Config) IngestRateWindow() time.Duration {
	return time.Duration(c.IngestRateWindowMS) * time.Millisecond
}

// Validate checks field ranges and store-specific requirements.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxSubscribersTotal < 1 || c.MaxSubscribersPerMatch < 1:
		return fmt.Errorf("%w: subscriber limits must be positive", ErrInvalidConfig)
	case c.MaxSubscribersPerMatch > c.MaxSubscribersTotal:
		return fmt.Errorf("%w: max_subscribers_per_match exceeds max_subscribers_total", ErrInvalidConfig)
	case c.SendTimeoutMS < 1:
		return fmt.Errorf("%w: send_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxRecentLimit < 1:
		return fmt.Errorf("%w: max_recent_limit must be positive", ErrInvalidConfig)
	case c.IngestRateLimit < 0:
		return fmt.Errorf("%w: ingest_rate_limit must not be negative", ErrInvalidConfig)
	case c.IngestRateLimit > 0 && c.IngestRateWindowMS < 1:
		return fmt.Errorf("%w: ingest_rate_window_ms must be positive", ErrInvalidConfig)
	case c.IngestMaxAttempts < 1:
		return fmt.Errorf("%w: ingest_max_attempts must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	switch c.Store {
	case StoreMemory:
	case StoreBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("%w: badger_dir is required for the badger store", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	return nil
}
