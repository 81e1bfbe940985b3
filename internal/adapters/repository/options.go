package repository

import (
	"time"

	"github.com/okian/matchpulse/pkg/logger"
)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithMemoryLogger sets the logger of the MemoryStore.
func WithMemoryLogger(l logger.Logger) MemoryOption {
	return func(s *MemoryStore) {
		if l != nil {
			s.log = l
		}
	}
}

// BadgerOption applies a configuration option to the BadgerStore.
type BadgerOption func(*BadgerStore)

// WithBadgerInMemory runs Badger without touching disk.
func WithBadgerInMemory() BadgerOption {
	return func(s *BadgerStore) {
		s.inMemory = true
	}
}

// WithBadgerMaxRetries bounds how often a conflicting transaction is retried.
func WithBadgerMaxRetries(n int) BadgerOption {
	return func(s *BadgerStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithBadgerLogger sets the logger of the BadgerStore.
func WithBadgerLogger(l logger.Logger) BadgerOption {
	return func(s *BadgerStore) {
		if l != nil {
			s.log = l
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresMaxConns caps the pool size.
func WithPostgresMaxConns(n int32) PostgresOption {
	return func(s *PostgresStore) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithPostgresLogger sets the logger of the PostgresStore.
func WithPostgresLogger(l logger.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.log = l
		}
	}
}
