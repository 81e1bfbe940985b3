// Package repository defines the persistence contracts of the service and
// their in-memory, BadgerDB and PostgreSQL implementations.
package repository

import (
	"context"

	"github.com/okian/matchpulse/internal/domain/model"
)

// Store names reported in metrics and logs.
const (
	KindMemory   = "memory"
	KindBadger   = "badger"
	KindPostgres = "postgres"
)

// MatchRepository stores match state.
type MatchRepository interface {
	// CreateMatch stores a new match. Returns ErrConflict if the id exists.
	CreateMatch(ctx context.Context, m model.Match) error
	// GetMatch returns ErrNotFound for unknown ids.
	GetMatch(ctx context.Context, matchID string) (model.Match, error)
	// SaveMatch replaces the stored match. The stored version must be
	// m.Version-1, otherwise ErrVersionConflict is returned.
	SaveMatch(ctx context.Context, m model.Match) error
}

// EventRepository stores accepted events.
type EventRepository interface {
	// AddEventIfNew inserts e unless an event with the same EventID exists.
	// Returns true when the event was inserted.
	AddEventIfNew(ctx context.Context, e model.Event) (bool, error)
	// ListEventsInWindow returns the events of matchID inside window w
	// ending at end, ordered by clock and then by insertion order.
	ListEventsInWindow(ctx context.Context, matchID string, end model.MatchClock, w model.RollingWindow) ([]model.Event, error)
	// ListRecentEvents returns at most limit of the latest inserted events,
	// oldest first.
	ListRecentEvents(ctx context.Context, matchID string, limit int) ([]model.Event, error)
}

// AnalyticsRepository stores analytics snapshots.
type AnalyticsRepository interface {
	SaveSnapshot(ctx context.Context, s model.AnalyticsSnapshot) error
	// GetLatestSnapshot returns the most recently saved snapshot or
	// ErrNotFound.
	GetLatestSnapshot(ctx context.Context, matchID string) (model.AnalyticsSnapshot, error)
	// ListRecentSnapshots returns at most limit snapshots, newest first.
	ListRecentSnapshots(ctx context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error)
}

// Repositories groups the three repositories a unit of work operates on.
type Repositories interface {
	MatchRepository
	EventRepository
	AnalyticsRepository
}

// TxFunc is a unit of work. Writes made through repos become visible
// together when it returns nil and are discarded when it returns an error.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is a configured persistence backend.
type Store interface {
	Repositories

	// RunInTx runs fn as one atomic unit of work.
	RunInTx(ctx context.Context, fn TxFunc) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Kind returns the backend name.
	Kind() string
	Close() error
}

func validateLimit(limit int) error {
	if limit < 1 {
		return ErrInvalidLimit
	}
	return nil
}
