package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/pkg/logger"
	"github.com/okian/matchpulse/pkg/metrics"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists state in PostgreSQL through a pgx connection pool.
// Event dedup relies on the unique event_id constraint and match updates use
// optimistic version checks, so concurrent units of work never lose writes.
type PostgresStore struct {
	pool     *pgxpool.Pool
	maxConns int32
	log      logger.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("postgres_store")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if s.maxConns > 0 {
		cfg.MaxConns = s.maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	s.pool = pool

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	s.log.Info(ctx, "postgres schema applied")
	return nil
}

// Kind implements Store.
func (s *PostgresStore) Kind() string { return KindPostgres }

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "select 1").Scan(&one)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// RunInTx implements Store.
func (s *PostgresStore) RunInTx(ctx context.Context, fn TxFunc) error {
	start := time.Now()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgRepos{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	metrics.RecordStoreUpdateLatency(KindPostgres, float64(time.Since(start).Microseconds())/1000)
	return nil
}

func (s *PostgresStore) direct() *pgRepos { return &pgRepos{q: s.pool} }

func (s *PostgresStore) observeQuery(start time.Time) {
	metrics.RecordStoreQueryLatency(KindPostgres, float64(time.Since(start).Microseconds())/1000)
}

// CreateMatch implements MatchRepository.
func (s *PostgresStore) CreateMatch(ctx context.Context, m model.Match) error {
	return s.direct().CreateMatch(ctx, m)
}

// GetMatch implements MatchRepository.
func (s *PostgresStore) GetMatch(ctx context.Context, matchID string) (model.Match, error) {
	defer s.observeQuery(time.Now())
	return s.direct().GetMatch(ctx, matchID)
}

// SaveMatch implements MatchRepository.
func (s *PostgresStore) SaveMatch(ctx context.Context, m model.Match) error {
	return s.direct().SaveMatch(ctx, m)
}

// AddEventIfNew implements EventRepository.
func (s *PostgresStore) AddEventIfNew(ctx context.Context, e model.Event) (bool, error) {
	return s.direct().AddEventIfNew(ctx, e)
}

// ListEventsInWindow implements EventRepository.
func (s *PostgresStore) ListEventsInWindow(ctx context.Context, matchID string, end model.MatchClock, w model.RollingWindow) ([]model.Event, error) {
	defer s.observeQuery(time.Now())
	return s.direct().ListEventsInWindow(ctx, matchID, end, w)
}

// ListRecentEvents implements EventRepository.
func (s *PostgresStore) ListRecentEvents(ctx context.Context, matchID string, limit int) ([]model.Event, error) {
	defer s.observeQuery(time.Now())
	return s.direct().ListRecentEvents(ctx, matchID, limit)
}

// SaveSnapshot implements AnalyticsRepository.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap model.AnalyticsSnapshot) error {
	return s.direct().SaveSnapshot(ctx, snap)
}

// GetLatestSnapshot implements AnalyticsRepository.
func (s *PostgresStore) GetLatestSnapshot(ctx context.Context, matchID string) (model.AnalyticsSnapshot, error) {
	defer s.observeQuery(time.Now())
	return s.direct().GetLatestSnapshot(ctx, matchID)
}

// ListRecentSnapshots implements AnalyticsRepository.
func (s *PostgresStore) ListRecentSnapshots(ctx context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error) {
	defer s.observeQuery(time.Now())
	return s.direct().ListRecentSnapshots(ctx, matchID, limit)
}

// pgRepos implements Repositories over a pool or a transaction.
type pgRepos struct {
	q querier
}

const matchColumns = `match_id, home_team, away_team, status, period, minute, second,
	home_score, away_score, home_red_cards, away_red_cards, version`

const eventColumns = `event_id, match_id, provider_name, provider_event_id, period, minute, second,
	team_side, event_type, payload, ingested_at`

func (r *pgRepos) CreateMatch(ctx context.Context, m model.Match) error {
	tag, err := r.q.Exec(ctx, `INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (match_id) DO NOTHING`,
		m.MatchID, m.HomeTeam, m.AwayTeam, string(m.Status),
		m.Clock.Period, m.Clock.Minute, m.Clock.Second,
		m.Score.Home, m.Score.Away, m.HomeRedCards, m.AwayRedCards, m.Version)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match %q: %w", m.MatchID, ErrConflict)
	}
	return nil
}

func (r *pgRepos) GetMatch(ctx context.Context, matchID string) (model.Match, error) {
	var (
		m      model.Match
		status string
	)
	err := r.q.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE match_id = $1`, matchID).Scan(
		&m.MatchID, &m.HomeTeam, &m.AwayTeam, &status,
		&m.Clock.Period, &m.Clock.Minute, &m.Clock.Second,
		&m.Score.Home, &m.Score.Away, &m.HomeRedCards, &m.AwayRedCards, &m.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Match{}, fmt.Errorf("match %q: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return model.Match{}, fmt.Errorf("select match: %w", err)
	}
	if m.Status, err = model.ParseMatchStatus(status); err != nil {
		return model.Match{}, err
	}
	return m, nil
}

func (r *pgRepos) SaveMatch(ctx context.Context, m model.Match) error {
	tag, err := r.q.Exec(ctx, `UPDATE matches SET
			status = $2, period = $3, minute = $4, second = $5,
			home_score = $6, away_score = $7, home_red_cards = $8, away_red_cards = $9,
			version = $10, updated_at = now()
		WHERE match_id = $1 AND version = $11`,
		m.MatchID, string(m.Status), m.Clock.Period, m.Clock.Minute, m.Clock.Second,
		m.Score.Home, m.Score.Away, m.HomeRedCards, m.AwayRedCards, m.Version, m.Version-1)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	current, err := r.GetMatch(ctx, m.MatchID)
	if err != nil {
		return err
	}
	return fmt.Errorf("match %q: stored version %d, saving %d: %w", m.MatchID, current.Version, m.Version, ErrVersionConflict)
}

func (r *pgRepos) AddEventIfNew(ctx context.Context, e model.Event) (bool, error) {
	payload, err := encodePayload(e.Payload)
	if err != nil {
		return false, err
	}
	var providerEventID *string
	if e.ProviderEventID != "" {
		providerEventID = &e.ProviderEventID
	}
	tag, err := r.q.Exec(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.MatchID, e.Provider(), providerEventID,
		e.Clock.Period, e.Clock.Minute, e.Clock.Second,
		string(e.TeamSide), string(e.EventType), payload, e.IngestedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		var (
			e               model.Event
			providerEventID *string
			side, kind      string
			payload         []byte
		)
		if err := rows.Scan(&e.EventID, &e.MatchID, &e.ProviderName, &providerEventID,
			&e.Clock.Period, &e.Clock.Minute, &e.Clock.Second,
			&side, &kind, &payload, &e.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if providerEventID != nil {
			e.ProviderEventID = *providerEventID
		}
		var err error
		if e.TeamSide, err = model.ParseTeamSide(side); err != nil {
			return nil, err
		}
		if e.EventType, err = model.ParseEventType(kind); err != nil {
			return nil, err
		}
		if e.Payload, err = decodePayload(payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (r *pgRepos) ListEventsInWindow(ctx context.Context, matchID string, end model.MatchClock, w model.RollingWindow) ([]model.Event, error) {
	startSec, endSec := w.Bounds(end)
	rows, err := r.q.Query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE match_id = $1 AND period = $2 AND minute * 60 + second BETWEEN $3 AND $4
		ORDER BY minute, second, id`,
		matchID, end.Period, startSec, endSec)
	if err != nil {
		return nil, fmt.Errorf("select window events: %w", err)
	}
	return scanEvents(rows)
}

func (r *pgRepos) ListRecentEvents(ctx context.Context, matchID string, limit int) ([]model.Event, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, `SELECT `+eventColumns+` FROM (
			SELECT * FROM events WHERE match_id = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`,
		matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent events: %w", err)
	}
	return scanEvents(rows)
}

func (r *pgRepos) SaveSnapshot(ctx context.Context, snap model.AnalyticsSnapshot) error {
	body, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `INSERT INTO analytics_snapshots
			(snapshot_id, match_id, period, minute, second, body, model_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.SnapshotID, snap.MatchID, snap.Clock.Period, snap.Clock.Minute, snap.Clock.Second,
		body, snap.ModelVersion, snap.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *pgRepos) GetLatestSnapshot(ctx context.Context, matchID string) (model.AnalyticsSnapshot, error) {
	snaps, err := r.ListRecentSnapshots(ctx, matchID, 1)
	if err != nil {
		return model.AnalyticsSnapshot{}, err
	}
	if len(snaps) == 0 {
		return model.AnalyticsSnapshot{}, fmt.Errorf("snapshot for %q: %w", matchID, ErrNotFound)
	}
	return snaps[0], nil
}

func (r *pgRepos) ListRecentSnapshots(ctx context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, `SELECT body FROM analytics_snapshots
		WHERE match_id = $1 ORDER BY id DESC LIMIT $2`, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer rows.Close()

	out := []model.AnalyticsSnapshot{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap, err := decodeSnapshot(body)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
