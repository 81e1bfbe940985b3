// Package service wires the event store, the analytics engine and the live
// stream into the operations exposed by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/matchpulse/internal/adapters/mq/queue"
	workerpool "github.com/okian/matchpulse/internal/adapters/mq/worker"
	"github.com/okian/matchpulse/internal/adapters/repository"
	"github.com/okian/matchpulse/internal/adapters/stream"
	"github.com/okian/matchpulse/internal/domain/analytics"
	"github.com/okian/matchpulse/internal/domain/dedupe"
	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/pkg/logger"
	"github.com/okian/matchpulse/pkg/metrics"
)

// Default service configuration.
const (
	defaultQueueSize       = 1024
	defaultDedupeSize      = 50_000
	defaultMaxRecentLimit  = 200
	defaultMaxAttempts     = 3
	defaultShutdownTimeout = 10 * time.Second
)

// IngestResult is the outcome of one ingest call.
type IngestResult struct {
	// Accepted is false only when the match is unknown.
	Accepted bool
	// Deduplicated is true when the event id was already stored.
	Deduplicated bool
	Match        model.Match
	// Snapshot is the latest snapshot; nil when none exists yet.
	Snapshot *model.AnalyticsSnapshot
}

// Service implements the API dependencies for match analytics.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  repository.Store
	hub    *stream.Hub
	engine *analytics.Engine
	recent dedupe.Deduper
	queue  *eventqueue.InMemoryQueue
	pool   *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	maxRecentLimit int
	maxAttempts    int

	started bool

	logger logger.Logger
}

// New constructs a new Service. Components not supplied through options are
// created with defaults on Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		maxRecentLimit: defaultMaxRecentLimit,
		maxAttempts:    defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting match analytics service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
	}
	if s.hub == nil {
		s.hub = stream.NewHub()
	}
	if s.engine == nil {
		s.engine = analytics.NewEngine()
	}
	s.recent = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.hub)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "match analytics service started",
		logger.String("store", s.store.Kind()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains pending broadcasts, closes every subscriber and the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping match analytics service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "broadcast workers did not drain", logger.Error(err))
		s.pool.Stop()
	}
	s.hub.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "match analytics service stopped")
}

// Hub returns the live stream hub.
func (s *Service) Hub() *stream.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

func (s *Service) running() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Ready reports whether the store answers.
func (s *Service) Ready(ctx context.Context) error {
	store, err := s.running()
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("%s store: %w", store.Kind(), err)
	}
	return nil
}

// CreateMatch registers a SCHEDULED match.
func (s *Service) CreateMatch(ctx context.Context, matchID, homeTeam, awayTeam string) (model.Match, error) {
	store, err := s.running()
	if err != nil {
		return model.Match{}, err
	}
	if matchID == "" || homeTeam == "" || awayTeam == "" {
		return model.Match{}, fmt.Errorf("%w: match id and team names are required", model.ErrValidation)
	}

	m := model.NewMatch(matchID, homeTeam, awayTeam)
	if err := store.CreateMatch(ctx, m); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Match{}, fmt.Errorf("%w: %s", ErrMatchExists, matchID)
		}
		return model.Match{}, fmt.Errorf("create match %s: %w", matchID, err)
	}
	metrics.RecordMatchCreated()
	s.logger.Info(ctx, "match created",
		logger.String("match_id", matchID),
		logger.String("home_team", homeTeam),
		logger.String("away_team", awayTeam),
	)
	return m, nil
}

// MatchState returns the current state of a match.
func (s *Service) MatchState(ctx context.Context, matchID string) (model.Match, error) {
	store, err := s.running()
	if err != nil {
		return model.Match{}, err
	}
	m, err := store.GetMatch(ctx, matchID)
	if err != nil {
		return model.Match{}, notFound(err, ErrMatchNotFound, matchID)
	}
	return m, nil
}

// LatestAnalytics returns the most recent snapshot of a match.
func (s *Service) LatestAnalytics(ctx context.Context, matchID string) (model.AnalyticsSnapshot, error) {
	store, err := s.running()
	if err != nil {
		return model.AnalyticsSnapshot{}, err
	}
	if _, err := store.GetMatch(ctx, matchID); err != nil {
		return model.AnalyticsSnapshot{}, notFound(err, ErrMatchNotFound, matchID)
	}
	snap, err := store.GetLatestSnapshot(ctx, matchID)
	if err != nil {
		return model.AnalyticsSnapshot{}, notFound(err, ErrAnalyticsNotFound, matchID)
	}
	return snap, nil
}

// RecentAnalytics returns up to limit snapshots, newest first.
func (s *Service) RecentAnalytics(ctx context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	if _, err := store.GetMatch(ctx, matchID); err != nil {
		return nil, notFound(err, ErrMatchNotFound, matchID)
	}
	snaps, err := store.ListRecentSnapshots(ctx, matchID, s.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent analytics %s: %w", matchID, err)
	}
	return snaps, nil
}

// RecentEvents returns up to limit accepted events, oldest first.
func (s *Service) RecentEvents(ctx context.Context, matchID string, limit int) ([]model.Event, error) {
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	if _, err := store.GetMatch(ctx, matchID); err != nil {
		return nil, notFound(err, ErrMatchNotFound, matchID)
	}
	events, err := store.ListRecentEvents(ctx, matchID, s.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent events %s: %w", matchID, err)
	}
	return events, nil
}

// MaxRecentLimit returns the largest limit honored by the recent reads.
func (s *Service) MaxRecentLimit() int { return s.maxRecentLimit }

func (s *Service) clampLimit(limit int) int {
	if limit > s.maxRecentLimit {
		return s.maxRecentLimit
	}
	return limit
}

// notFound maps a repository ErrNotFound to the service sentinel and wraps
// everything else.
func notFound(err, sentinel error, matchID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", sentinel, matchID)
	}
	return fmt.Errorf("match %s: %w", matchID, err)
}

// Ingest stores e at most once and returns the resulting match state and
// analytics. An unknown match yields Accepted=false and no error.
func (s *Service) Ingest(ctx context.Context, e model.Event) (IngestResult, error) {
	store, err := s.running()
	if err != nil {
		return IngestResult{}, err
	}

	start := time.Now()
	defer func() {
		metrics.RecordIngestLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if e.ProviderName == "" {
		e.ProviderName = model.DefaultProvider
	}
	if e.IngestedAt.IsZero() {
		e.IngestedAt = time.Now().UTC()
	}

	if s.recent.Seen(ctx, e.EventID) {
		res, err := s.duplicate(ctx, store, e.MatchID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			metrics.RecordIngestUnknownMatch()
			return IngestResult{}, nil
		case err == nil:
			metrics.RecordIngestDuplicate()
		}
		return res, err
	}

	var res IngestResult
	for attempt := 1; ; attempt++ {
		res, err = s.ingestOnce(ctx, store, e)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= s.maxAttempts {
			metrics.RecordIngestFailed()
			metrics.RecordErrorByComponent("service", "ingest")
			s.logger.Error(ctx, "ingest failed",
				logger.String("event_id", e.EventID),
				logger.String("match_id", e.MatchID),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
			return IngestResult{}, fmt.Errorf("ingest %s: %w", e.EventID, err)
		}
		metrics.RecordIngestRetry()
		s.logger.Debug(ctx, "retrying ingest after version conflict",
			logger.String("event_id", e.EventID),
			logger.Int("attempt", attempt),
		)
	}

	switch {
	case !res.Accepted:
		metrics.RecordIngestUnknownMatch()
	case res.Deduplicated:
		metrics.RecordIngestDuplicate()
	default:
		s.recent.SeenAndRecord(ctx, e.EventID)
		metrics.RecordIngestAccepted()
		metrics.RecordSnapshotCreated()
	}
	return res, nil
}

// ingestOnce runs one unit of work: dedup-insert, state transition,
// analytics and persistence.
func (s *Service) ingestOnce(ctx context.Context, store repository.Store, e model.Event) (IngestResult, error) {
	var res IngestResult
	err := store.RunInTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		res = IngestResult{}

		match, err := repos.GetMatch(ctx, e.MatchID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		inserted, err := repos.AddEventIfNew(ctx, e)
		if err != nil {
			return err
		}
		if !inserted {
			res, err = s.duplicate(ctx, repos, e.MatchID)
			return err
		}

		updated := match.Apply(e)
		if err := repos.SaveMatch(ctx, updated); err != nil {
			return err
		}

		events5m, err := repos.ListEventsInWindow(ctx, e.MatchID, e.Clock, model.Window5m)
		if err != nil {
			return err
		}
		events10m, err := repos.ListEventsInWindow(ctx, e.MatchID, e.Clock, model.Window10m)
		if err != nil {
			return err
		}
		previous, err := latestOrNil(ctx, repos, e.MatchID)
		if err != nil {
			return err
		}

		computeStart := time.Now()
		snap := s.engine.Compute(updated, events5m, events10m, e.Clock, previous)
		metrics.RecordAnalyticsLatency(float64(time.Since(computeStart).Microseconds()) / 1000)

		if err := repos.SaveSnapshot(ctx, snap); err != nil {
			return err
		}
		res = IngestResult{Accepted: true, Match: updated, Snapshot: &snap}
		return nil
	})
	return res, err
}

func (s *Service) duplicate(ctx context.Context, repos repository.Repositories, matchID string) (IngestResult, error) {
	match, err := repos.GetMatch(ctx, matchID)
	if err != nil {
		return IngestResult{}, err
	}
	snap, err := latestOrNil(ctx, repos, matchID)
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{Accepted: true, Deduplicated: true, Match: match, Snapshot: snap}, nil
}

func latestOrNil(ctx context.Context, repos repository.AnalyticsRepository, matchID string) (*model.AnalyticsSnapshot, error) {
	snap, err := repos.GetLatestSnapshot(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Publish queues a live update for an ingest result. New events are always
// queued; duplicates only when the match has subscribers. A full queue drops
// the update.
func (s *Service) Publish(ctx context.Context, e model.Event, res IngestResult) { //nolint:gocritic // hugeParam: mirrors Ingest
	s.mu.RLock()
	started, q, hub := s.started, s.queue, s.hub
	s.mu.RUnlock()

	if !started || !res.Accepted {
		return
	}
	if res.Deduplicated && hub.SubscriberCount(e.MatchID) == 0 {
		return
	}

	job := eventqueue.Job{
		MatchID:  e.MatchID,
		Event:    e.Summary(),
		Match:    res.Match,
		Snapshot: res.Snapshot,
	}
	if q.Enqueue(ctx, job) {
		return
	}

	reason := eventqueue.ErrFull
	if q.IsClosed() {
		reason = eventqueue.ErrClosed
	}
	metrics.RecordBroadcastDropped()
	s.logger.Warn(ctx, "dropping live update",
		logger.String("match_id", e.MatchID),
		logger.String("event_id", e.EventID),
		logger.Error(reason),
	)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"maxRecentLimit": s.maxRecentLimit,
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len(ctx)
	stats["store"] = s.store.Kind()
	stats["queueLength"] = queueLen
	stats["activeWorkers"] = s.pool.Active()
	stats["recentEventIDs"] = s.recent.Size()
	stats["subscribers"] = s.hub.TotalSubscribers()
	stats["subscribedMatches"] = s.hub.MatchCount()

	for key, counter := range statsCounters {
		if v, err := metrics.CounterValue(counter); err == nil {
			stats[key] = int64(v)
		}
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats
}

// statsCounters maps Stats keys to process-wide counter families.
var statsCounters = map[string]string{
	"eventsAccepted":    "matchpulse_ingest_events_accepted_total",
	"eventsDuplicate":   "matchpulse_ingest_events_duplicate_total",
	"broadcastsDropped": "matchpulse_stream_broadcasts_dropped_total",
}
