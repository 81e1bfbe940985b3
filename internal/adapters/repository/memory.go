package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/matchpulse/internal/domain/dedupe"
	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/pkg/logger"
	"github.com/okian/matchpulse/pkg/metrics"
)

// matchData holds everything stored for one match id. Events can exist for
// a match id before the match itself does.
type matchData struct {
	match     model.Match
	exists    bool
	events    []model.Event // insertion order; index i has seq i
	index     eventIndex
	snapshots []model.AnalyticsSnapshot // insertion order
}

// MemoryStore keeps all state in process memory. Event ids are reserved in a
// dedupe index the moment a unit of work inserts them, so concurrent units of
// work cannot both insert the same event; everything else is staged and
// applied under the store lock on commit.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]*matchData
	ids     dedupe.Deduper

	eventCount    atomic.Int64
	snapshotCount atomic.Int64

	metricsUpdateInterval time.Duration
	log                   logger.Logger
	closed                atomic.Bool
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an in-memory store with configuration options.
func NewMemoryStore(ctx context.Context, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		matches:               make(map[string]*matchData),
		ids:                   dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0)),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("memory_store")
	}
	s.startMetricsUpdater(ctx)
	return s
}

// startMetricsUpdater publishes record gauges on a ticker.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishRecordCounts()
			}
		}
	}()
}

func (s *MemoryStore) publishRecordCounts() {
	s.mu.RLock()
	matches := 0
	for _, d := range s.matches {
		if d.exists {
			matches++
		}
	}
	s.mu.RUnlock()
	metrics.UpdateStoreRecords("matches", matches)
	metrics.UpdateStoreRecords("events", int(s.eventCount.Load()))
	metrics.UpdateStoreRecords("snapshots", int(s.snapshotCount.Load()))
}

// Kind implements Store.
func (s *MemoryStore) Kind() string { return KindMemory }

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close stops the metrics updater. Data stays readable.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopChan)
	})
	s.wg.Wait()
	return nil
}

// RunInTx implements Store.
func (s *MemoryStore) RunInTx(ctx context.Context, fn TxFunc) error {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	tx := newMemTx(s)
	if err := fn(ctx, tx); err != nil {
		tx.rollback(ctx)
		return err
	}
	if err := tx.commit(); err != nil {
		tx.rollback(ctx)
		return err
	}
	metrics.RecordStoreUpdateLatency(KindMemory, float64(time.Since(start).Microseconds())/1000)
	return nil
}

// CreateMatch implements MatchRepository.
func (s *MemoryStore) CreateMatch(ctx context.Context, m model.Match) error {
	return s.RunInTx(ctx, func(ctx context.Context, r Repositories) error {
		return r.CreateMatch(ctx, m)
	})
}

// SaveMatch implements MatchRepository.
func (s *MemoryStore) SaveMatch(ctx context.Context, m model.Match) error {
	return s.RunInTx(ctx, func(ctx context.Context, r Repositories) error {
		return r.SaveMatch(ctx, m)
	})
}

// AddEventIfNew implements EventRepository.
func (s *MemoryStore) AddEventIfNew(ctx context.Context, e model.Event) (bool, error) {
	var inserted bool
	err := s.RunInTx(ctx, func(ctx context.Context, r Repositories) error {
		var err error
		inserted, err = r.AddEventIfNew(ctx, e)
		return err
	})
	return inserted, err
}

// SaveSnapshot implements AnalyticsRepository.
func (s *MemoryStore) SaveSnapshot(ctx context.Context, snap model.AnalyticsSnapshot) error {
	return s.RunInTx(ctx, func(ctx context.Context, r Repositories) error {
		return r.SaveSnapshot(ctx, snap)
	})
}

// GetMatch implements MatchRepository.
func (s *MemoryStore) GetMatch(_ context.Context, matchID string) (model.Match, error) {
	defer s.observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.matches[matchID]
	if !ok || !d.exists {
		return model.Match{}, fmt.Errorf("match %q: %w", matchID, ErrNotFound)
	}
	return d.match, nil
}

// ListEventsInWindow implements EventRepository.
func (s *MemoryStore) ListEventsInWindow(_ context.Context, matchID string, end model.MatchClock, w model.RollingWindow) ([]model.Event, error) {
	defer s.observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.matches[matchID]
	if !ok {
		return []model.Event{}, nil
	}
	startSec, endSec := w.Bounds(end)
	seqs := d.index.window(end.Period, startSec, endSec)
	out := make([]model.Event, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, d.events[seq])
	}
	return out, nil
}

// ListRecentEvents implements EventRepository.
func (s *MemoryStore) ListRecentEvents(_ context.Context, matchID string, limit int) ([]model.Event, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	defer s.observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.matches[matchID]
	if !ok {
		return []model.Event{}, nil
	}
	return tailEvents(d.events, limit), nil
}

// GetLatestSnapshot implements AnalyticsRepository.
func (s *MemoryStore) GetLatestSnapshot(_ context.Context, matchID string) (model.AnalyticsSnapshot, error) {
	defer s.observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.matches[matchID]
	if !ok || len(d.snapshots) == 0 {
		return model.AnalyticsSnapshot{}, fmt.Errorf("snapshot for %q: %w", matchID, ErrNotFound)
	}
	return d.snapshots[len(d.snapshots)-1], nil
}

// ListRecentSnapshots implements AnalyticsRepository.
func (s *MemoryStore) ListRecentSnapshots(_ context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	defer s.observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.matches[matchID]
	if !ok {
		return []model.AnalyticsSnapshot{}, nil
	}
	return newestFirst(d.snapshots, limit), nil
}

func (s *MemoryStore) observeQuery(start time.Time) {
	metrics.RecordStoreQueryLatency(KindMemory, float64(time.Since(start).Microseconds())/1000)
}

// data returns the entry for matchID, creating it. Caller holds s.mu.
func (s *MemoryStore) data(matchID string) *matchData {
	d, ok := s.matches[matchID]
	if !ok {
		d = &matchData{}
		s.matches[matchID] = d
	}
	return d
}

func tailEvents(events []model.Event, limit int) []model.Event {
	from := len(events) - limit
	if from < 0 {
		from = 0
	}
	out := make([]model.Event, len(events)-from)
	copy(out, events[from:])
	return out
}

func newestFirst(snaps []model.AnalyticsSnapshot, limit int) []model.AnalyticsSnapshot {
	n := len(snaps)
	if limit < n {
		n = limit
	}
	out := make([]model.AnalyticsSnapshot, 0, n)
	for i := len(snaps) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, snaps[i])
	}
	return out
}

// memTx stages the writes of one unit of work.
type memTx struct {
	s         *MemoryStore
	created   map[string]model.Match
	saved     map[string]model.Match
	baseVer   map[string]int // stored version observed by the first SaveMatch
	events    []model.Event
	reserved  []string
	snapshots []model.AnalyticsSnapshot
}

func newMemTx(s *MemoryStore) *memTx {
	return &memTx{
		s:       s,
		created: map[string]model.Match{},
		saved:   map[string]model.Match{},
		baseVer: map[string]int{},
	}
}

func (tx *memTx) CreateMatch(ctx context.Context, m model.Match) error {
	if _, ok := tx.created[m.MatchID]; ok {
		return fmt.Errorf("match %q: %w", m.MatchID, ErrConflict)
	}
	if _, err := tx.s.GetMatch(ctx, m.MatchID); err == nil {
		return fmt.Errorf("match %q: %w", m.MatchID, ErrConflict)
	}
	tx.created[m.MatchID] = m
	return nil
}

func (tx *memTx) GetMatch(ctx context.Context, matchID string) (model.Match, error) {
	if m, ok := tx.saved[matchID]; ok {
		return m, nil
	}
	if m, ok := tx.created[matchID]; ok {
		return m, nil
	}
	return tx.s.GetMatch(ctx, matchID)
}

func (tx *memTx) SaveMatch(ctx context.Context, m model.Match) error {
	current, err := tx.GetMatch(ctx, m.MatchID)
	if err != nil {
		return err
	}
	if current.Version != m.Version-1 {
		return fmt.Errorf("match %q: stored version %d, saving %d: %w", m.MatchID, current.Version, m.Version, ErrVersionConflict)
	}
	if _, staged := tx.saved[m.MatchID]; !staged {
		if _, created := tx.created[m.MatchID]; !created {
			tx.baseVer[m.MatchID] = current.Version
		}
	}
	tx.saved[m.MatchID] = m
	return nil
}

func (tx *memTx) AddEventIfNew(ctx context.Context, e model.Event) (bool, error) {
	if tx.s.ids.SeenAndRecord(ctx, e.EventID) {
		return false, nil
	}
	tx.reserved = append(tx.reserved, e.EventID)
	tx.events = append(tx.events, e)
	return true, nil
}

func (tx *memTx) ListEventsInWindow(ctx context.Context, matchID string, end model.MatchClock, w model.RollingWindow) ([]model.Event, error) {
	out, err := tx.s.ListEventsInWindow(ctx, matchID, end, w)
	if err != nil {
		return nil, err
	}
	staged := false
	for _, e := range tx.events {
		if e.MatchID == matchID && w.Contains(end, e.Clock) {
			out = append(out, e)
			staged = true
		}
	}
	if staged {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Clock.Before(out[j].Clock) })
	}
	return out, nil
}

func (tx *memTx) ListRecentEvents(ctx context.Context, matchID string, limit int) ([]model.Event, error) {
	out, err := tx.s.ListRecentEvents(ctx, matchID, limit)
	if err != nil {
		return nil, err
	}
	for _, e := range tx.events {
		if e.MatchID == matchID {
			out = append(out, e)
		}
	}
	return tailEvents(out, limit), nil
}

func (tx *memTx) SaveSnapshot(_ context.Context, snap model.AnalyticsSnapshot) error {
	tx.snapshots = append(tx.snapshots, snap)
	return nil
}

func (tx *memTx) GetLatestSnapshot(ctx context.Context, matchID string) (model.AnalyticsSnapshot, error) {
	for i := len(tx.snapshots) - 1; i >= 0; i-- {
		if tx.snapshots[i].MatchID == matchID {
			return tx.snapshots[i], nil
		}
	}
	return tx.s.GetLatestSnapshot(ctx, matchID)
}

func (tx *memTx) ListRecentSnapshots(ctx context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error) {
	base, err := tx.s.ListRecentSnapshots(ctx, matchID, limit)
	if err != nil {
		return nil, err
	}
	var out []model.AnalyticsSnapshot
	for i := len(tx.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		if tx.snapshots[i].MatchID == matchID {
			out = append(out, tx.snapshots[i])
		}
	}
	for _, snap := range base {
		if len(out) >= limit {
			break
		}
		out = append(out, snap)
	}
	return out, nil
}

// commit validates the staged writes against the current state and applies
// them atomically.
func (tx *memTx) commit() error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.created {
		if d, ok := s.matches[id]; ok && d.exists {
			return fmt.Errorf("match %q: %w", id, ErrConflict)
		}
	}
	for id, ver := range tx.baseVer {
		d, ok := s.matches[id]
		if !ok || !d.exists {
			return fmt.Errorf("match %q: %w", id, ErrNotFound)
		}
		if d.match.Version != ver {
			return fmt.Errorf("match %q: stored version moved from %d to %d: %w", id, ver, d.match.Version, ErrVersionConflict)
		}
	}

	for id, m := range tx.created {
		d := s.data(id)
		d.match, d.exists = m, true
	}
	for id, m := range tx.saved {
		d := s.data(id)
		d.match, d.exists = m, true
	}
	for _, e := range tx.events {
		d := s.data(e.MatchID)
		seq := uint64(len(d.events))
		d.events = append(d.events, e)
		d.index.add(clockKey{period: e.Clock.Period, second: e.Clock.SecondsInPeriod(), seq: seq})
	}
	for _, snap := range tx.snapshots {
		d := s.data(snap.MatchID)
		d.snapshots = append(d.snapshots, snap)
	}
	s.eventCount.Add(int64(len(tx.events)))
	s.snapshotCount.Add(int64(len(tx.snapshots)))
	tx.reserved = nil
	return nil
}

func (tx *memTx) rollback(ctx context.Context) {
	for _, id := range tx.reserved {
		tx.s.ids.Unrecord(ctx, id)
	}
	if len(tx.reserved) > 0 {
		tx.s.log.Debug(ctx, "rolled back unit of work", logger.Int("released_event_ids", len(tx.reserved)))
	}
	tx.reserved = nil
}
