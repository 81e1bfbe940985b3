package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/pkg/logger"
	"github.com/okian/matchpulse/pkg/metrics"
)

// Key layout:
//
//	m/<match_id>                                  -> match state
//	e/<event_id>                                  -> event
//	c/<len>:<match_id>/<period><second><seq>      -> event_id (clock index)
//	r/<len>:<match_id>/<seq>                      -> event_id (arrival index)
//	s/<len>:<match_id>/<seq>                      -> snapshot
//
// Integers are big-endian so byte order equals numeric order. The length
// prefix keeps one match id from being a key prefix of another.
const (
	matchKeyPrefix       = "m/"
	eventKeyPrefix       = "e/"
	clockIndexPrefix     = "c/"
	arrivalIndexPrefix   = "r/"
	snapshotKeyPrefix    = "s/"
	sequenceKey          = "!seq"
	sequenceBandwidth    = 256
	defaultBadgerRetries = 5
)

func matchKey(id string) []byte { return []byte(matchKeyPrefix + id) }
func eventKey(id string) []byte { return []byte(eventKeyPrefix + id) }

func scoped(prefix, matchID string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s/", prefix, len(matchID), matchID))
}

func appendUint32(b []byte, v int) []byte    { return binary.BigEndian.AppendUint32(b, uint32(v)) }
func appendUint64(b []byte, v uint64) []byte { return binary.BigEndian.AppendUint64(b, v) }

func clockIndexKey(matchID string, c model.MatchClock, seq uint64) []byte {
	k := appendUint32(scoped(clockIndexPrefix, matchID), c.Period)
	k = appendUint32(k, c.SecondsInPeriod())
	return appendUint64(k, seq)
}

func seqKey(prefix, matchID string, seq uint64) []byte {
	return appendUint64(scoped(prefix, matchID), seq)
}

// BadgerStore persists state in an embedded BadgerDB. Every unit of work is
// one Badger read-write transaction; Badger's conflict detection rejects the
// later of two transactions that touched the same key, and the store retries
// it, so a concurrent duplicate insert is seen as a duplicate on retry.
type BadgerStore struct {
	db         *badger.DB
	seq        *badger.Sequence
	dir        string
	inMemory   bool
	maxRetries int
	log        logger.Logger
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) a Badger database in dir.
func NewBadgerStore(dir string, opts ...BadgerOption) (*BadgerStore, error) {
	s := &BadgerStore{dir: dir, maxRetries: defaultBadgerRetries}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("badger_store")
	}

	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	if s.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	s.db, s.seq = db, seq
	return s, nil
}

// Kind implements Store.
func (s *BadgerStore) Kind() string { return KindBadger }

// Ping implements Store.
func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	if err := s.seq.Release(); err != nil {
		s.log.Warn(context.Background(), "release badger sequence", logger.Error(err))
	}
	return s.db.Close()
}

// RunInTx implements Store.
func (s *BadgerStore) RunInTx(ctx context.Context, fn TxFunc) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	start := time.Now()
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			return fn(ctx, &badgerTx{store: s, txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		metrics.RecordStoreTxRetry(KindBadger)
		s.log.Debug(ctx, "badger transaction conflict, retrying", logger.Int("attempt", attempt))
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
	if err != nil {
		return err
	}
	metrics.RecordStoreUpdateLatency(KindBadger, float64(time.Since(start).Microseconds())/1000)
	return nil
}

func (s *BadgerStore) view(fn func(tx *badgerTx) error) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(KindBadger, float64(time.Since(start).Microseconds())/1000)
	}()
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{store: s, txn: txn})
	})
}

// CreateMatch implements MatchRepository.
func (s *BadgerStore) CreateMatch(ctx context.Context, m model.Match) error {
	return s.RunInTx(ctx, func(ctx context.Context, r Repositories) error { return r.CreateMatch(ctx, m) })
}

// SaveMatch implements MatchRepository.
func (s *BadgerStore) SaveMatch(ctx context.Context, m model.Match) error {
	return s.RunInTx(ctx, func(ctx context.Context, r Repositories) error { return r.SaveMatch(ctx, m) })
}

// AddEventIfNew implements EventRepository.
func (s *BadgerStore) AddEventIfNew(ctx context.Context, e model.Event) (bool, error) {
	var inserted bool
	err := s.RunInTx(ctx, func(ctx context.Context, r Repositories) error {
		var err error
		inserted, err = r.AddEventIfNew(ctx, e)
		return err
	})
	return inserted, err
}

// SaveSnapshot implements AnalyticsRepository.
func (s *BadgerStore) SaveSnapshot(ctx context.Context, snap model.AnalyticsSnapshot) error {
	return s.RunInTx(ctx, func(ctx context.Context, r Repositories) error { return r.SaveSnapshot(ctx, snap) })
}

// GetMatch implements MatchRepository.
func (s *BadgerStore) GetMatch(ctx context.Context, matchID string) (m model.Match, err error) {
	err = s.view(func(tx *badgerTx) error {
		m, err = tx.GetMatch(ctx, matchID)
		return err
	})
	return m, err
}

// ListEventsInWindow implements EventRepository.
func (s *BadgerStore) ListEventsInWindow(ctx context.Context, matchID string, end model.MatchClock, w model.RollingWindow) (out []model.Event, err error) {
	err = s.view(func(tx *badgerTx) error {
		out, err = tx.ListEventsInWindow(ctx, matchID, end, w)
		return err
	})
	return out, err
}

// ListRecentEvents implements EventRepository.
func (s *BadgerStore) ListRecentEvents(ctx context.Context, matchID string, limit int) (out []model.Event, err error) {
	err = s.view(func(tx *badgerTx) error {
		out, err = tx.ListRecentEvents(ctx, matchID, limit)
		return err
	})
	return out, err
}

// GetLatestSnapshot implements AnalyticsRepository.
func (s *BadgerStore) GetLatestSnapshot(ctx context.Context, matchID string) (snap model.AnalyticsSnapshot, err error) {
	err = s.view(func(tx *badgerTx) error {
		snap, err = tx.GetLatestSnapshot(ctx, matchID)
		return err
	})
	return snap, err
}

// ListRecentSnapshots implements AnalyticsRepository.
func (s *BadgerStore) ListRecentSnapshots(ctx context.Context, matchID string, limit int) (out []model.AnalyticsSnapshot, err error) {
	err = s.view(func(tx *badgerTx) error {
		out, err = tx.ListRecentSnapshots(ctx, matchID, limit)
		return err
	})
	return out, err
}

// badgerTx implements Repositories on top of one Badger transaction.
type badgerTx struct {
	store *BadgerStore
	txn   *badger.Txn
}

func (tx *badgerTx) get(key []byte) ([]byte, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return item.ValueCopy(nil)
}

func (tx *badgerTx) CreateMatch(_ context.Context, m model.Match) error {
	if _, err := tx.get(matchKey(m.MatchID)); err == nil {
		return fmt.Errorf("match %q: %w", m.MatchID, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	raw, err := encodeMatch(m)
	if err != nil {
		return err
	}
	return tx.txn.Set(matchKey(m.MatchID), raw)
}

func (tx *badgerTx) GetMatch(_ context.Context, matchID string) (model.Match, error) {
	raw, err := tx.get(matchKey(matchID))
	if errors.Is(err, ErrNotFound) {
		return model.Match{}, fmt.Errorf("match %q: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return model.Match{}, err
	}
	return decodeMatch(raw)
}

func (tx *badgerTx) SaveMatch(ctx context.Context, m model.Match) error {
	current, err := tx.GetMatch(ctx, m.MatchID)
	if err != nil {
		return err
	}
	if current.Version != m.Version-1 {
		return fmt.Errorf("match %q: stored version %d, saving %d: %w", m.MatchID, current.Version, m.Version, ErrVersionConflict)
	}
	raw, err := encodeMatch(m)
	if err != nil {
		return err
	}
	return tx.txn.Set(matchKey(m.MatchID), raw)
}

func (tx *badgerTx) AddEventIfNew(_ context.Context, e model.Event) (bool, error) {
	if _, err := tx.get(eventKey(e.EventID)); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	raw, err := encodeEvent(e)
	if err != nil {
		return false, err
	}
	seq, err := tx.store.seq.Next()
	if err != nil {
		return false, fmt.Errorf("badger sequence: %w", err)
	}
	id := []byte(e.EventID)
	if err := tx.txn.Set(eventKey(e.EventID), raw); err != nil {
		return false, fmt.Errorf("set event: %w", err)
	}
	if err := tx.txn.Set(clockIndexKey(e.MatchID, e.Clock, seq), id); err != nil {
		return false, fmt.Errorf("set clock index: %w", err)
	}
	if err := tx.txn.Set(seqKey(arrivalIndexPrefix, e.MatchID, seq), id); err != nil {
		return false, fmt.Errorf("set arrival index: %w", err)
	}
	return true, nil
}

func (tx *badgerTx) eventsByID(ids [][]byte) ([]model.Event, error) {
	out := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		raw, err := tx.get(eventKey(string(id)))
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", id, err)
		}
		e, err := decodeEvent(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (tx *badgerTx) ListEventsInWindow(_ context.Context, matchID string, end model.MatchClock, w model.RollingWindow) ([]model.Event, error) {
	startSec, endSec := w.Bounds(end)
	prefix := appendUint32(scoped(clockIndexPrefix, matchID), end.Period)
	from := appendUint64(appendUint32(bytes.Clone(prefix), startSec), 0)
	to := appendUint64(appendUint32(bytes.Clone(prefix), endSec), ^uint64(0))

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	var ids [][]byte
	for it.Seek(from); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		if bytes.Compare(item.Key(), to) > 0 {
			break
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			it.Close()
			return nil, fmt.Errorf("read clock index: %w", err)
		}
		ids = append(ids, id)
	}
	it.Close()
	return tx.eventsByID(ids)
}

// reverseScan visits up to limit values under prefix, highest key first.
func (tx *badgerTx) reverseScan(prefix []byte, limit int, visit func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	seek := append(bytes.Clone(prefix), 0xFF)
	n := 0
	for it.Seek(seek); it.ValidForPrefix(prefix) && n < limit; it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("badger read: %w", err)
		}
		if err := visit(val); err != nil {
			return err
		}
		n++
	}
	return nil
}

func (tx *badgerTx) ListRecentEvents(_ context.Context, matchID string, limit int) ([]model.Event, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	var ids [][]byte
	if err := tx.reverseScan(scoped(arrivalIndexPrefix, matchID), limit, func(val []byte) error {
		ids = append(ids, val)
		return nil
	}); err != nil {
		return nil, err
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return tx.eventsByID(ids)
}

func (tx *badgerTx) SaveSnapshot(_ context.Context, snap model.AnalyticsSnapshot) error {
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	seq, err := tx.store.seq.Next()
	if err != nil {
		return fmt.Errorf("badger sequence: %w", err)
	}
	return tx.txn.Set(seqKey(snapshotKeyPrefix, snap.MatchID, seq), raw)
}

func (tx *badgerTx) GetLatestSnapshot(ctx context.Context, matchID string) (model.AnalyticsSnapshot, error) {
	snaps, err := tx.ListRecentSnapshots(ctx, matchID, 1)
	if err != nil {
		return model.AnalyticsSnapshot{}, err
	}
	if len(snaps) == 0 {
		return model.AnalyticsSnapshot{}, fmt.Errorf("snapshot for %q: %w", matchID, ErrNotFound)
	}
	return snaps[0], nil
}

func (tx *badgerTx) ListRecentSnapshots(_ context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	out := []model.AnalyticsSnapshot{}
	err := tx.reverseScan(scoped(snapshotKeyPrefix, matchID), limit, func(val []byte) error {
		snap, err := decodeSnapshot(val)
		if err != nil {
			return err
		}
		out = append(out, snap)
		return nil
	})
	return out, err
}
