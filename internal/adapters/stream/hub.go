// Package stream fans match updates out to live subscribers.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/internal/domain/types"
	"github.com/okian/matchpulse/pkg/logger"
	"github.com/okian/matchpulse/pkg/metrics"
)

// Default hub limits.
const (
	DefaultMaxTotal    = 100
	DefaultMaxPerMatch = 20
	DefaultSendTimeout = 5 * time.Second
)

// Close reasons sent to subscribers.
const (
	ReasonLimitReached = "Connection limit reached"
	ReasonShutdown     = "Server shutting down"
	ReasonSendFailed   = "Send failed"
)

// Subscriber receives encoded stream messages. Implementations must be
// comparable; the hub uses them as map keys.
type Subscriber interface {
	Send(ctx context.Context, msg []byte) error
	Close(code int, reason string) error
}

// Hub tracks subscribers per match and broadcasts updates to them.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[Subscriber]struct{}
	total  int
	closed bool

	maxTotal    int
	maxPerMatch int
	sendTimeout time.Duration

	logger logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:        make(map[string]map[Subscriber]struct{}),
		maxTotal:    DefaultMaxTotal,
		maxPerMatch: DefaultMaxPerMatch,
		sendTimeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("stream-hub")
	}
	return h
}

// Subscribe registers sub for matchID. It returns false when either limit
// is reached or the hub is closed; the caller owns closing sub then.
func (h *Hub) Subscribe(matchID string, sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		metrics.RecordSubscribeRejected("closed")
		return false
	}
	if h.total >= h.maxTotal {
		metrics.RecordSubscribeRejected("total")
		return false
	}
	set := h.subs[matchID]
	if len(set) >= h.maxPerMatch {
		metrics.RecordSubscribeRejected("match")
		return false
	}
	if set == nil {
		set = make(map[Subscriber]struct{})
		h.subs[matchID] = set
	}
	if _, ok := set[sub]; ok {
		return true
	}
	set[sub] = struct{}{}
	h.total++
	metrics.UpdateStreamSubscribers(h.total, len(h.subs))
	return true
}

// Unsubscribe removes sub from matchID. Unknown pairs are ignored.
func (h *Hub) Unsubscribe(matchID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(matchID, sub)
}

func (h *Hub) removeLocked(matchID string, sub Subscriber) bool {
	set, ok := h.subs[matchID]
	if !ok {
		return false
	}
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	h.total--
	if len(set) == 0 {
		delete(h.subs, matchID)
	}
	metrics.UpdateStreamSubscribers(h.total, len(h.subs))
	return true
}

// SubscriberCount returns the subscribers of one match.
func (h *Hub) SubscriberCount(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID])
}

// TotalSubscribers returns the subscribers across all matches.
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// MatchCount returns the number of matches with at least one subscriber.
func (h *Hub) MatchCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) snapshot(matchID string) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.subs[matchID]
	out := make([]Subscriber, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Broadcast sends an update to every subscriber of matchID concurrently.
// Subscribers that fail or time out are unsubscribed and closed.
func (h *Hub) Broadcast(ctx context.Context, matchID string, event model.EventSummary, match model.Match, snapshot *model.AnalyticsSnapshot) {
	targets := h.snapshot(matchID)
	if len(targets) == 0 {
		return
	}

	start := time.Now()
	msg, err := json.Marshal(types.NewStreamUpdate(event, match, snapshot))
	if err != nil {
		metrics.RecordErrorByComponent("stream", "encode")
		h.logger.Error(ctx, "failed to encode stream update",
			logger.String("match_id", matchID),
			logger.Error(err),
		)
		return
	}

	var wg sync.WaitGroup
	for _, sub := range targets {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			h.deliver(ctx, matchID, sub, msg)
		}(sub)
	}
	wg.Wait()
	metrics.RecordBroadcastLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func (h *Hub) deliver(ctx context.Context, matchID string, sub Subscriber, msg []byte) {
	sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()

	if err := sub.Send(sendCtx, msg); err != nil {
		metrics.RecordBroadcastFailed()
		h.logger.Debug(ctx, "dropping subscriber after failed send",
			logger.String("match_id", matchID),
			logger.Error(err),
		)
		h.mu.Lock()
		removed := h.removeLocked(matchID, sub)
		h.mu.Unlock()
		if removed {
			_ = sub.Close(websocket.CloseGoingAway, ReasonSendFailed)
		}
		return
	}
	metrics.RecordBroadcastDelivered()
}

// Close closes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := make([]Subscriber, 0, h.total)
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[Subscriber]struct{})
	h.total = 0
	metrics.UpdateStreamSubscribers(0, 0)
	h.mu.Unlock()

	for _, s := range all {
		_ = s.Close(websocket.CloseGoingAway, ReasonShutdown)
	}
}
