package stream

import (
	"time"

	"github.com/okian/matchpulse/pkg/logger"
)

// Option configures a Hub.
type Option func(*Hub)

// WithMaxTotal caps the number of subscribers across all matches.
func WithMaxTotal(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxTotal = n
		}
	}
}

// WithMaxPerMatch caps the number of subscribers for a single match.
func WithMaxPerMatch(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxPerMatch = n
		}
	}
}

// WithSendTimeout bounds each per-subscriber send during Broadcast.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.sendTimeout = d
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// SubscriberOption configures a WSSubscriber.
type SubscriberOption func(*WSSubscriber)

// WithPingPeriod sets how often keep-alive ping frames are sent.
func WithPingPeriod(d time.Duration) SubscriberOption {
	return func(s *WSSubscriber) {
		if d > 0 {
			s.pingPeriod = d
			if s.pongWait <= d {
				s.pongWait = d * 10 / 9
			}
		}
	}
}

// WithWriteWait bounds a single frame write when the caller has no deadline.
func WithWriteWait(d time.Duration) SubscriberOption {
	return func(s *WSSubscriber) {
		if d > 0 {
			s.writeWait = d
		}
	}
}

// WithSubscriberLogger sets the subscriber logger.
func WithSubscriberLogger(l logger.Logger) SubscriberOption {
	return func(s *WSSubscriber) {
		if l != nil {
			s.logger = l
		}
	}
}
