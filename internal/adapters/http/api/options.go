package api

import (
	"time"

	"github.com/okian/matchpulse/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithIngestRateLimit limits POST /api/v1/events to n requests per window
// per client IP. n <= 0 disables the limit.
func WithIngestRateLimit(n int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimit = n
		if window > 0 {
			s.rateWindow = window
		}
	}
}

// WithLogger sets the API logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
