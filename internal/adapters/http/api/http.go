// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/okian/matchpulse/internal/adapters/repository"
	"github.com/okian/matchpulse/internal/adapters/stream"
	service "github.com/okian/matchpulse/internal/app"
	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CreateMatch(ctx context.Context, matchID, homeTeam, awayTeam string) (model.Match, error)
	MatchState(ctx context.Context, matchID string) (model.Match, error)
	LatestAnalytics(ctx context.Context, matchID string) (model.AnalyticsSnapshot, error)
	RecentAnalytics(ctx context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error)
	RecentEvents(ctx context.Context, matchID string, limit int) ([]model.Event, error)

	// Ingest stores one event; Publish queues its live update.
	Ingest(ctx context.Context, e model.Event) (service.IngestResult, error)
	Publish(ctx context.Context, e model.Event, res service.IngestResult)

	Ready(ctx context.Context) error
	Stats(ctx context.Context) map[string]any
}

// StreamHub is the subscriber registry behind the WebSocket routes.
type StreamHub interface {
	Subscribe(matchID string, sub stream.Subscriber) bool
	Unsubscribe(matchID string, sub stream.Subscriber)
	SubscriberCount(matchID string) int
	Broadcast(ctx context.Context, matchID string, event model.EventSummary, match model.Match, snapshot *model.AnalyticsSnapshot)
}

const (
	defaultRecentLimit = 50
	maxBodyBytes       = 1 << 20
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler
	eventsHandler  *EventsHandler
	streamHandler  *StreamHandler

	rateLimit  int
	rateWindow time.Duration

	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, hub StreamHub, opts ...Option) *Server {
	s := &Server{rateWindow: time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	v := newValidator()
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.matchesHandler = NewMatchesHandler(deps, v)
	s.eventsHandler = NewEventsHandler(deps, v, s.logger)
	s.streamHandler = NewStreamHandler(deps, hub, s.logger)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	r.Get("/ready", MetricsMiddleware(s.healthHandler.HandleReady, "ready"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
		r.Get("/ready", MetricsMiddleware(s.healthHandler.HandleReady, "ready"))

		r.Post("/matches", MetricsMiddleware(s.matchesHandler.HandleCreate, "matches_create"))
		r.Route("/matches/{match_id}", func(r chi.Router) {
			r.Get("/state", MetricsMiddleware(s.matchesHandler.HandleState, "match_state"))
			r.Get("/analytics/latest", MetricsMiddleware(s.matchesHandler.HandleLatestAnalytics, "analytics_latest"))
			r.Get("/analytics/recent", MetricsMiddleware(s.matchesHandler.HandleRecentAnalytics, "analytics_recent"))
			r.Get("/events/recent", MetricsMiddleware(s.matchesHandler.HandleRecentEvents, "events_recent"))
		})

		ingest := MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events")
		if s.rateLimit > 0 {
			r.With(s.rateLimiter()).Post("/events", ingest)
		} else {
			r.Post("/events", ingest)
		}
	})

	r.Route("/ws/v2/matches/{match_id}", func(r chi.Router) {
		r.Get("/stream", MetricsMiddleware(s.streamHandler.HandleStream, "stream"))
		r.Post("/test-broadcast", MetricsMiddleware(s.streamHandler.HandleTestBroadcast, "test_broadcast"))
	})
}

func (s *Server) rateLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.rateLimit,
		s.rateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind("api.post_event", ErrRateLimited))
		}),
	)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service and repository failures into HTTP
// responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrMatchNotFound), errors.Is(err, service.ErrAnalyticsNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrMatchExists):
		writeError(w, http.StatusConflict, "conflict", WrapKind(op, ErrConflict, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	if err := v.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}
