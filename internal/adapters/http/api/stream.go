package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/okian/matchpulse/internal/adapters/stream"
	service "github.com/okian/matchpulse/internal/app"
	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/internal/domain/types"
	"github.com/okian/matchpulse/pkg/logger"
)

// StreamDependencies resolves match state for the synthetic test broadcast.
type StreamDependencies interface {
	MatchState(ctx context.Context, matchID string) (model.Match, error)
}

// StreamHandler serves the live WebSocket stream.
type StreamHandler struct {
	deps     StreamDependencies
	hub      StreamHub
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies, hub StreamHub, l logger.Logger) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: l,
	}
}

// HandleStream handles GET /ws/v2/matches/{match_id}/stream.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	sub := stream.NewWSSubscriber(conn, matchID, stream.WithSubscriberLogger(h.logger))
	if !h.hub.Subscribe(matchID, sub) {
		_ = sub.Close(websocket.ClosePolicyViolation, stream.ReasonLimitReached)
		h.logger.Warn(r.Context(), "stream subscriber rejected", logger.String("match_id", matchID))
		return
	}
	defer h.hub.Unsubscribe(matchID, sub)

	hello := types.StreamControl{Type: types.StreamTypeConnected, MatchID: matchID}
	if err := sub.SendJSON(r.Context(), hello); err != nil {
		_ = sub.Close(websocket.CloseGoingAway, "")
		return
	}
	h.logger.Debug(r.Context(), "stream subscriber connected", logger.String("match_id", matchID))
	sub.Serve(r.Context())
}

type testBroadcastResponse struct {
	Status          string `json:"status"`
	MatchID         string `json:"match_id"`
	SubscriberCount int    `json:"subscriber_count"`
}

// HandleTestBroadcast handles POST /ws/v2/matches/{match_id}/test-broadcast.
// It pushes a synthetic SHOT update at kick-off to the match subscribers.
func (h *StreamHandler) HandleTestBroadcast(w http.ResponseWriter, r *http.Request) {
	const op = "api.test_broadcast"
	matchID := chi.URLParam(r, "match_id")

	count := h.hub.SubscriberCount(matchID)
	if count == 0 {
		writeError(w, http.StatusNotFound, "not_found",
			WrapKind(op, ErrNotFound, errors.New("no websocket subscribers for match "+matchID)))
		return
	}

	match, err := h.deps.MatchState(r.Context(), matchID)
	if err != nil {
		if !errors.Is(err, service.ErrMatchNotFound) {
			writeServiceError(w, op, err)
			return
		}
		match = model.NewMatch(matchID, "", "")
		match.Status = model.StatusLive
	}

	summary := model.EventSummary{
		EventID:   "test-event",
		Clock:     model.KickOff(),
		TeamSide:  model.Home,
		EventType: model.EventShot,
	}
	h.hub.Broadcast(r.Context(), matchID, summary, match, nil)

	writeJSON(w, http.StatusOK, testBroadcastResponse{
		Status:          "broadcast_sent",
		MatchID:         matchID,
		SubscriberCount: count,
	})
}
