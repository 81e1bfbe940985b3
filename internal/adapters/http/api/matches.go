package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/internal/domain/types"
)

// MatchDependencies defines the match operations used by MatchesHandler.
type MatchDependencies interface {
	CreateMatch(ctx context.Context, matchID, homeTeam, awayTeam string) (model.Match, error)
	MatchState(ctx context.Context, matchID string) (model.Match, error)
	LatestAnalytics(ctx context.Context, matchID string) (model.AnalyticsSnapshot, error)
	RecentAnalytics(ctx context.Context, matchID string, limit int) ([]model.AnalyticsSnapshot, error)
	RecentEvents(ctx context.Context, matchID string, limit int) ([]model.Event, error)
}

// MatchesHandler handles match creation and read requests.
type MatchesHandler struct {
	deps     MatchDependencies
	validate *validator.Validate
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies, v *validator.Validate) *MatchesHandler {
	return &MatchesHandler{deps: deps, validate: v}
}

// HandleCreate handles POST /api/v1/matches.
func (h *MatchesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_match"
	var req createMatchRequest
	if err := decodeAndValidate(w, r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := h.deps.CreateMatch(r.Context(), req.MatchID, req.HomeTeam, req.AwayTeam)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.FromMatch(m))
}

// HandleState handles GET /api/v1/matches/{match_id}/state.
func (h *MatchesHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.MatchState(r.Context(), chi.URLParam(r, "match_id"))
	if err != nil {
		writeServiceError(w, "api.match_state", err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromMatch(m))
}

// HandleLatestAnalytics handles GET /api/v1/matches/{match_id}/analytics/latest.
func (h *MatchesHandler) HandleLatestAnalytics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.LatestAnalytics(r.Context(), chi.URLParam(r, "match_id"))
	if err != nil {
		writeServiceError(w, "api.analytics_latest", err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromSnapshot(snap))
}

// HandleRecentAnalytics handles GET /api/v1/matches/{match_id}/analytics/recent.
func (h *MatchesHandler) HandleRecentAnalytics(w http.ResponseWriter, r *http.Request) {
	const op = "api.analytics_recent"
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	snaps, err := h.deps.RecentAnalytics(r.Context(), chi.URLParam(r, "match_id"), limit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromSnapshots(snaps))
}

// HandleRecentEvents handles GET /api/v1/matches/{match_id}/events/recent.
func (h *MatchesHandler) HandleRecentEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.events_recent"
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	events, err := h.deps.RecentEvents(r.Context(), chi.URLParam(r, "match_id"), limit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromEvents(events))
}

var errInvalidLimit = errors.New("limit must be a positive integer")

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultRecentLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	return n, nil
}
