package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/matchpulse/internal/app"
	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/pkg/logger"
)

// EventDependencies defines the interface for event processing dependencies.
type EventDependencies interface {
	Ingest(ctx context.Context, e model.Event) (service.IngestResult, error)
	Publish(ctx context.Context, e model.Event, res service.IngestResult)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps     EventDependencies
	validate *validator.Validate
	logger   logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, v *validator.Validate, l logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, validate: v, logger: l}
}

// HandlePostEvent handles POST /api/v1/events. The live update is queued
// only after the response has been written.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if err := decodeAndValidate(w, r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Ingest(r.Context(), ev)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if !res.Accepted {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, service.ErrMatchNotFound))
		return
	}

	writeJSON(w, http.StatusOK, newIngestResponse(res))

	h.deps.Publish(context.WithoutCancel(r.Context()), ev, res)
	h.logger.Debug(r.Context(), "event ingested",
		logger.String("event_id", ev.EventID),
		logger.String("match_id", ev.MatchID),
		logger.Bool("deduplicated", res.Deduplicated),
	)
}
