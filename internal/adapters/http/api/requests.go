package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/matchpulse/internal/app"
	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/internal/domain/types"
)

// createMatchRequest mirrors the OpenAPI schema for POST /api/v1/matches.
type createMatchRequest struct {
	MatchID  string `json:"match_id" validate:"required,max=64"`
	HomeTeam string `json:"home_team" validate:"required,max=256"`
	AwayTeam string `json:"away_team" validate:"required,max=256"`
}

type clockRequest struct {
	Period int `json:"period" validate:"gte=1"`
	Minute int `json:"minute" validate:"gte=0"`
	Second int `json:"second" validate:"gte=0,lte=59"`
}

// eventRequest mirrors the OpenAPI schema for POST /api/v1/events.
type eventRequest struct {
	EventID         string         `json:"event_id" validate:"required,max=128"`
	MatchID         string         `json:"match_id" validate:"required,max=64"`
	Clock           *clockRequest  `json:"clock" validate:"required"`
	TeamSide        string         `json:"team_side" validate:"required,oneof=HOME AWAY"`
	EventType       string         `json:"event_type" validate:"required,oneof=SHOT SHOT_ON_TARGET CORNER FOUL YELLOW RED SUB GOAL"`
	Payload         map[string]any `json:"payload"`
	ProviderName    string         `json:"provider_name" validate:"max=64"`
	ProviderEventID string         `json:"provider_event_id" validate:"max=128"`
}

func (e eventRequest) toModel() (model.Event, error) {
	clock, err := model.NewMatchClock(e.Clock.Period, e.Clock.Minute, e.Clock.Second)
	if err != nil {
		return model.Event{}, err
	}
	side, err := model.ParseTeamSide(e.TeamSide)
	if err != nil {
		return model.Event{}, err
	}
	et, err := model.ParseEventType(e.EventType)
	if err != nil {
		return model.Event{}, err
	}
	provider := e.ProviderName
	if provider == "" {
		provider = model.DefaultProvider
	}
	return model.Event{
		EventID:         e.EventID,
		MatchID:         e.MatchID,
		ProviderName:    provider,
		ProviderEventID: e.ProviderEventID,
		Clock:           clock,
		TeamSide:        side,
		EventType:       et,
		Payload:         e.Payload,
	}, nil
}

// ingestResponse is the body of POST /api/v1/events.
type ingestResponse struct {
	Accepted        bool             `json:"accepted"`
	Deduplicated    bool             `json:"deduplicated"`
	MatchState      types.MatchState `json:"match_state"`
	AnalyticsLatest *types.Snapshot  `json:"analytics_latest"`
}

func newIngestResponse(res service.IngestResult) ingestResponse { //nolint:gocritic // hugeParam: read once per request
	return ingestResponse{
		Accepted:        res.Accepted,
		Deduplicated:    res.Deduplicated,
		MatchState:      types.FromMatch(res.Match),
		AnalyticsLatest: types.FromSnapshotPtr(res.Snapshot),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage flattens validator errors into one readable error.
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: must satisfy %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}
