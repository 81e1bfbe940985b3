package types

import (
	"fmt"

	"github.com/okian/matchpulse/internal/domain/model"
)

// FromClock converts a domain clock.
func FromClock(c model.MatchClock) Clock {
	return Clock{Period: c.Period, Minute: c.Minute, Second: c.Second}
}

// ToModel validates and converts a wire clock.
func (c Clock) ToModel() (model.MatchClock, error) {
	return model.NewMatchClock(c.Period, c.Minute, c.Second)
}

// FromMatch converts a domain match.
func FromMatch(m model.Match) MatchState {
	return MatchState{
		MatchID:      m.MatchID,
		HomeTeam:     m.HomeTeam,
		AwayTeam:     m.AwayTeam,
		Status:       string(m.Status),
		Clock:        FromClock(m.Clock),
		Score:        Score{Home: m.Score.Home, Away: m.Score.Away},
		HomeRedCards: m.HomeRedCards,
		AwayRedCards: m.AwayRedCards,
		Version:      m.Version,
	}
}

// ToModel validates and converts a stored match state.
func (s MatchState) ToModel() (model.Match, error) {
	status, err := model.ParseMatchStatus(s.Status)
	if err != nil {
		return model.Match{}, err
	}
	clock, err := s.Clock.ToModel()
	if err != nil {
		return model.Match{}, err
	}
	score, err := model.NewScore(s.Score.Home, s.Score.Away)
	if err != nil {
		return model.Match{}, err
	}
	return model.Match{
		MatchID:      s.MatchID,
		HomeTeam:     s.HomeTeam,
		AwayTeam:     s.AwayTeam,
		Status:       status,
		Clock:        clock,
		Score:        score,
		HomeRedCards: s.HomeRedCards,
		AwayRedCards: s.AwayRedCards,
		Version:      s.Version,
	}, nil
}

// FromSummary converts a domain event summary.
func FromSummary(e model.EventSummary) EventSummary {
	return EventSummary{
		EventID:   e.EventID,
		Clock:     FromClock(e.Clock),
		TeamSide:  string(e.TeamSide),
		EventType: string(e.EventType),
	}
}

// FromEvent converts a domain event.
func FromEvent(e model.Event) Event {
	return Event{
		EventID:         e.EventID,
		MatchID:         e.MatchID,
		ProviderName:    e.Provider(),
		ProviderEventID: e.ProviderEventID,
		Clock:           FromClock(e.Clock),
		TeamSide:        string(e.TeamSide),
		EventType:       string(e.EventType),
		Payload:         e.Payload,
		IngestedAt:      e.IngestedAt.UTC(),
	}
}

// FromEvents converts a slice of domain events.
func FromEvents(events []model.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	return out
}

// ToModel validates and converts a stored event.
func (e Event) ToModel() (model.Event, error) {
	clock, err := e.Clock.ToModel()
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
	return model.Event{
		EventID:         e.EventID,
		MatchID:         e.MatchID,
		ProviderName:    e.ProviderName,
		ProviderEventID: e.ProviderEventID,
		Clock:           clock,
		TeamSide:        side,
		EventType:       et,
		Payload:         e.Payload,
		IngestedAt:      e.IngestedAt,
	}, nil
}

func fromFeatures(f model.Features) Features {
	return Features{
		Shots:                 f.Shots,
		ShotsOnTarget:         f.ShotsOnTarget,
		Corners:               f.Corners,
		Fouls:                 f.Fouls,
		Yellows:               f.Yellows,
		Reds:                  f.Reds,
		XGSum:                 f.XGSum,
		AttackingActionsCount: f.AttackingActions,
	}
}

func (f Features) toModel() model.Features {
	return model.Features{
		Shots:            f.Shots,
		ShotsOnTarget:    f.ShotsOnTarget,
		Corners:          f.Corners,
		Fouls:            f.Fouls,
		Yellows:          f.Yellows,
		Reds:             f.Reds,
		XGSum:            f.XGSum,
		AttackingActions: f.AttackingActionsCount,
	}
}

func fromFeatureWindows(in map[string]model.SideFeatures) map[string]SideFeatures {
	out := make(map[string]SideFeatures, len(in))
	for w, sf := range in {
		out[w] = SideFeatures{
			string(model.Home): fromFeatures(sf.Home),
			string(model.Away): fromFeatures(sf.Away),
		}
	}
	return out
}

func toFeatureWindows(in map[string]SideFeatures) map[string]model.SideFeatures {
	out := make(map[string]model.SideFeatures, len(in))
	for w, sf := range in {
		out[w] = model.SideFeatures{
			Home: sf[string(model.Home)].toModel(),
			Away: sf[string(model.Away)].toModel(),
		}
	}
	return out
}

func fromMetrics(in map[string]model.SideValues) map[string]SideValues {
	out := make(map[string]SideValues, len(in))
	for name, v := range in {
		out[name] = SideValues{string(model.Home): v.Home, string(model.Away): v.Away}
	}
	return out
}

func toMetrics(in map[string]SideValues) map[string]model.SideValues {
	out := make(map[string]model.SideValues, len(in))
	for name, v := range in {
		out[name] = model.SideValues{Home: v[string(model.Home)], Away: v[string(model.Away)]}
	}
	return out
}

// FromSnapshot converts a domain snapshot.
func FromSnapshot(s model.AnalyticsSnapshot) Snapshot {
	why := s.Why
	if why == nil {
		why = []string{}
	}
	return Snapshot{
		SnapshotID:       s.SnapshotID,
		MatchID:          s.MatchID,
		Clock:            FromClock(s.Clock),
		FeaturesByWindow: fromFeatureWindows(s.FeaturesByWindow),
		DerivedMetrics:   fromMetrics(s.DerivedMetrics),
		Deltas: Deltas{
			FeaturesByWindow: fromFeatureWindows(s.Deltas.FeaturesByWindow),
			DerivedMetrics:   fromMetrics(s.Deltas.DerivedMetrics),
		},
		Why:          why,
		ModelVersion: s.ModelVersion,
		CreatedAt:    s.CreatedAt.UTC(),
	}
}

// FromSnapshotPtr converts an optional snapshot.
func FromSnapshotPtr(s *model.AnalyticsSnapshot) *Snapshot {
	if s == nil {
		return nil
	}
	out := FromSnapshot(*s)
	return &out
}

// FromSnapshots converts a slice of domain snapshots.
func FromSnapshots(in []model.AnalyticsSnapshot) []Snapshot {
	out := make([]Snapshot, 0, len(in))
	for _, s := range in {
		out = append(out, FromSnapshot(s))
	}
	return out
}

// ToModel converts a stored snapshot.
func (s Snapshot) ToModel() (model.AnalyticsSnapshot, error) {
	clock, err := s.Clock.ToModel()
	if err != nil {
		return model.AnalyticsSnapshot{}, fmt.Errorf("snapshot %s: %w", s.SnapshotID, err)
	}
	return model.AnalyticsSnapshot{
		SnapshotID:       s.SnapshotID,
		MatchID:          s.MatchID,
		Clock:            clock,
		FeaturesByWindow: toFeatureWindows(s.FeaturesByWindow),
		DerivedMetrics:   toMetrics(s.DerivedMetrics),
		Deltas: model.Deltas{
			FeaturesByWindow: toFeatureWindows(s.Deltas.FeaturesByWindow),
			DerivedMetrics:   toMetrics(s.Deltas.DerivedMetrics),
		},
		Why:          s.Why,
		ModelVersion: s.ModelVersion,
		CreatedAt:    s.CreatedAt,
	}, nil
}

// NewStreamUpdate builds the update message for one ingested event.
func NewStreamUpdate(e model.EventSummary, m model.Match, s *model.AnalyticsSnapshot) StreamUpdate {
	return StreamUpdate{
		Type:            StreamTypeUpdate,
		Event:           FromSummary(e),
		MatchState:      FromMatch(m),
		AnalyticsLatest: FromSnapshotPtr(s),
	}
}
