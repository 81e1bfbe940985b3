package model

import "time"

// DefaultProvider is used when an event arrives without a provider name.
const DefaultProvider = "api"

// Event is a single immutable match occurrence.
type Event struct {
	EventID         string
	MatchID         string
	ProviderName    string
	ProviderEventID string
	Clock           MatchClock
	TeamSide        TeamSide
	EventType       EventType
	Payload         map[string]any
	IngestedAt      time.Time
}

// EventSummary is the minimal event view pushed on the live stream.
type EventSummary struct {
	EventID   string
	Clock     MatchClock
	TeamSide  TeamSide
	EventType EventType
}

// IsAttackingAction reports whether the event is a shot, shot on target,
// corner or goal.
func (e Event) IsAttackingAction() bool {
	return e.EventType.IsAttacking()
}

// XG returns the numeric "xg" payload value, if one is present.
func (e Event) XG() (float64, bool) {
	if e.Payload == nil {
		return 0, false
	}
	switch v := e.Payload["xg"].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Summary returns the stream view of the event.
func (e Event) Summary() EventSummary {
	return EventSummary{
		EventID:   e.EventID,
		Clock:     e.Clock,
		TeamSide:  e.TeamSide,
		EventType: e.EventType,
	}
}

// Provider returns the provider name, falling back to DefaultProvider.
func (e Event) Provider() string {
	if e.ProviderName == "" {
		return DefaultProvider
	}
	return e.ProviderName
}
