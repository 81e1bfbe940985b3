// Package types contains the JSON views of domain values shared by the HTTP
// API, the live stream and the storage codecs.
package types

import "time"

// Clock is the wire form of model.MatchClock.
type Clock struct {
	Period int `json:"period"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// Score is the wire form of model.Score.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// MatchState is the wire form of model.Match.
type MatchState struct {
	MatchID      string `json:"match_id"`
	HomeTeam     string `json:"home_team"`
	AwayTeam     string `json:"away_team"`
	Status       string `json:"status"`
	Clock        Clock  `json:"clock"`
	Score        Score  `json:"score"`
	HomeRedCards int    `json:"home_red_cards"`
	AwayRedCards int    `json:"away_red_cards"`
	Version      int    `json:"version"`
}

// EventSummary is the minimal event pushed to stream subscribers.
type EventSummary struct {
	EventID   string `json:"event_id"`
	Clock     Clock  `json:"clock"`
	TeamSide  string `json:"team_side"`
	EventType string `json:"event_type"`
}

// Event is the full wire form of model.Event.
type Event struct {
	EventID         string         `json:"event_id"`
	MatchID         string         `json:"match_id"`
	ProviderName    string         `json:"provider_name"`
	ProviderEventID string         `json:"provider_event_id,omitempty"`
	Clock           Clock          `json:"clock"`
	TeamSide        string         `json:"team_side"`
	EventType       string         `json:"event_type"`
	Payload         map[string]any `json:"payload,omitempty"`
	IngestedAt      time.Time      `json:"ingested_at_utc"`
}

// Features is the wire form of model.Features.
type Features struct {
	Shots                 int     `json:"shots"`
	ShotsOnTarget         int     `json:"shots_on_target"`
	Corners               int     `json:"corners"`
	Fouls                 int     `json:"fouls"`
	Yellows               int     `json:"yellows"`
	Reds                  int     `json:"reds"`
	XGSum                 float64 `json:"xg_sum"`
	AttackingActionsCount int     `json:"attacking_actions_count"`
}

// SideFeatures maps "HOME"/"AWAY" to features.
type SideFeatures map[string]Features

// SideValues maps "HOME"/"AWAY" to a metric value.
type SideValues map[string]float64

// Deltas is the wire form of model.Deltas.
type Deltas struct {
	FeaturesByWindow map[string]SideFeatures `json:"features_by_window"`
	DerivedMetrics   map[string]SideValues   `json:"derived_metrics"`
}

// Snapshot is the wire form of model.AnalyticsSnapshot.
type Snapshot struct {
	SnapshotID       string                  `json:"snapshot_id"`
	MatchID          string                  `json:"match_id"`
	Clock            Clock                   `json:"clock"`
	FeaturesByWindow map[string]SideFeatures `json:"features_by_window"`
	DerivedMetrics   map[string]SideValues   `json:"derived_metrics"`
	Deltas           Deltas                  `json:"deltas"`
	Why              []string                `json:"why"`
	ModelVersion     string                  `json:"model_version"`
	CreatedAt        time.Time               `json:"created_at_utc"`
}

// StreamUpdate is pushed to subscribers after an ingest.
type StreamUpdate struct {
	Type            string       `json:"type"`
	Event           EventSummary `json:"event"`
	MatchState      MatchState   `json:"match_state"`
	AnalyticsLatest *Snapshot    `json:"analytics_latest"`
}

// StreamControl carries the connected/pong control messages.
type StreamControl struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id,omitempty"`
}

// Stream message types.
const (
	StreamTypeConnected = "connected"
	StreamTypeUpdate    = "update"
	StreamTypePong      = "pong"
)
