// Package simulator generates deterministic match events and replays them
// against a running matchpulse API.
package simulator

import (
	"time"

	"github.com/okian/matchpulse/internal/domain/types"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL          string        // Base URL of the service
	MatchID          string        // Match to create and feed
	HomeTeam         string        // Home team name used on create
	AwayTeam         string        // Away team name used on create
	Seed             int64         // RNG seed; the same seed replays the same match
	HalfMinutes      int           // Minutes simulated per period
	EventProbability float64       // Chance of one event per simulated minute
	Delay            time.Duration // Pause between posted events
	Timeout          time.Duration // HTTP request timeout
	Create           bool          // Create the match before posting events
	Verbose          bool          // Log every posted event
}

// Event is the body of POST /api/v1/events.
type Event struct {
	EventID         string         `json:"event_id"`
	MatchID         string         `json:"match_id"`
	Clock           types.Clock    `json:"clock"`
	TeamSide        string         `json:"team_side"`
	EventType       string         `json:"event_type"`
	Payload         map[string]any `json:"payload,omitempty"`
	ProviderName    string         `json:"provider_name"`
	ProviderEventID string         `json:"provider_event_id"`
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated int
	EventsAccepted  int
	EventsDuplicate int
	EventsFailed    int
	MatchCreated    bool
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
