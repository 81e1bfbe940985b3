package simulator

import "os"

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`matchpulse simulator
====================

Creates a match and replays a deterministic, seeded sequence of match events
against the matchpulse API.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -match string
        Match ID (default "sim-match-1")
  -home string
        Home team name (default "Home FC")
  -away string
        Away team name (default "Away FC")
  -seed int
        RNG seed for deterministic replay (default 42)
  -half-minutes int
        Minutes per half, 5 for a quick demo, 45 for a full match (default 5)
  -event-prob float
        Probability of an event per minute (default 0.4)
  -delay duration
        Pause between posted events (default 0)
  -timeout duration
        HTTP request timeout (default 30s)
  -no-create
        Assume the match already exists
  -verbose
        Log every posted event
  -help
        Show this help message

Examples:
  # Quick demo against a local server
  go run ./cmd/simulate

  # Full match, one event every 2 seconds, watched in the browser viewer
  go run ./cmd/simulate -half-minutes 45 -delay 2s -match demo
`)
}
