package model

import (
	"fmt"
	"strings"
)

// TeamSide identifies which team an event belongs to.
type TeamSide string

const (
	Home TeamSide = "HOME"
	Away TeamSide = "AWAY"
)

// Sides lists both sides in reporting order.
func Sides() []TeamSide { return []TeamSide{Home, Away} }

// ParseTeamSide parses a side, case-insensitively.
func ParseTeamSide(s string) (TeamSide, error) {
	switch TeamSide(strings.ToUpper(strings.TrimSpace(s))) {
	case Home:
		return Home, nil
	case Away:
		return Away, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// EventType is the kind of match event.
type EventType string

const (
	EventShot         EventType = "SHOT"
	EventShotOnTarget EventType = "SHOT_ON_TARGET"
	EventCorner       EventType = "CORNER"
	EventFoul         EventType = "FOUL"
	EventYellow       EventType = "YELLOW"
	EventRed          EventType = "RED"
	EventSub          EventType = "SUB"
	EventGoal         EventType = "GOAL"
)

// EventTypes lists every supported event type.
func EventTypes() []EventType {
	return []EventType{
		EventShot, EventShotOnTarget, EventCorner, EventFoul,
		EventYellow, EventRed, EventSub, EventGoal,
	}
}

// ParseEventType parses an event type, case-insensitively.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range EventTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
}

// IsAttacking reports whether the type counts towards attacking actions.
func (t EventType) IsAttacking() bool {
	switch t {
	case EventShot, EventShotOnTarget, EventCorner, EventGoal:
		return true
	default:
		return false
	}
}

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	StatusScheduled MatchStatus = "SCHEDULED"
	StatusLive      MatchStatus = "LIVE"
	StatusHalfTime  MatchStatus = "HT"
	StatusFullTime  MatchStatus = "FT"
	StatusPaused    MatchStatus = "PAUSED"
)

// ParseMatchStatus parses a stored status value.
func ParseMatchStatus(s string) (MatchStatus, error) {
	switch st := MatchStatus(s); st {
	case StatusScheduled, StatusLive, StatusHalfTime, StatusFullTime, StatusPaused:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}
