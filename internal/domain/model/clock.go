// Package model contains the immutable domain values passed between layers:
// match clock, score, rolling windows, matches, events and analytics
// snapshots.
package model

import (
	"fmt"
	"strconv"
)

// Clock bounds.
const (
	minPeriod        = 1
	maxSecond        = 59
	secondsPerMinute = 60
)

// MatchClock is a point in match time. Values are totally ordered by period
// and then by the elapsed seconds within that period.
type MatchClock struct {
	Period int
	Minute int
	Second int
}

// NewMatchClock validates and builds a MatchClock.
func NewMatchClock(period, minute, second int) (MatchClock, error) {
	switch {
	case period < minPeriod:
		return MatchClock{}, fmt.Errorf("%w: period must be >= %d, got %d", ErrInvalidClock, minPeriod, period)
	case minute < 0:
		return MatchClock{}, fmt.Errorf("%w: minute must be >= 0, got %d", ErrInvalidClock, minute)
	case second < 0 || second > maxSecond:
		return MatchClock{}, fmt.Errorf("%w: second must be 0..%d, got %d", ErrInvalidClock, maxSecond, second)
	}
	return MatchClock{Period: period, Minute: minute, Second: second}, nil
}

// KickOff is the clock of a freshly created match.
func KickOff() MatchClock {
	return MatchClock{Period: minPeriod}
}

// SecondsInPeriod returns minute*60+second.
func (c MatchClock) SecondsInPeriod() int {
	return c.Minute*secondsPerMinute + c.Second
}

// Compare returns -1, 0 or +1 when c is before, equal to or after o.
func (c MatchClock) Compare(o MatchClock) int {
	if c.Period != o.Period {
		if c.Period < o.Period {
			return -1
		}
		return 1
	}
	a, b := c.SecondsInPeriod(), o.SecondsInPeriod()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether c is strictly earlier than o.
func (c MatchClock) Before(o MatchClock) bool { return c.Compare(o) < 0 }

func (c MatchClock) String() string {
	return fmt.Sprintf("P%d %02d:%02d", c.Period, c.Minute, c.Second)
}

// Score is a non-negative home/away goal tally.
type Score struct {
	Home int
	Away int
}

// NewScore validates and builds a Score.
func NewScore(home, away int) (Score, error) {
	if home < 0 || away < 0 {
		return Score{}, fmt.Errorf("%w: scores must be non-negative, got %d-%d", ErrInvalidScore, home, away)
	}
	return Score{Home: home, Away: away}, nil
}

// GoalDiffFor returns the goal difference from the perspective of side.
func (s Score) GoalDiffFor(side TeamSide) int {
	if side == Home {
		return s.Home - s.Away
	}
	return s.Away - s.Home
}

// RollingWindow is a trailing span of match minutes used for aggregation.
type RollingWindow struct {
	minutes int
}

// Supported windows.
var (
	Window5m  = RollingWindow{minutes: 5}
	Window10m = RollingWindow{minutes: 10}
)

// Windows lists the supported windows in reporting order.
func Windows() []RollingWindow {
	return []RollingWindow{Window5m, Window10m}
}

// NewRollingWindow accepts only 5 or 10 minutes.
func NewRollingWindow(minutes int) (RollingWindow, error) {
	switch minutes {
	case Window5m.minutes:
		return Window5m, nil
	case Window10m.minutes:
		return Window10m, nil
	default:
		return RollingWindow{}, fmt.Errorf("%w: minutes must be 5 or 10, got %d", ErrInvalidWindow, minutes)
	}
}

// Minutes returns the window length.
func (w RollingWindow) Minutes() int { return w.minutes }

// Label returns the "<minutes>m" form used as a map key in snapshots.
func (w RollingWindow) Label() string { return strconv.Itoa(w.minutes) + "m" }

// Bounds returns the inclusive [start,end] seconds-in-period span this
// window covers when it ends at end. The start is clamped at minute 0.
func (w RollingWindow) Bounds(end MatchClock) (startSec, endSec int) {
	startMinute := end.Minute - w.minutes
	if startMinute < 0 {
		startMinute = 0
	}
	return startMinute * secondsPerMinute, end.SecondsInPeriod()
}

// Contains reports whether clock falls inside the window ending at end.
// Windows never reach into a previous period.
func (w RollingWindow) Contains(end, clock MatchClock) bool {
	if clock.Period != end.Period {
		return false
	}
	startSec, endSec := w.Bounds(end)
	s := clock.SecondsInPeriod()
	return s >= startSec && s <= endSec
}
