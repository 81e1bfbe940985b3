package model

// Match is the authoritative state of one match. Values are never mutated in
// place; Apply returns the successor state.
type Match struct {
	MatchID      string
	HomeTeam     string
	AwayTeam     string
	Status       MatchStatus
	Clock        MatchClock
	Score        Score
	HomeRedCards int
	AwayRedCards int
	Version      int
}

// NewMatch returns a scheduled match at kick-off with version 0.
func NewMatch(matchID, homeTeam, awayTeam string) Match {
	return Match{
		MatchID:  matchID,
		HomeTeam: homeTeam,
		AwayTeam: awayTeam,
		Status:   StatusScheduled,
		Clock:    KickOff(),
	}
}

// Apply folds one event into the match and returns the new state. The clock
// always takes the event's clock, even if it is earlier than the current one.
func (m Match) Apply(e Event) Match {
	next := m
	if next.Status == StatusScheduled {
		next.Status = StatusLive
	}

	switch e.EventType {
	case EventGoal:
		if e.TeamSide == Home {
			next.Score.Home++
		} else {
			next.Score.Away++
		}
	case EventRed:
		if e.TeamSide == Home {
			next.HomeRedCards++
		} else {
			next.AwayRedCards++
		}
	}

	next.Clock = e.Clock
	next.Version = m.Version + 1
	return next
}

// RedCardsFor returns the red cards shown to side.
func (m Match) RedCardsFor(side TeamSide) int {
	if side == Home {
		return m.HomeRedCards
	}
	return m.AwayRedCards
}

// ManAdvantage is home reds minus away reds; positive means away is up a man.
func (m Match) ManAdvantage() int {
	return m.HomeRedCards - m.AwayRedCards
}
