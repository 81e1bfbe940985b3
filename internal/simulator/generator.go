package simulator

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/internal/domain/types"
)

// ProviderName tags every generated event.
const ProviderName = "simulator"

// Generation defaults.
const (
	DefaultHalfMinutes      = 45
	DefaultEventProbability = 0.35

	periods       = 2
	earlyPhaseEnd = 15
	midPhaseEnd   = 30
	secondsPerMin = 60
	xgMin         = 0.02
	xgMax         = 0.85
	xgPrecision   = 1000
)

// Phase weights follow the order of model.EventTypes.
var (
	earlyWeights = []int{2, 1, 1, 4, 2, 0, 1, 0}
	midWeights   = []int{3, 2, 2, 3, 1, 0, 0, 1}
	lateWeights  = []int{4, 3, 3, 2, 1, 0, 0, 2}
)

func phaseWeights(minute int) []int {
	switch {
	case minute < earlyPhaseEnd:
		return earlyWeights
	case minute < midPhaseEnd:
		return midWeights
	default:
		return lateWeights
	}
}

// Generate returns the events of a simulated match in clock order. The same
// seed always yields the same events.
func Generate(matchID string, seed int64, halfMinutes int, probability float64) []Event {
	if halfMinutes <= 0 {
		halfMinutes = DefaultHalfMinutes
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic replay, not security sensitive

	var (
		events []Event
		n      int
	)
	for period := 1; period <= periods; period++ {
		for minute := 0; minute < halfMinutes; minute++ {
			if rng.Float64() > probability {
				continue
			}
			et := pickEventType(rng, phaseWeights(minute))
			side := model.Home
			if rng.Intn(2) == 1 {
				side = model.Away
			}
			second := rng.Intn(secondsPerMin)
			n++

			id := fmt.Sprintf("sim-%s-p%d-%02d-%02d-%d", matchID, period, minute, second, n)
			e := Event{
				EventID:         id,
				MatchID:         matchID,
				Clock:           types.Clock{Period: period, Minute: minute, Second: second},
				TeamSide:        string(side),
				EventType:       string(et),
				ProviderName:    ProviderName,
				ProviderEventID: id,
			}
			if carriesXG(et) {
				e.Payload = map[string]any{"xg": randomXG(rng)}
			}
			events = append(events, e)
		}
	}
	return events
}

func pickEventType(rng *rand.Rand, weights []int) model.EventType {
	eventTypes := model.EventTypes()
	total := 0
	for _, w := range weights {
		total += w
	}
	pick := rng.Intn(total)
	for i, w := range weights {
		if pick < w {
			return eventTypes[i]
		}
		pick -= w
	}
	return eventTypes[len(eventTypes)-1]
}

// randomXG returns an xG value in [xgMin, xgMax] rounded to three decimals.
func randomXG(rng *rand.Rand) float64 {
	v := xgMin + rng.Float64()*(xgMax-xgMin)
	return math.Round(v*xgPrecision) / xgPrecision
}

func carriesXG(t model.EventType) bool {
	switch t {
	case model.EventShot, model.EventShotOnTarget, model.EventGoal:
		return true
	default:
		return false
	}
}
