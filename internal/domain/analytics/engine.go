// Package analytics turns the events of a match into rolling-window
// features, derived metrics, deltas and human readable explanations.
package analytics

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/matchpulse/internal/domain/model"
)

// Default formula constants.
const (
	defaultShotWeight         = 1.0
	defaultShotOnTargetWeight = 1.5
	defaultCornerWeight       = 0.8
	defaultXGWeight           = 2.0
	dangerRedCardFactor       = 0.1
	neutralShare              = 0.5
	roundingScale             = 1e4
)

// PressureWeights are the coefficients of the pressure index.
type PressureWeights struct {
	Shot         float64
	ShotOnTarget float64
	Corner       float64
	XG           float64
}

// DefaultPressureWeights returns the v1 coefficients.
func DefaultPressureWeights() PressureWeights {
	return PressureWeights{
		Shot:         defaultShotWeight,
		ShotOnTarget: defaultShotOnTargetWeight,
		Corner:       defaultCornerWeight,
		XG:           defaultXGWeight,
	}
}

// Engine computes analytics snapshots. It holds no per-match state; the same
// inputs always produce the same features, metrics, deltas and explanations.
type Engine struct {
	weights PressureWeights
	newID   func() string
	now     func() time.Time
}

// NewEngine creates an Engine with the v1 formula.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights: DefaultPressureWeights(),
		newID:   func() string { return uuid.NewString() },
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute builds the snapshot for match at clock. events5m and events10m are
// the events inside the 5 and 10 minute windows ending at clock; previous is
// the latest snapshot of the match, or nil.
func (e *Engine) Compute(
	match model.Match,
	events5m, events10m []model.Event,
	clock model.MatchClock,
	previous *model.AnalyticsSnapshot,
) model.AnalyticsSnapshot {
	features := map[string]model.SideFeatures{
		model.Window5m.Label():  Aggregate(events5m),
		model.Window10m.Label(): Aggregate(events10m),
	}
	metrics := e.derive(match, features[model.Window10m.Label()])

	deltas := model.EmptyDeltas()
	if previous != nil {
		deltas = Diff(features, metrics, *previous)
	}

	return model.AnalyticsSnapshot{
		SnapshotID:       e.newID(),
		MatchID:          match.MatchID,
		Clock:            clock,
		FeaturesByWindow: features,
		DerivedMetrics:   metrics,
		Deltas:           deltas,
		Why:              Explain(features),
		ModelVersion:     model.ModelVersion,
		CreatedAt:        e.now(),
	}
}

// Pressure returns the pressure index of one side's features.
func (e *Engine) Pressure(f model.Features) float64 {
	return e.weights.Shot*float64(f.Shots) +
		e.weights.ShotOnTarget*float64(f.ShotsOnTarget) +
		e.weights.Corner*float64(f.Corners) +
		e.weights.XG*f.XGSum
}

func (e *Engine) derive(match model.Match, w10 model.SideFeatures) map[string]model.SideValues {
	pHome, pAway := e.Pressure(w10.Home), e.Pressure(w10.Away)
	momentum := share(pHome, pAway)
	tilt := share(float64(w10.Home.AttackingActions), float64(w10.Away.AttackingActions))

	manAdv := float64(match.ManAdvantage())
	danger := model.SideValues{
		Home: clamp01(Round4(momentum.Home) + dangerRedCardFactor*(-manAdv)),
		Away: clamp01(Round4(momentum.Away) + dangerRedCardFactor*manAdv),
	}

	return map[string]model.SideValues{
		model.MetricPressureIndex: roundSides(model.SideValues{Home: pHome, Away: pAway}),
		model.MetricMomentum:      roundSides(momentum),
		model.MetricFieldTilt:     roundSides(tilt),
		model.MetricDangerNext5m:  roundSides(danger),
	}
}

// share splits home/away into proportions, or 0.5/0.5 when both are zero.
func share(home, away float64) model.SideValues {
	total := home + away
	if total <= 0 {
		return model.SideValues{Home: neutralShare, Away: neutralShare}
	}
	return model.SideValues{Home: home / total, Away: away / total}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*roundingScale) / roundingScale
}

func roundSides(v model.SideValues) model.SideValues {
	return model.SideValues{Home: Round4(v.Home), Away: Round4(v.Away)}
}
