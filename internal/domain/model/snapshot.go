package model

import "time"

// ModelVersion tags snapshots with the analytics formula revision.
const ModelVersion = "v1"

// Derived metric names.
const (
	MetricPressureIndex = "pressure_index"
	MetricMomentum      = "momentum"
	MetricFieldTilt     = "field_tilt"
	MetricDangerNext5m  = "danger_next_5m"
)

// MetricNames lists derived metrics in reporting order.
func MetricNames() []string {
	return []string{MetricPressureIndex, MetricMomentum, MetricFieldTilt, MetricDangerNext5m}
}

// Features are the per-side aggregates over one rolling window.
type Features struct {
	Shots            int
	ShotsOnTarget    int
	Corners          int
	Fouls            int
	Yellows          int
	Reds             int
	XGSum            float64
	AttackingActions int
}

// Sub returns f minus o field by field.
func (f Features) Sub(o Features) Features {
	return Features{
		Shots:            f.Shots - o.Shots,
		ShotsOnTarget:    f.ShotsOnTarget - o.ShotsOnTarget,
		Corners:          f.Corners - o.Corners,
		Fouls:            f.Fouls - o.Fouls,
		Yellows:          f.Yellows - o.Yellows,
		Reds:             f.Reds - o.Reds,
		XGSum:            f.XGSum - o.XGSum,
		AttackingActions: f.AttackingActions - o.AttackingActions,
	}
}

// SideFeatures holds Features for both teams.
type SideFeatures struct {
	Home Features
	Away Features
}

// Get returns the features for side.
func (s SideFeatures) Get(side TeamSide) Features {
	if side == Home {
		return s.Home
	}
	return s.Away
}

// SideValues holds one metric value per team.
type SideValues struct {
	Home float64
	Away float64
}

// Get returns the value for side.
func (s SideValues) Get(side TeamSide) float64 {
	if side == Home {
		return s.Home
	}
	return s.Away
}

// Deltas are the changes relative to the previous snapshot of the match.
// Both maps are empty (not nil) for the first snapshot.
type Deltas struct {
	FeaturesByWindow map[string]SideFeatures
	DerivedMetrics   map[string]SideValues
}

// EmptyDeltas returns Deltas with empty maps.
func EmptyDeltas() Deltas {
	return Deltas{
		FeaturesByWindow: map[string]SideFeatures{},
		DerivedMetrics:   map[string]SideValues{},
	}
}

// AnalyticsSnapshot is the immutable analytics output computed after one
// accepted event.
type AnalyticsSnapshot struct {
	SnapshotID       string
	MatchID          string
	Clock            MatchClock
	FeaturesByWindow map[string]SideFeatures
	DerivedMetrics   map[string]SideValues
	Deltas           Deltas
	Why              []string
	ModelVersion     string
	CreatedAt        time.Time
}
