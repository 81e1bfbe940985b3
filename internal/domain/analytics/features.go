package analytics

import "github.com/okian/matchpulse/internal/domain/model"

// Aggregate counts the per-side features of events.
func Aggregate(events []model.Event) model.SideFeatures {
	var out model.SideFeatures
	for _, ev := range events {
		f := &out.Home
		if ev.TeamSide == model.Away {
			f = &out.Away
		}
		switch ev.EventType {
		case model.EventShot:
			f.Shots++
		case model.EventShotOnTarget:
			f.ShotsOnTarget++
		case model.EventCorner:
			f.Corners++
		case model.EventFoul:
			f.Fouls++
		case model.EventYellow:
			f.Yellows++
		case model.EventRed:
			f.Reds++
		}
		if ev.IsAttackingAction() {
			f.AttackingActions++
		}
		if xg, ok := ev.XG(); ok {
			f.XGSum += xg
		}
	}
	out.Home.XGSum = Round4(out.Home.XGSum)
	out.Away.XGSum = Round4(out.Away.XGSum)
	return out
}

// Diff returns the change of features and metrics against previous. Windows
// or metrics missing from previous count from zero.
func Diff(
	features map[string]model.SideFeatures,
	metrics map[string]model.SideValues,
	previous model.AnalyticsSnapshot,
) model.Deltas {
	out := model.EmptyDeltas()
	for w, cur := range features {
		prev := previous.FeaturesByWindow[w]
		out.FeaturesByWindow[w] = model.SideFeatures{
			Home: roundFeatures(cur.Home.Sub(prev.Home)),
			Away: roundFeatures(cur.Away.Sub(prev.Away)),
		}
	}
	for name, cur := range metrics {
		prev := previous.DerivedMetrics[name]
		out.DerivedMetrics[name] = roundSides(model.SideValues{
			Home: cur.Home - prev.Home,
			Away: cur.Away - prev.Away,
		})
	}
	return out
}

func roundFeatures(f model.Features) model.Features {
	f.XGSum = Round4(f.XGSum)
	return f
}
