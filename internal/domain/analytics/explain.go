package analytics

import (
	"fmt"

	"github.com/okian/matchpulse/internal/domain/model"
)

// NoActionsLine is the only explanation when nothing attacking happened.
const NoActionsLine = "No attacking actions in window"

// Explain renders one line per window and side that saw shots or corners,
// 5m before 10m and HOME before AWAY.
func Explain(features map[string]model.SideFeatures) []string {
	var lines []string
	for _, w := range model.Windows() {
		sf, ok := features[w.Label()]
		if !ok {
			continue
		}
		for _, side := range model.Sides() {
			f := sf.Get(side)
			if f.Shots == 0 && f.Corners == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %d shots (%d on target) + %d corners in last %s",
				side, f.Shots, f.ShotsOnTarget, f.Corners, w.Label()))
		}
	}
	if len(lines) == 0 {
		return []string{NoActionsLine}
	}
	return lines
}
