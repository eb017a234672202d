package conditions

import (
	"math"
	"sort"
	"time"
)

// slackThresholdFt is the height change below which the tide is slack.
const slackThresholdFt = 0.05

// ResolveTidePhase derives the tide phase at now from a height series.
// It returns nil for an empty series. The input slice is not modified.
func ResolveTidePhase(points []TidePoint, now time.Time) *TidePhase {
	if len(points) == 0 {
		return nil
	}

	sorted := make([]TidePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampSeconds < sorted[j].TimestampSeconds
	})

	nowSec := now.Unix()
	idx := len(sorted) - 1
	for i, p := range sorted {
		if p.TimestampSeconds > nowSec {
			idx = i
			break
		}
	}

	current := sorted[idx]
	previous := current
	if idx > 0 {
		previous = sorted[idx-1]
	}

	delta := current.HeightFt - previous.HeightFt
	var phase TidePhase
	switch {
	case math.Abs(delta) < slackThresholdFt:
		phase = TidePhaseSlack
	case delta > 0:
		phase = TidePhaseRising
	default:
		phase = TidePhaseFalling
	}
	return &phase
}
