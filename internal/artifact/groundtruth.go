package artifact

import (
	"math"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

const (
	GroundTruthThreshold  = 100.0 // N
	GroundTruthConfidence = 0.95
	GroundTruthMethod     = "force_threshold"
)

// GroundTruth labels heel strikes where |fz| of the leg rises above threshold and toe offs where it
// falls back to or below it.
func GroundTruth(f *gait.Frame, leg gait.Leg, threshold float64) []gait.Event {
	fz := f.Plate(leg).Fz()
	n := min(len(fz), f.Len())

	var events []gait.Event
	stance := false
	for i := 1; i < n; i++ {
		prev, curr := math.Abs(fz[i-1]), math.Abs(fz[i])

		var typ gait.EventType
		switch {
		case !stance && curr > threshold && prev <= threshold:
			typ, stance = gait.HeelStrike, true
		case stance && curr <= threshold && prev > threshold:
			typ, stance = gait.ToeOff, false
		default:
			continue
		}

		events = append(events, gait.Event{
			Time:   f.Timestamps[i],
			Type:   typ,
			Leg:    leg,
			Score:  GroundTruthConfidence,
			Method: GroundTruthMethod,
		})
	}
	return events
}
