package detect

import (
	"cmp"
	"math"
	"slices"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// DuplicateWindow is the span within which two events of the same type on the same leg collapse
// into the earlier one, s.
const DuplicateWindow = 0.05

// Finalize drops invalid events, sorts by time (stable) and removes (type, leg) duplicates closer
// than DuplicateWindow, keeping the earlier event.
func Finalize(events []gait.Event) []gait.Event {
	valid := make([]gait.Event, 0, len(events))
	for _, e := range events {
		if Valid(e) {
			valid = append(valid, e)
		}
	}

	slices.SortStableFunc(valid, func(a, b gait.Event) int {
		return cmp.Compare(a.Time, b.Time)
	})

	out := valid[:0]
	last := make(map[gait.EventKey]float64, 4)
	for _, e := range valid {
		if t, ok := last[e.Key()]; ok && e.Time-t < DuplicateWindow {
			continue
		}
		last[e.Key()] = e.Time
		out = append(out, e)
	}
	return out
}

// Valid reports whether e has a non-negative finite time, a score in [0, 1] and a known type and leg.
func Valid(e gait.Event) bool {
	return e.Time >= 0 && !math.IsInf(e.Time, 0) &&
		e.Score >= 0 && e.Score <= 1 &&
		e.Type.Valid() && e.Leg.Valid()
}
