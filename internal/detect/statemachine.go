package detect

import (
	"math"
	"slices"

	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// transition is a state change of the per-leg machine. For toe offs Start is the index of the
// heel strike that opened the stance.
type transition struct {
	Type  gait.EventType
	Index int
	Start int
}

// machine is the swing/stance state machine shared by all detectors. It starts in swing.
//
// swing -> stance on an upward crossing of heelStrike, once minSwing samples have passed since the
// last toe off. stance -> swing on a downward crossing of toeOff, once minStance samples have
// passed since the heel strike.
type machine struct {
	heelStrike float64
	toeOff     float64
	minStance  int
	minSwing   int

	// gate, when set, decides whether a transition is emitted. A rejected heel strike keeps the
	// machine in swing; a rejected toe off still returns it to swing.
	gate func(tr transition) bool
}

func (m machine) run(x []float64) []transition {
	var out []transition
	stance := false
	lastHS, lastTO := 0, -1

	for i := 1; i < len(x); i++ {
		prev, curr := x[i-1], x[i]

		switch {
		case !stance && curr > m.heelStrike && prev <= m.heelStrike:
			if lastTO >= 0 && i-lastTO < m.minSwing {
				continue
			}
			tr := transition{Type: gait.HeelStrike, Index: i, Start: i}
			if m.gate != nil && !m.gate(tr) {
				continue
			}
			out = append(out, tr)
			stance = true
			lastHS = i

		case stance && curr < m.toeOff && prev >= m.toeOff:
			if i-lastHS < m.minStance {
				continue
			}
			tr := transition{Type: gait.ToeOff, Index: i, Start: lastHS}
			stance = false
			lastTO = i
			if m.gate != nil && !m.gate(tr) {
				continue
			}
			out = append(out, tr)
		}
	}
	return out
}

// smoothForce returns the trailing moving average of x with non-finite samples read as 0.
func smoothForce(x []float64, window int) []float64 {
	clean := slices.Clone(x)
	signal.Sanitize(clean)
	return signal.MovingAverage(clean, window)
}

// envelope returns the rectified, centered-average EMG envelope with non-finite samples read as 0.
func envelope(x []float64, half int) []float64 {
	clean := slices.Clone(x)
	signal.Sanitize(clean)
	return signal.Envelope(clean, half)
}

func samples(seconds, rate float64) int {
	return int(math.Round(seconds * rate))
}

// peak returns the maximum of x over [from, to], clipped to the slice.
func peak(x []float64, from, to int) float64 {
	from = max(0, from)
	to = min(len(x)-1, to)
	if from > to {
		return 0
	}
	return signal.Max(x[from : to+1])
}

// activeShare returns the share of x[from, to) above threshold and the largest such value.
func activeShare(x []float64, from, to int, threshold float64) (share, strength float64) {
	from = max(0, from)
	to = min(len(x), to)
	if from >= to {
		return 0, 0
	}

	var active int
	for _, v := range x[from:to] {
		if v > threshold {
			active++
			strength = max(strength, v)
		}
	}
	return float64(active) / float64(to-from), strength
}

// timeAt returns the frame time of sample i, extrapolating from the rate past the timestamps.
func timeAt(f *gait.Frame, i int) float64 {
	if i < len(f.Timestamps) {
		return f.Timestamps[i]
	}
	return f.Timestamps[0] + float64(i)/f.SampleRate
}
