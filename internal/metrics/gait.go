// Package metrics derives temporal gait parameters and stance-phase force measures from detected
// events.
package metrics

import (
	"cmp"
	"math"
	"slices"

	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// Sides holds one value per leg.
type Sides struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Get returns the value of a leg.
func (s Sides) Get(leg gait.Leg) float64 {
	if leg == gait.Left {
		return s.Left
	}
	return s.Right
}

func (s *Sides) set(leg gait.Leg, v float64) {
	if leg == gait.Left {
		s.Left = v
	} else {
		s.Right = v
	}
}

// Bilateral is a per-leg value with its percentage asymmetry.
type Bilateral struct {
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
	Asymmetry float64 `json:"asymmetry"`
}

func bilateral(s Sides) Bilateral {
	return Bilateral{Left: s.Left, Right: s.Right, Asymmetry: Asymmetry(s.Left, s.Right)}
}

// Cycle is one gait cycle of a leg. Stride and swing are zero on the last cycle, which has no next
// heel strike.
type Cycle struct {
	Leg        gait.Leg `json:"leg"`
	HeelStrike float64  `json:"heel_strike"`
	ToeOff     float64  `json:"toe_off"`
	Stance     float64  `json:"stance"`
	Swing      float64  `json:"swing,omitempty"`
	Stride     float64  `json:"stride,omitempty"`
	Complete   bool     `json:"complete"`
}

// Gait holds the temporal parameters of a walking bout. Times are in seconds, frequencies per
// minute, asymmetries and CVs in percent.
type Gait struct {
	Stance        Sides   `json:"avg_stance_time"`
	Swing         Sides   `json:"avg_swing_time"`
	Stride        Sides   `json:"avg_stride_time"`
	Step          Sides   `json:"avg_step_time"`
	SingleSupport Sides   `json:"single_support_time"`
	DoubleSupport float64 `json:"double_support_time"`
	CycleTime     float64 `json:"gait_cycle_time"`

	Cadence         float64 `json:"cadence"`
	StrideFrequency Sides   `json:"stride_frequency"`

	StanceAsymmetry float64 `json:"stance_time_asymmetry"`
	SwingAsymmetry  float64 `json:"swing_time_asymmetry"`
	StrideAsymmetry float64 `json:"stride_time_asymmetry"`

	StrideCV Sides `json:"stride_time_cv"`
	StanceCV Sides `json:"stance_time_cv"`

	Strides    Sides `json:"total_strides"`
	TotalSteps int   `json:"total_steps"`
}

// Cycles pairs every heel strike of leg with the first toe off before the next heel strike of the
// same leg. Heel strikes without such a toe off open no cycle.
func Cycles(events []gait.Event, leg gait.Leg) []Cycle {
	strikes := times(events, leg, gait.HeelStrike)
	offs := times(events, leg, gait.ToeOff)

	var out []Cycle
	for i, hs := range strikes {
		next := math.Inf(1)
		if i+1 < len(strikes) {
			next = strikes[i+1]
		}

		j, _ := slices.BinarySearch(offs, math.Nextafter(hs, math.Inf(1)))
		if j == len(offs) || offs[j] >= next {
			continue
		}

		c := Cycle{Leg: leg, HeelStrike: hs, ToeOff: offs[j], Stance: offs[j] - hs}
		if !math.IsInf(next, 1) {
			c.Stride = next - hs
			c.Swing = next - offs[j]
			c.Complete = true
		}
		out = append(out, c)
	}
	return out
}

// StepTimes returns, for every heel strike of leg, the time to the next heel strike of the opposite
// leg.
func StepTimes(events []gait.Event, leg gait.Leg) []float64 {
	strikes := times(events, leg, gait.HeelStrike)
	opposite := times(events, leg.Opposite(), gait.HeelStrike)

	var out []float64
	for _, hs := range strikes {
		j, _ := slices.BinarySearch(opposite, math.Nextafter(hs, math.Inf(1)))
		if j < len(opposite) {
			out = append(out, opposite[j]-hs)
		}
	}
	return out
}

// AnalyzeGait computes temporal gait parameters from events over a bout of duration seconds.
func AnalyzeGait(events []gait.Event, duration float64) Gait {
	var g Gait
	var allStrides []float64
	cycles := make(map[gait.Leg][]Cycle, 2)

	for _, leg := range gait.Legs {
		cycles[leg] = Cycles(events, leg)

		var stance, swing, stride []float64
		for _, c := range cycles[leg] {
			stance = append(stance, c.Stance)
			if c.Complete {
				swing = append(swing, c.Swing)
				stride = append(stride, c.Stride)
			}
		}
		allStrides = append(allStrides, stride...)

		g.Stance.set(leg, signal.Mean(stance))
		g.Swing.set(leg, signal.Mean(swing))
		g.Stride.set(leg, signal.Mean(stride))
		g.Step.set(leg, signal.Mean(StepTimes(events, leg)))
		g.StrideCV.set(leg, CV(stride))
		g.StanceCV.set(leg, CV(stance))
		g.Strides.set(leg, float64(len(stride)))
		if duration > 0 {
			g.StrideFrequency.set(leg, float64(len(stride))/duration*60)
		}

		g.TotalSteps += len(times(events, leg, gait.HeelStrike))
	}

	// A leg is in single support while the other swings.
	g.SingleSupport = Sides{Left: g.Swing.Right, Right: g.Swing.Left}

	g.CycleTime = signal.Mean(allStrides)
	g.DoubleSupport = doubleSupport(cycles[gait.Left], cycles[gait.Right])
	if duration > 0 {
		g.Cadence = float64(g.TotalSteps) / duration * 60
	}

	g.StanceAsymmetry = Asymmetry(g.Stance.Left, g.Stance.Right)
	g.SwingAsymmetry = Asymmetry(g.Swing.Left, g.Swing.Right)
	g.StrideAsymmetry = Asymmetry(g.Stride.Left, g.Stride.Right)
	return g
}

// doubleSupport returns the time both legs are in stance per complete left cycle.
func doubleSupport(left, right []Cycle) float64 {
	var complete int
	for _, c := range left {
		if c.Complete {
			complete++
		}
	}
	if complete == 0 {
		return 0
	}

	var overlap float64
	for _, l := range left {
		for _, r := range right {
			overlap += max(0, min(l.ToeOff, r.ToeOff)-max(l.HeelStrike, r.HeelStrike))
		}
	}
	return overlap / float64(complete)
}

// Asymmetry returns |l - r| / ((l + r) / 2) x 100, or 0 when both are zero.
func Asymmetry(l, r float64) float64 {
	if l == 0 && r == 0 {
		return 0
	}
	return math.Abs(l-r) / ((l + r) / 2) * 100
}

// CV returns the sample coefficient of variation in percent, 0 for fewer than two values.
func CV(x []float64) float64 {
	return signal.CV(x) * 100
}

func times(events []gait.Event, leg gait.Leg, typ gait.EventType) []float64 {
	var out []float64
	for _, e := range events {
		if e.Leg == leg && e.Type == typ {
			out = append(out, e.Time)
		}
	}
	slices.SortFunc(out, cmp.Compare[float64])
	return out
}
