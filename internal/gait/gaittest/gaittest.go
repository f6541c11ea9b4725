// Package gaittest builds synthetic synchronized frames with known gait events for tests.
package gaittest

import (
	"cmp"
	"math"
	"slices"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// Trial describes a synthetic walking recording. Heel strikes alternate between legs starting with
// the right one; every stance is a trapezoid on fz with linear ramps.
type Trial struct {
	Rate      float64 // Hz
	Duration  float64 // s
	Onset     float64 // first right heel strike, s
	Cycle     float64 // stride time per leg, s
	Stance    float64 // stance time per leg, s
	Ramp      float64 // rise and fall time, s
	RightPeak float64 // N
	LeftPeak  float64 // N
	Burst     float64 // EMG burst amplitude, V
	BurstLen  float64 // EMG burst length, s
}

// Constrained returns a trial resembling a knee-locked left leg: the left plate barely loads while
// the right one compensates.
func Constrained() Trial {
	return Trial{
		Rate:      1000,
		Duration:  12,
		Onset:     0.5,
		Cycle:     1.2,
		Stance:    0.72,
		Ramp:      0.05,
		RightPeak: 700,
		LeftPeak:  40,
		Burst:     1e-3,
		BurstLen:  0.15,
	}
}

// Build renders the frame and the ground-truth events: heel strikes at ramp onset and toe offs
// where the fall reaches zero. Quadriceps bursts straddle each heel strike and hamstring bursts
// straddle each toe off.
func (t Trial) Build() (*gait.Frame, []gait.Event) {
	n := int(math.Round(t.Duration * t.Rate))
	f := &gait.Frame{
		TrialID:    "synthetic",
		SampleRate: t.Rate,
		Timestamps: make([]float64, n),
	}
	for i := range f.Timestamps {
		f.Timestamps[i] = float64(i) / t.Rate
	}
	for c := range gait.NumPlateChannels {
		f.Left[c] = make([]float64, n)
		f.Right[c] = make([]float64, n)
	}
	for c := range gait.NumEMGChannels {
		f.EMG[c] = make([]float64, n)
	}

	var truth []gait.Event
	for _, leg := range gait.Legs {
		peak, first := t.RightPeak, t.Onset
		if leg == gait.Left {
			peak, first = t.LeftPeak, t.Onset+t.Cycle/2
		}
		for k := 0; ; k++ {
			hs := round(first + float64(k)*t.Cycle)
			to := round(hs + t.Stance)
			if to >= t.Duration {
				break
			}
			t.stance(f.Plate(leg).Fz(), hs, to, peak)
			t.burst(f.EMG[gait.Quadriceps(leg)], hs-t.BurstLen/3)
			t.burst(f.EMG[gait.Hamstring(leg)], to-2*t.BurstLen/3)

			truth = append(truth,
				gait.Event{Time: hs, Type: gait.HeelStrike, Leg: leg, Score: 1, Method: "synthetic"},
				gait.Event{Time: to, Type: gait.ToeOff, Leg: leg, Score: 1, Method: "synthetic"},
			)
		}
	}

	slices.SortStableFunc(truth, func(a, b gait.Event) int { return cmp.Compare(a.Time, b.Time) })
	return f, truth
}

func (t Trial) stance(fz []float64, hs, to, peak float64) {
	for i := int(math.Round(hs * t.Rate)); i < len(fz); i++ {
		ts := float64(i) / t.Rate
		switch {
		case ts >= to:
			return
		case ts < hs+t.Ramp:
			fz[i] = max(0, peak*(ts-hs)/t.Ramp)
		case ts > to-t.Ramp:
			fz[i] = peak * (to - ts) / t.Ramp
		default:
			fz[i] = peak
		}
	}
}

func (t Trial) burst(ch []float64, start float64) {
	from := max(0, int(math.Round(start*t.Rate)))
	to := min(len(ch), from+int(math.Round(t.BurstLen*t.Rate)))
	for i := from; i < to; i++ {
		if i%2 == 0 {
			ch[i] = t.Burst
		} else {
			ch[i] = -t.Burst
		}
	}
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// StepHoldFall returns a frame whose fz on both plates is 0 until rise, jumps linearly to peak at
// rise, holds until fall and returns to 0 at end.
func StepHoldFall(rate, duration, rise, fall, end, peak float64) *gait.Frame {
	n := int(math.Round(duration * rate))
	f := &gait.Frame{TrialID: "step", SampleRate: rate, Timestamps: make([]float64, n)}
	for c := range gait.NumPlateChannels {
		f.Left[c] = make([]float64, n)
		f.Right[c] = make([]float64, n)
	}
	for c := range gait.NumEMGChannels {
		f.EMG[c] = make([]float64, n)
	}

	for i := range n {
		ts := float64(i) / rate
		f.Timestamps[i] = ts

		var v float64
		switch {
		case ts < rise:
		case ts <= fall:
			v = peak
		case ts < end:
			v = peak * (end - ts) / (end - fall)
		}
		f.Left[gait.Fz][i] = v
		f.Right[gait.Fz][i] = v
	}
	return f
}
