package metrics

import (
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// MaxStance bounds the search for the toe off closing a stance phase, s.
const MaxStance = 1.0

// Stance is one loading phase of a leg on its force plate.
type Stance struct {
	Leg           gait.Leg `json:"leg"`
	Start         float64  `json:"start_time"`
	End           float64  `json:"end_time"`
	StartIndex    int      `json:"start_index"`
	EndIndex      int      `json:"end_index"`
	Peak          float64  `json:"peak_force"`     // N
	Mean          float64  `json:"avg_force"`      // N
	LoadingRate   float64  `json:"loading_rate"`   // N/s, onset to peak
	UnloadingRate float64  `json:"unloading_rate"` // N/s, peak to toe off
	Impulse       float64  `json:"impulse"`        // N s
}

// Duration returns the stance time, s.
func (s Stance) Duration() float64 {
	return s.End - s.Start
}

// Distribution is each leg's percentage share of a bilateral quantity.
type Distribution struct {
	Left      float64 `json:"left_percentage"`
	Right     float64 `json:"right_percentage"`
	Asymmetry float64 `json:"asymmetry_index"` // |Left - Right|
}

// Force holds stance-phase force measures averaged per leg.
type Force struct {
	Peak          Bilateral    `json:"peak_forces"`
	Mean          Bilateral    `json:"avg_stance_force"`
	LoadingRate   Bilateral    `json:"loading_rates"`
	UnloadingRate Bilateral    `json:"unloading_rates"`
	Impulse       Bilateral    `json:"impulse"`
	Work          Bilateral    `json:"work_done"` // Summed impulse over all stances
	WorkShare     Distribution `json:"work_share"`
	Weight        Distribution `json:"weight_distribution"`
	Variability   Sides        `json:"force_variability"` // CV of stance peaks, %
	Stances       Sides        `json:"stance_count"`
}

// Stances extracts the stance phases of leg from its vertical force: every heel strike paired with
// the first toe off that follows it by less than MaxStance.
func Stances(f *gait.Frame, events []gait.Event, leg gait.Leg) []Stance {
	fz := f.Plate(leg).Fz()
	if f.Len() == 0 || len(fz) == 0 {
		return nil
	}

	strikes := times(events, leg, gait.HeelStrike)
	offs := times(events, leg, gait.ToeOff)
	dt := 1 / f.SampleRate

	var out []Stance
	for _, hs := range strikes {
		j := slices.IndexFunc(offs, func(to float64) bool { return to > hs })
		if j < 0 || offs[j]-hs >= MaxStance {
			continue
		}

		start, end := f.Index(hs), f.Index(offs[j])
		if end < start {
			continue
		}
		forces := fz[start : end+1]

		peakAt := signal.ArgMax(forces)
		s := Stance{
			Leg:        leg,
			Start:      hs,
			End:        offs[j],
			StartIndex: start,
			EndIndex:   end,
			Peak:       forces[peakAt],
			Mean:       signal.Mean(forces),
			Impulse:    signal.Trapezoid(forces, dt),
		}
		if peakAt > 0 {
			s.LoadingRate = (forces[peakAt] - forces[0]) / (float64(peakAt) * dt)
		}
		if last := len(forces) - 1; last > peakAt {
			s.UnloadingRate = (forces[peakAt] - forces[last]) / (float64(last-peakAt) * dt)
		}
		out = append(out, s)
	}
	return out
}

// AnalyzeForce computes per-leg stance force measures for the events on f.
func AnalyzeForce(f *gait.Frame, events []gait.Event) Force {
	var peak, avg, loading, unloading, impulse, work Sides

	var out Force
	for _, leg := range gait.Legs {
		stances := Stances(f, events, leg)

		peaks := make([]float64, len(stances))
		means := make([]float64, len(stances))
		loads := make([]float64, len(stances))
		unloads := make([]float64, len(stances))
		impulses := make([]float64, len(stances))
		for i, s := range stances {
			peaks[i], means[i] = s.Peak, s.Mean
			loads[i], unloads[i] = s.LoadingRate, s.UnloadingRate
			impulses[i] = s.Impulse
		}

		peak.set(leg, signal.Mean(peaks))
		avg.set(leg, signal.Mean(means))
		loading.set(leg, signal.Mean(loads))
		unloading.set(leg, signal.Mean(unloads))
		impulse.set(leg, signal.Mean(impulses))
		work.set(leg, floats.Sum(impulses))
		out.Variability.set(leg, CV(peaks))
		out.Stances.set(leg, float64(len(stances)))
	}

	out.Peak = bilateral(peak)
	out.Mean = bilateral(avg)
	out.LoadingRate = bilateral(loading)
	out.UnloadingRate = bilateral(unloading)
	out.Impulse = bilateral(impulse)
	out.Work = bilateral(work)
	out.WorkShare = distribution(work)
	out.Weight = distribution(avg)
	return out
}

func distribution(s Sides) Distribution {
	total := s.Left + s.Right
	if total <= 0 {
		return Distribution{}
	}
	d := Distribution{Left: s.Left / total * 100, Right: s.Right / total * 100}
	d.Asymmetry = max(d.Left-d.Right, d.Right-d.Left)
	return d
}
