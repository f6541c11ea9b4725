package detect

import (
	"context"
	"math"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// kinematicsPlaceholder is the kinematics feature score until joint-angle features are derived
// from the markers.
const kinematicsPlaceholder = 0.5

// Heuristic adapts per-leg thresholds to the loading asymmetry of the trial and scores every
// candidate by a weighted blend of force, EMG, kinematics and asymmetry features.
type Heuristic struct {
	opts        HeuristicOptions
	fingerprint string
}

func NewHeuristic(opts HeuristicOptions) (*Heuristic, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Heuristic{opts: opts, fingerprint: fingerprint(HeuristicName, opts)}, nil
}

func (d *Heuristic) Name() string        { return HeuristicName }
func (d *Heuristic) Version() string     { return version }
func (d *Heuristic) Fingerprint() string { return d.fingerprint }

// Constraint is the one-time characterization of a trial's loading pattern.
type Constraint struct {
	LegPeak    map[gait.Leg]float64 // Peak smoothed fz per leg, N
	MaxPeak    float64              // Larger of the two leg peaks, N
	Ratio      map[gait.Leg]float64 // LegPeak / MaxPeak
	Adaptation map[gait.Leg]float64 // 1 - Ratio on the lower-loaded leg, 0 on the other
}

// Scale returns the threshold multiplier of a leg: its peak ratio clamped to [minRatio, 1].
func (c Constraint) Scale(leg gait.Leg, minRatio float64) float64 {
	return math.Max(minRatio, math.Min(1, c.Ratio[leg]))
}

// Characterize measures the peak loading of each leg over the whole frame.
func Characterize(fz map[gait.Leg][]float64) Constraint {
	c := Constraint{
		LegPeak:    make(map[gait.Leg]float64, 2),
		Ratio:      make(map[gait.Leg]float64, 2),
		Adaptation: make(map[gait.Leg]float64, 2),
	}
	for _, leg := range gait.Legs {
		c.LegPeak[leg] = math.Max(0, signal.Max(fz[leg]))
		c.MaxPeak = math.Max(c.MaxPeak, c.LegPeak[leg])
	}

	for _, leg := range gait.Legs {
		c.Ratio[leg] = 1
		if c.MaxPeak > 0 {
			c.Ratio[leg] = c.LegPeak[leg] / c.MaxPeak
		}
	}

	if l, r := c.LegPeak[gait.Left], c.LegPeak[gait.Right]; l != r {
		constrained := gait.Left
		if r < l {
			constrained = gait.Right
		}
		c.Adaptation[constrained] = 1 - c.Ratio[constrained]
	}
	return c
}

func (d *Heuristic) Detect(ctx context.Context, f *gait.Frame) (fault.Result[[]gait.Event], error) {
	if f.Len() == 0 {
		return fault.Ok([]gait.Event{}), nil
	}

	o := d.opts
	var result fault.Result[[]gait.Event]

	fz := make(map[gait.Leg][]float64, 2)
	for _, leg := range gait.Legs {
		fz[leg] = smoothForce(f.Plate(leg).Fz(), o.Smoothing)
	}
	c := Characterize(fz)

	var candidates []gait.Event
	for _, leg := range gait.Legs {
		if err := ctx.Err(); err != nil {
			return fault.Result[[]gait.Event]{}, err
		}

		events, warnings := d.detectLeg(f, leg, fz[leg], c)
		candidates = append(candidates, events...)
		result.Add(warnings...)
	}

	events := Finalize(candidates)
	events, suppressed := d.temporalGaps(events)
	if suppressed > 0 {
		result.Add(fault.Warn(fault.RuleRejections, HeuristicName,
			"%d events closer than %.2fs to the previous one suppressed", suppressed, o.MinCycle))
	}

	result.Value = events
	result.Add(noEventWarnings(HeuristicName, events)...)
	return result, nil
}

func (d *Heuristic) detectLeg(f *gait.Frame, leg gait.Leg, fz []float64, c Constraint) ([]gait.Event, []fault.ValidationWarning) {
	o := d.opts
	scale := c.Scale(leg, o.MinRatio)
	window := max(1, samples(o.FeatureWindow, f.SampleRate))

	var warnings []fault.ValidationWarning
	reference := func(channel int) ([]float64, float64) {
		env := envelope(f.EMG[channel], o.EMGSmoothing)
		ref := signal.Percentile(env, o.EMGReference)
		if ref <= 0 {
			warnings = append(warnings, fault.Warn(fault.SilentChannel, gait.EMGChannelName(channel),
				"no EMG activity, neutral EMG score used"))
		}
		return env, ref
	}
	quads, quadsRef := reference(gait.Quadriceps(leg))
	hams, hamsRef := reference(gait.Hamstring(leg))

	m := machine{
		heelStrike: o.HeelStrike * scale,
		toeOff:     o.ToeOff * scale,
		minStance:  samples(o.MinStance, f.SampleRate),
	}

	var events []gait.Event
	for _, tr := range m.run(fz) {
		env, ref := quads, quadsRef
		windowPeak := peak(fz, tr.Index, tr.Index+window)
		if tr.Type == gait.ToeOff {
			env, ref = hams, hamsRef
			windowPeak = peak(fz, tr.Start, tr.Index)
		}

		var forceScore float64
		if lp := c.LegPeak[leg]; lp > 0 {
			forceScore = signal.Clamp01(windowPeak / lp)
		}

		emgScore := 0.5
		if ref > 0 {
			emgScore = signal.Clamp01(peak(env, tr.Index-window, tr.Index+window) / ref)
		}

		asymmetryScore := 1.0
		if c.MaxPeak > 0 {
			asymmetryScore = signal.Clamp01(1 - math.Abs(windowPeak/c.MaxPeak-c.Ratio[leg]))
		}

		w := o.Weights
		fused := w.Force*forceScore + w.EMG*emgScore + w.Kinematics*kinematicsPlaceholder + w.Asymmetry*asymmetryScore
		adaptation := c.Adaptation[leg]
		confidence := math.Min(1, fused*(1+adaptation*o.AdaptationGain))
		if confidence < o.MinConfidence {
			continue
		}

		events = append(events, gait.Event{
			Time:   timeAt(f, tr.Index),
			Type:   tr.Type,
			Leg:    leg,
			Score:  confidence,
			Method: HeuristicName,
			Diagnostics: map[string]float64{
				"force_score":      forceScore,
				"emg_score":        emgScore,
				"kinematics_score": kinematicsPlaceholder,
				"asymmetry_score":  asymmetryScore,
				"adaptation":       adaptation,
				"bout_start":       0,
			},
		})
	}
	return events, warnings
}

// temporalGaps suppresses an event that follows the previous kept event of the same type and leg
// by less than MinCycle, and marks events after a gap above MaxCycle (or the first of their kind)
// as bout starts. events must be sorted.
func (d *Heuristic) temporalGaps(events []gait.Event) ([]gait.Event, int) {
	last := make(map[gait.EventKey]float64, 4)
	out := events[:0]

	var suppressed int
	for _, e := range events {
		t, seen := last[e.Key()]
		switch {
		case seen && e.Time-t < d.opts.MinCycle:
			suppressed++
			continue
		case !seen || e.Time-t > d.opts.MaxCycle:
			e.Diagnostics["bout_start"] = 1
		}
		last[e.Key()] = e.Time
		out = append(out, e)
	}
	return out, suppressed
}
