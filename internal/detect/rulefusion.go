package detect

import (
	"cmp"
	"context"
	"slices"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// RuleFusion confirms force transitions with EMG activity: quadriceps around heel strikes and
// hamstrings around toe offs. Heel strikes must alternate between legs.
type RuleFusion struct {
	opts        RuleFusionOptions
	fingerprint string
}

func NewRuleFusion(opts RuleFusionOptions) (*RuleFusion, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &RuleFusion{opts: opts, fingerprint: fingerprint(RuleFusionName, opts)}, nil
}

func (d *RuleFusion) Name() string        { return RuleFusionName }
func (d *RuleFusion) Version() string     { return version }
func (d *RuleFusion) Fingerprint() string { return d.fingerprint }

func (d *RuleFusion) Detect(ctx context.Context, f *gait.Frame) (fault.Result[[]gait.Event], error) {
	if f.Len() == 0 {
		return fault.Ok([]gait.Event{}), nil
	}

	var result fault.Result[[]gait.Event]
	var events []gait.Event
	for _, leg := range gait.Legs {
		if err := ctx.Err(); err != nil {
			return fault.Result[[]gait.Event]{}, err
		}
		confirmed, unconfirmed := d.detectLeg(f, leg)
		events = append(events, confirmed...)
		if unconfirmed > 0 {
			result.Add(fault.WarnN(fault.Unconfirmed, string(leg), unconfirmed,
				"%d force transitions without EMG confirmation", unconfirmed))
		}
	}

	kept := events[:0]
	for _, e := range events {
		if e.Score > d.opts.MinScore {
			kept = append(kept, e)
		}
	}

	kept, rejected := d.alternate(kept)
	if rejected > 0 {
		result.Add(fault.Warn(fault.RuleRejections, RuleFusionName,
			"%d heel strikes dropped by the alternation rule", rejected))
	}

	result.Value = Finalize(kept)
	result.Add(noEventWarnings(RuleFusionName, result.Value)...)
	return result, nil
}

// detectLeg returns the EMG-confirmed events of leg and the number of force transitions the EMG
// gate rejected.
func (d *RuleFusion) detectLeg(f *gait.Frame, leg gait.Leg) ([]gait.Event, int) {
	o := d.opts

	th := o.ForceThreshold
	if leg == o.ConstrainedLeg {
		th *= o.ConstrainedFactor
	}
	toeOff := th * o.ToeOffRatio

	fz := smoothForce(f.Plate(leg).Fz(), o.Smoothing)
	quads := envelope(f.EMG[gait.Quadriceps(leg)], o.EMGSmoothing)
	hams := envelope(f.EMG[gait.Hamstring(leg)], o.EMGSmoothing)
	window := max(1, samples(o.EMGWindow, f.SampleRate))
	minStance := samples(o.MinStance, f.SampleRate)
	lookahead := max(minStance, 1)

	var events []gait.Event
	var unconfirmed int
	m := machine{
		heelStrike: th,
		toeOff:     toeOff,
		minStance:  minStance,
	}
	m.gate = func(tr transition) bool {
		env, forceTh, emgTh := quads, th, o.EMGThreshold
		p := peak(fz, tr.Index, tr.Index+lookahead)
		if tr.Type == gait.ToeOff {
			env, forceTh, emgTh = hams, toeOff, o.EMGThreshold*o.ToeOffEMGRatio
			p = peak(fz, tr.Start, tr.Index)
		}

		share, strength := activeShare(env, tr.Index-window, tr.Index+window, emgTh)
		if share <= o.EMGFraction {
			unconfirmed++
			return false
		}

		forceConf := signal.Confidence(p, forceTh, o.MaxForce)
		emgConf := signal.Confidence(strength, emgTh, o.MaxEMG)
		score := o.ForceWeight*forceConf + o.EMGWeight*emgConf
		if forceConf > o.Agreement && emgConf > o.Agreement {
			score = min(1, score*o.Boost)
		}

		events = append(events, gait.Event{
			Time:   timeAt(f, tr.Index),
			Type:   tr.Type,
			Leg:    leg,
			Score:  score,
			Method: RuleFusionName,
			Diagnostics: map[string]float64{
				"force_confidence": forceConf,
				"emg_confidence":   emgConf,
				"emg_confirmed":    1,
			},
		})
		return true
	}
	m.run(fz)

	return events, unconfirmed
}

// alternate enforces right, left, right, ... on heel strikes. An off-turn heel strike survives only
// above AlternationOverride and then resets the expected leg. Toe offs pass through.
func (d *RuleFusion) alternate(events []gait.Event) ([]gait.Event, int) {
	var strikes, out []gait.Event
	for _, e := range events {
		if e.Type == gait.HeelStrike {
			strikes = append(strikes, e)
		} else {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(strikes, func(a, b gait.Event) int { return cmp.Compare(a.Time, b.Time) })

	var rejected int
	expected := gait.Right
	for _, e := range strikes {
		if e.Leg != expected && e.Score <= d.opts.AlternationOverride {
			rejected++
			continue
		}
		out = append(out, e)
		expected = e.Leg.Opposite()
	}
	return out, rejected
}
