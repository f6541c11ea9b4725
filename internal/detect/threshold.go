package detect

import (
	"context"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// Threshold detects events from the smoothed vertical force alone, with identical thresholds on
// both legs.
type Threshold struct {
	opts        ThresholdOptions
	fingerprint string
}

func NewThreshold(opts ThresholdOptions) (*Threshold, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Threshold{opts: opts, fingerprint: fingerprint(ThresholdName, opts)}, nil
}

func (d *Threshold) Name() string        { return ThresholdName }
func (d *Threshold) Version() string     { return version }
func (d *Threshold) Fingerprint() string { return d.fingerprint }

// Detect scores every event by how far the stance peak rises above its threshold relative to
// MaxForce. Heel strikes look ahead one minimum stance; toe offs look back over their stance.
func (d *Threshold) Detect(ctx context.Context, f *gait.Frame) (fault.Result[[]gait.Event], error) {
	if f.Len() == 0 {
		return fault.Ok([]gait.Event{}), nil
	}

	o := d.opts
	var events []gait.Event

	for _, leg := range gait.Legs {
		if err := ctx.Err(); err != nil {
			return fault.Result[[]gait.Event]{}, err
		}

		fz := smoothForce(f.Plate(leg).Fz(), o.Smoothing)
		m := machine{
			heelStrike: o.HeelStrike,
			toeOff:     o.ToeOff,
			minStance:  samples(o.MinStance, f.SampleRate),
			minSwing:   samples(o.MinSwing, f.SampleRate),
		}

		lookahead := max(m.minStance, 1)
		for _, tr := range m.run(fz) {
			e := gait.Event{
				Time:   timeAt(f, tr.Index),
				Type:   tr.Type,
				Leg:    leg,
				Method: ThresholdName,
			}

			var p, th, stance float64
			if tr.Type == gait.HeelStrike {
				p, th = peak(fz, tr.Index, tr.Index+lookahead), o.HeelStrike
			} else {
				p, th = peak(fz, tr.Start, tr.Index), o.ToeOff
				stance = float64(tr.Index-tr.Start) / f.SampleRate
			}

			e.Score = signal.Confidence(p, th, o.MaxForce)
			e.Diagnostics = map[string]float64{
				"force_value":     p,
				"threshold":       th,
				"stance_duration": stance,
			}
			events = append(events, e)
		}
	}

	events = Finalize(events)
	result := fault.Ok(events)
	result.Add(noEventWarnings(ThresholdName, events)...)
	return result, nil
}
