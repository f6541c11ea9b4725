// Package artifact turns a selected segment into the exported trial document: baseline-corrected
// forces, EMG envelopes, ground truth events and the metadata sidecar. It also persists
// hand-annotated ground truth.
package artifact

import (
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

const (
	// BaselineSamples is the number of leading samples averaged into the force offset.
	BaselineSamples = 100

	// EnvelopeHalfWindow is the half width of the EMG envelope average, samples.
	EnvelopeHalfWindow = 50
)

// Preprocess returns a copy of f with the offset of the first BaselineSamples samples removed from
// fx, fy and fz of both plates and every EMG channel replaced by its envelope.
func Preprocess(f *gait.Frame) *gait.Frame {
	out := f.Slice(0, f.Len())
	out.Timestamps = append([]float64(nil), f.Timestamps...)

	for _, leg := range gait.Legs {
		p := out.Plate(leg)
		for _, c := range []int{gait.Fx, gait.Fy, gait.Fz} {
			removeBaseline(p[c])
		}
	}
	for c := range out.EMG {
		if len(out.EMG[c]) > 0 {
			out.EMG[c] = signal.Envelope(out.EMG[c], EnvelopeHalfWindow)
		}
	}
	return out
}

func removeBaseline(x []float64) {
	n := min(BaselineSamples, len(x))
	if n == 0 {
		return
	}
	baseline := signal.Mean(x[:n])
	for i := range x {
		x[i] -= baseline
	}
}
