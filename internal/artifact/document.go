package artifact

import (
	"slices"
	"strings"

	"github.com/roman-kulish/gait-fusion/internal/align"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/segment"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// Decimal places kept in the document. Rounding is lossy and only shrinks the artifact; it is
// half away from zero and therefore reproducible.
const (
	ForceDecimals      = 1 // 0.1 N
	EMGDecimals        = 6 // 1 uV
	KinematicsDecimals = 1 // 0.1 mm
	TimeDecimals       = 3 // 1 ms
)

// KeyEMGChannels are the EMG channels exported to the document.
var KeyEMGChannels = []int{
	gait.EMG1, gait.EMG2, gait.EMG3, gait.EMG4,
	gait.EMG9, gait.EMG10, gait.EMG11, gait.EMG12,
}

// Metadata describes the exported segment.
type Metadata struct {
	SamplingRate          float64 `json:"sampling_rate"`
	DurationSeconds       float64 `json:"duration_seconds"`
	TotalSamples          int     `json:"total_samples"`
	SynchronizationMethod string  `json:"synchronization_method"`
	SegmentStartTime      float64 `json:"segment_start_time"`
	SegmentEndTime        float64 `json:"segment_end_time"`
}

// ForcePlates holds both plates keyed by channel name ("fx" ... "cop_z").
type ForcePlates struct {
	Left  map[string][]float64 `json:"left_force_plate"`
	Right map[string][]float64 `json:"right_force_plate"`
}

type EMGChannels struct {
	Channels map[string][]float64 `json:"channels"`
}

type Axes struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	Z []float64 `json:"z"`
}

type Kinematics struct {
	Markers map[string]Axes `json:"markers"`
}

// Document is the per-trial artifact consumed by the presentation layer.
type Document struct {
	Metadata    Metadata          `json:"metadata"`
	Timestamps  []float64         `json:"timestamps"`
	ForcePlates ForcePlates       `json:"force_plates"`
	EMG         EMGChannels       `json:"emg"`
	Kinematics  Kinematics        `json:"kinematics"`
	GroundTruth []gait.Event      `json:"ground_truth_events"`
	TrialInfo   map[string]string `json:"trial_info"`
}

// NewDocument builds a rounded document from the segment frame f cut from window. Ground truth
// events lose their diagnostics.
func NewDocument(f *gait.Frame, window segment.Window, truth []gait.Event, info map[string]string) *Document {
	d := &Document{
		Metadata: Metadata{
			SamplingRate:          f.SampleRate,
			DurationSeconds:       signal.Round(f.Duration(), TimeDecimals),
			TotalSamples:          f.Len(),
			SynchronizationMethod: align.Method,
			SegmentStartTime:      signal.Round(window.Start, TimeDecimals),
			SegmentEndTime:        signal.Round(window.End, TimeDecimals),
		},
		Timestamps: signal.RoundAll(f.Timestamps, TimeDecimals),
		ForcePlates: ForcePlates{
			Left:  plateChannels(&f.Left),
			Right: plateChannels(&f.Right),
		},
		EMG:        EMGChannels{Channels: make(map[string][]float64, len(KeyEMGChannels))},
		Kinematics: Kinematics{Markers: make(map[string]Axes, len(f.Markers))},
		TrialInfo:  info,
	}

	for _, c := range KeyEMGChannels {
		if f.EMG[c] != nil {
			d.EMG.Channels[gait.EMGChannelName(c)] = signal.RoundAll(f.EMG[c], EMGDecimals)
		}
	}
	for _, m := range f.Markers {
		d.Kinematics.Markers[m.Name] = Axes{
			X: signal.RoundAll(m.X, KinematicsDecimals),
			Y: signal.RoundAll(m.Y, KinematicsDecimals),
			Z: signal.RoundAll(m.Z, KinematicsDecimals),
		}
	}

	d.GroundTruth = make([]gait.Event, len(truth))
	for i, e := range truth {
		e.Time = signal.Round(e.Time, TimeDecimals)
		e.Diagnostics = nil
		d.GroundTruth[i] = e
	}
	return d
}

func plateChannels(p *gait.Plate) map[string][]float64 {
	out := make(map[string][]float64, gait.NumPlateChannels)
	for c := range p {
		if p[c] != nil {
			out[gait.PlateChannelName(c)] = signal.RoundAll(p[c], ForceDecimals)
		}
	}
	return out
}

// Frame rebuilds a synchronized frame from the document. Channels absent from the document stay
// nil.
func (d *Document) Frame(trialID string) *gait.Frame {
	f := &gait.Frame{
		TrialID:    trialID,
		SampleRate: d.Metadata.SamplingRate,
		Timestamps: d.Timestamps,
	}
	for c := range gait.NumPlateChannels {
		f.Left[c] = d.ForcePlates.Left[gait.PlateChannelName(c)]
		f.Right[c] = d.ForcePlates.Right[gait.PlateChannelName(c)]
	}
	for name, v := range d.EMG.Channels {
		if c, ok := gait.EMGChannelIndex(name); ok {
			f.EMG[c] = v
		}
	}
	for name, a := range d.Kinematics.Markers {
		f.Markers = append(f.Markers, gait.Marker{Name: name, X: a.X, Y: a.Y, Z: a.Z})
	}
	slices.SortFunc(f.Markers, func(a, b gait.Marker) int { return strings.Compare(a.Name, b.Name) })
	return f
}
