package gait

import (
	"fmt"
	"math"
)

const (
	Left  Leg = "left"
	Right Leg = "right"

	HeelStrike EventType = "heel_strike"
	ToeOff     EventType = "toe_off"
)

// Leg identifies the side of the body a plate, muscle or event belongs to.
type Leg string

// Opposite returns the contralateral leg.
func (l Leg) Opposite() Leg {
	if l == Left {
		return Right
	}
	return Left
}

// Valid reports whether l is one of the known legs.
func (l Leg) Valid() bool {
	return l == Left || l == Right
}

// Legs lists both legs in processing order.
var Legs = [2]Leg{Left, Right}

// EventType is the kind of gait event: heel strike (stance onset) or toe off (swing onset).
type EventType string

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	return t == HeelStrike || t == ToeOff
}

// Event is a single detected or annotated gait event.
type Event struct {
	Time        float64            `json:"time"`                  // Seconds on the frame timeline
	Type        EventType          `json:"type"`                  // heel_strike or toe_off
	Leg         Leg                `json:"leg"`                   // left or right
	Score       float64            `json:"confidence"`            // Confidence or threshold deviation in [0,1]
	Method      string             `json:"detection_method"`      // Detector or annotation method that produced it
	Diagnostics map[string]float64 `json:"diagnostics,omitempty"` // Detector specific values, informational only
}

// Key returns the (type, leg) pair used for duplicate suppression and matching.
func (e Event) Key() EventKey {
	return EventKey{Type: e.Type, Leg: e.Leg}
}

// EventKey groups events of the same type on the same leg.
type EventKey struct {
	Type EventType
	Leg  Leg
}

func (k EventKey) String() string {
	return fmt.Sprintf("%s/%s", k.Leg, k.Type)
}

// Frame is the synchronized, immutable view of one trial on the force-plate master timeline.
// Every channel slice has exactly len(Timestamps) samples.
type Frame struct {
	TrialID    string    `json:"trialID"`    // Trial identifier, e.g. "T5"
	SampleRate float64   `json:"sampleRate"` // Master sampling rate in Hz
	Timestamps []float64 `json:"timestamps"` // Seconds, one per master sample
	Left       Plate     `json:"left"`       // Left force plate
	Right      Plate     `json:"right"`      // Right force plate
	EMG        EMG       `json:"emg"`        // 16 EMG channels, decimated to the master rate
	Markers    []Marker  `json:"markers"`    // Motion capture markers, interpolated to the master rate
}

// Len returns the number of master samples.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Timestamps)
}

// Duration returns the covered time span in seconds.
func (f *Frame) Duration() float64 {
	if f.Len() == 0 {
		return 0
	}
	return f.Timestamps[len(f.Timestamps)-1] - f.Timestamps[0] + 1/f.SampleRate
}

// Plate returns the force plate under the given leg.
func (f *Frame) Plate(leg Leg) *Plate {
	if leg == Left {
		return &f.Left
	}
	return &f.Right
}

// Index converts a time on the frame timeline into the nearest sample index, clamped to the
// frame bounds.
func (f *Frame) Index(t float64) int {
	n := f.Len()
	if n == 0 {
		return 0
	}
	i := int(math.Round((t - f.Timestamps[0]) * f.SampleRate))
	return max(0, min(i, n-1))
}

// Slice returns a new frame holding samples [start, end) with timestamps rebased to zero.
// Channel slices are copied so the result shares no memory with f.
func (f *Frame) Slice(start, end int) *Frame {
	start = max(0, start)
	end = min(end, f.Len())
	if start >= end {
		return &Frame{TrialID: f.TrialID, SampleRate: f.SampleRate}
	}

	out := &Frame{
		TrialID:    f.TrialID,
		SampleRate: f.SampleRate,
		Timestamps: make([]float64, end-start),
	}
	origin := f.Timestamps[start]
	for i := range out.Timestamps {
		out.Timestamps[i] = f.Timestamps[start+i] - origin
	}

	for c := range f.Left {
		out.Left[c] = window(f.Left[c], start, end)
		out.Right[c] = window(f.Right[c], start, end)
	}
	for c := range f.EMG {
		out.EMG[c] = window(f.EMG[c], start, end)
	}
	out.Markers = make([]Marker, len(f.Markers))
	for i, m := range f.Markers {
		out.Markers[i] = Marker{
			Name: m.Name,
			X:    window(m.X, start, end),
			Y:    window(m.Y, start, end),
			Z:    window(m.Z, start, end),
		}
	}
	return out
}

func window(s []float64, start, end int) []float64 {
	if len(s) < end {
		return nil
	}
	out := make([]float64, end-start)
	copy(out, s[start:end])
	return out
}

// Marker is a single motion capture marker trajectory, in millimetres.
type Marker struct {
	Name string    `json:"name"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
	Z    []float64 `json:"z"`
}
