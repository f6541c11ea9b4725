package app

import (
	"errors"
	"math"
	"sort"

	"github.com/roman-kulish/gait-fusion/internal/artifact"
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

var errEmptyTrace = errors.New("no samples to plot")

// TraceData holds the vertical force of both plates over one interval and the events on it.
type TraceData struct {
	TrialID     string
	Source      string // Detector or ground truth method of the events
	Timestamps  []float64
	Left, Right []float64
	Events      []gait.Event
	ForceMax    float64
}

// NewTraceData takes |fz| of both plates from the document, cut to [from, to] when set.
func NewTraceData(trialID string, d *artifact.Document, from, to *float64) (*TraceData, error) {
	ts := d.Timestamps
	start, end := 0, len(ts)
	if from != nil {
		start = sort.SearchFloat64s(ts, *from)
	}
	if to != nil {
		end = sort.Search(len(ts), func(i int) bool { return ts[i] > *to })
	}
	if start >= end {
		return nil, errEmptyTrace
	}

	t := TraceData{
		TrialID:    trialID,
		Timestamps: ts[start:end],
		Left:       absWindow(d.ForcePlates.Left["fz"], start, end),
		Right:      absWindow(d.ForcePlates.Right["fz"], start, end),
	}
	for _, fz := range [][]float64{t.Left, t.Right} {
		for _, v := range fz {
			if !math.IsNaN(v) {
				t.ForceMax = max(t.ForceMax, v)
			}
		}
	}
	return &t, nil
}

// SetEvents keeps the events inside the traced interval scoring at least minConfidence.
func (t *TraceData) SetEvents(source string, events []gait.Event, minConfidence float64) {
	t.Source = source
	t.Events = t.Events[:0]

	first, last := t.Start(), t.End()
	for _, e := range events {
		if e.Time < first || e.Time > last || e.Score < minConfidence {
			continue
		}
		t.Events = append(t.Events, e)
	}
}

func (t *TraceData) Start() float64 { return t.Timestamps[0] }
func (t *TraceData) End() float64   { return t.Timestamps[len(t.Timestamps)-1] }

func absWindow(x []float64, start, end int) []float64 {
	if len(x) < end {
		return nil
	}
	out := make([]float64, end-start)
	for i, v := range x[start:end] {
		out[i] = math.Abs(v)
	}
	return out
}
