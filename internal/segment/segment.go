// Package segment picks the most representative fixed-length window out of a long synchronized
// recording.
package segment

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

const (
	DefaultDuration  = 20.0  // s
	DefaultStep      = 2.0   // s
	DefaultThreshold = 100.0 // N

	// MaxScore is the best attainable Scores.Total.
	MaxScore = 10

	// unloadedLeft is the mean left loading force assumed when the left plate never exceeds the
	// threshold inside a window.
	unloadedLeft = 0.1
)

// ErrEmptyRecording is returned by Select for a frame without samples.
var ErrEmptyRecording = errors.New("segment: empty recording")

// Options controls the sliding window search.
type Options struct {
	Duration  float64 `yaml:"duration" json:"duration"`   // Window length in seconds
	Step      float64 `yaml:"step" json:"step"`           // Window advance in seconds
	Threshold float64 `yaml:"threshold" json:"threshold"` // Loading and coarse event threshold in N
	MaxForce  float64 `yaml:"maxForce" json:"maxForce"`   // Largest plausible |fz| in N
}

// DefaultOptions returns a 20 s window advancing by 2 s with a 100 N threshold.
func DefaultOptions() Options {
	return Options{
		Duration:  DefaultDuration,
		Step:      DefaultStep,
		Threshold: DefaultThreshold,
		MaxForce:  gait.MaxPlausibleForce,
	}
}

func (o *Options) Validate() error {
	if o.Duration <= 0 {
		return fault.NewConfigError("segment.duration", "must be positive")
	}
	if o.Step <= 0 {
		return fault.NewConfigError("segment.step", "must be positive")
	}
	if o.Threshold <= 0 {
		return fault.NewConfigError("segment.threshold", "must be positive")
	}
	if o.MaxForce <= o.Threshold {
		return fault.NewConfigError("segment.maxForce", "must exceed the threshold")
	}
	return nil
}

// Scores breaks a window's quality down per criterion.
type Scores struct {
	Variability int `json:"variability"` // 1-3, lower |right fz| variation scores higher
	Events      int `json:"events"`      // 1-3, more coarse gait events scores higher
	Asymmetry   int `json:"asymmetry"`   // 0-2, visible loading asymmetry scores higher
	Quality     int `json:"quality"`     // 1-2, 2 when every sample is finite and within MaxForce
}

// Total returns the composite score out of MaxScore.
func (s Scores) Total() int {
	return s.Variability + s.Events + s.Asymmetry + s.Quality
}

// Window is a half-open sample range [StartIndex, EndIndex) of a frame.
type Window struct {
	StartIndex int     `json:"startIndex"`
	EndIndex   int     `json:"endIndex"`
	Start      float64 `json:"startTime"` // Timestamp of the first sample
	End        float64 `json:"endTime"`   // Timestamp of the last sample
	Scores     Scores  `json:"scores"`
}

// Apply returns the windowed frame with timestamps rebased to zero.
func (w Window) Apply(f *gait.Frame) *gait.Frame {
	return f.Slice(w.StartIndex, w.EndIndex)
}

// Select slides a window across f and returns the one with the highest total score. Ties go to
// the earliest start. A recording shorter than the window yields a single whole-recording window
// and a ShortRecording warning.
func Select(f *gait.Frame, opts Options) (fault.Result[Window], error) {
	if err := opts.Validate(); err != nil {
		return fault.Result[Window]{}, err
	}

	n := f.Len()
	if n == 0 {
		return fault.Result[Window]{}, ErrEmptyRecording
	}

	var result fault.Result[Window]

	size := int(math.Round(opts.Duration * f.SampleRate))
	step := max(1, int(math.Floor(opts.Step*f.SampleRate)))

	if n < size {
		result.Add(fault.Warn(fault.ShortRecording, f.TrialID,
			"recording of %.1fs is shorter than the %.1fs window, using the whole recording", f.Duration(), opts.Duration))
		size = n
	}

	best := Window{StartIndex: -1}
	bestTotal := -1
	for start := 0; start+size <= n; start += step {
		end := start + size
		scores := Score(f, start, end, opts)
		if total := scores.Total(); total > bestTotal {
			bestTotal = total
			best = Window{
				StartIndex: start,
				EndIndex:   end,
				Start:      f.Timestamps[start],
				End:        f.Timestamps[end-1],
				Scores:     scores,
			}
		}
	}

	if bestTotal < MaxScore/2 {
		result.Add(fault.Warn(fault.SegmentQuality, f.TrialID, "best window scores only %d/%d", bestTotal, MaxScore))
	}

	result.Value = best
	return result, nil
}

// Score grades samples [start, end) of f.
func Score(f *gait.Frame, start, end int, opts Options) Scores {
	threshold := opts.Threshold
	right := f.Right.Fz()[start:end]
	left := f.Left.Fz()[start:end]

	var s Scores

	switch v := absVariability(right); {
	case v < 0.5:
		s.Variability = 3
	case v < 1.0:
		s.Variability = 2
	default:
		s.Variability = 1
	}

	switch e := CoarseEvents(right, threshold); {
	case e >= 3:
		s.Events = 3
	case e >= 2:
		s.Events = 2
	default:
		s.Events = 1
	}

	rightMean := meanAbsAbove(right, threshold, 0)
	leftMean := meanAbsAbove(left, threshold, unloadedLeft)
	switch ratio := rightMean / leftMean; {
	case ratio > 3 || leftMean < 10:
		s.Asymmetry = 2
	case ratio > 1.5:
		s.Asymmetry = 1
	}

	s.Quality = 2
	if !plausible(right, opts.MaxForce) || !plausible(left, opts.MaxForce) {
		s.Quality = 1
	}
	return s
}

// CoarseEvents counts heel strikes and toe offs from threshold crossings of |x|.
func CoarseEvents(x []float64, threshold float64) int {
	var events int
	stance := false
	for i := 1; i < len(x); i++ {
		prev, curr := math.Abs(x[i-1]), math.Abs(x[i])
		switch {
		case !stance && curr > threshold && prev <= threshold:
			events++
			stance = true
		case stance && curr <= threshold && prev > threshold:
			events++
			stance = false
		}
	}
	return events
}

// absVariability is the population coefficient of variation of |x|; a zero mean divides by 1.
func absVariability(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(signal.Rectify(x), nil)
	if mean == 0 {
		mean = 1
	}
	return std / mean
}

func meanAbsAbove(x []float64, threshold, fallback float64) float64 {
	var sum float64
	var n int
	for _, v := range x {
		if a := math.Abs(v); a > threshold {
			sum += a
			n++
		}
	}
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}

// plausible reports whether every sample is finite and no larger than limit in magnitude.
func plausible(x []float64, limit float64) bool {
	if !signal.AllFinite(x) {
		return false
	}
	for _, v := range x {
		if math.Abs(v) > limit {
			return false
		}
	}
	return true
}
