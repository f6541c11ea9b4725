package evaluate

import (
	"time"

	"github.com/roman-kulish/gait-fusion/internal/detect"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// Performance is the presented accuracy of one detector on one trial. Ratios are rounded to three
// decimals and the accuracy percentage to two.
type Performance struct {
	Algorithm      string  `json:"algorithm_name"`
	Accuracy       float64 `json:"accuracy_percentage"` // F1 x 100
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1_score"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	ProcessingMs   int64   `json:"processing_time_ms"`
	Detected       int     `json:"events_detected"`
	Expected       int     `json:"events_expected"`
	Adaptation     float64 `json:"constraint_adaptation"`
}

// Assess matches detected against truth and rounds the result for presentation.
func Assess(algorithm string, detected, truth []gait.Event, tolerance float64, elapsed time.Duration) Performance {
	a := Match(detected, truth, tolerance)
	return Performance{
		Algorithm:      algorithm,
		Accuracy:       signal.Round(a.F1*100, 2),
		Precision:      signal.Round(a.Precision, 3),
		Recall:         signal.Round(a.Recall, 3),
		F1:             signal.Round(a.F1, 3),
		TruePositives:  a.TruePositives,
		FalsePositives: a.FalsePositives,
		FalseNegatives: a.FalseNegatives,
		ProcessingMs:   elapsed.Round(time.Millisecond).Milliseconds(),
		Detected:       len(detected),
		Expected:       len(truth),
		Adaptation:     signal.Round(ConstraintAdaptation(detected, truth, tolerance), 3),
	}
}

// AssessRuns assesses every detector run against the same ground truth, in run order.
func AssessRuns(runs []detect.Run, truth []gait.Event, tolerance float64) []Performance {
	out := make([]Performance, len(runs))
	for i, r := range runs {
		out[i] = Assess(r.Detector, r.Events, truth, tolerance, r.Elapsed)
	}
	return out
}

// Improvement is the relative accuracy gain of one detector over another.
type Improvement struct {
	Baseline string  `json:"baseline"`
	Improved string  `json:"improved"`
	Percent  float64 `json:"percent"`
}

// Comparison holds the performances of several detectors on one trial, ordered from the simplest
// detector to the most elaborate, and the gain of every later detector over every earlier one.
type Comparison struct {
	Performances []Performance `json:"performances"`
	Improvements []Improvement `json:"improvements"`
}

// Compare computes pairwise improvements between performances, which must be ordered from the
// baseline detector onwards.
func Compare(performances []Performance) Comparison {
	c := Comparison{Performances: performances}
	for i := range performances {
		for j := i + 1; j < len(performances); j++ {
			c.Improvements = append(c.Improvements, Improvement{
				Baseline: performances[i].Algorithm,
				Improved: performances[j].Algorithm,
				Percent:  RelativeImprovement(performances[i].Accuracy, performances[j].Accuracy),
			})
		}
	}
	return c
}

// Improvement returns the gain of improved over baseline, or zero when the pair is not compared.
func (c Comparison) Improvement(baseline, improved string) float64 {
	for _, i := range c.Improvements {
		if i.Baseline == baseline && i.Improved == improved {
			return i.Percent
		}
	}
	return 0
}

// Performance looks up the performance of a detector.
func (c Comparison) Performance(algorithm string) (Performance, bool) {
	for _, p := range c.Performances {
		if p.Algorithm == algorithm {
			return p, true
		}
	}
	return Performance{}, false
}

// RelativeImprovement returns (improved - baseline) / baseline x 100 rounded to one decimal, or
// improved itself when baseline is zero.
func RelativeImprovement(baseline, improved float64) float64 {
	if baseline == 0 {
		return improved
	}
	return signal.Round((improved-baseline)/baseline*100, 1)
}
