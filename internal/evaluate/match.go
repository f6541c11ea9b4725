// Package evaluate scores detected gait events against ground truth and compares detectors.
package evaluate

import (
	"math"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// DefaultTolerance is the matching window between a detected and a true event, s.
const DefaultTolerance = 0.1

// Accuracy is the outcome of matching detected events against ground truth.
type Accuracy struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1_score"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
}

// Match pairs every detected event, in order, with the earliest unmatched true event of the same
// type and leg within tolerance seconds. Each true event is matched at most once.
func Match(detected, truth []gait.Event, tolerance float64) Accuracy {
	matched := make([]bool, len(truth))

	var a Accuracy
	for _, d := range detected {
		hit := false
		for i, t := range truth {
			if matched[i] || t.Type != d.Type || t.Leg != d.Leg {
				continue
			}
			if math.Abs(d.Time-t.Time) <= tolerance {
				matched[i] = true
				hit = true
				break
			}
		}
		if hit {
			a.TruePositives++
		} else {
			a.FalsePositives++
		}
	}
	a.FalseNegatives = len(truth) - a.TruePositives

	if a.TruePositives > 0 {
		a.Precision = float64(a.TruePositives) / float64(a.TruePositives+a.FalsePositives)
		a.Recall = float64(a.TruePositives) / float64(a.TruePositives+a.FalseNegatives)
	}
	if a.Precision+a.Recall > 0 {
		a.F1 = 2 * a.Precision * a.Recall / (a.Precision + a.Recall)
	}
	return a
}

// OnLeg returns the events of one leg, preserving order.
func OnLeg(events []gait.Event, leg gait.Leg) []gait.Event {
	var out []gait.Event
	for _, e := range events {
		if e.Leg == leg {
			out = append(out, e)
		}
	}
	return out
}

// ConstraintAdaptation rewards detectors that do well on both legs and do so evenly:
// 0.7 x mean per-leg F1 + 0.3 x (1 - |left F1 - right F1|).
func ConstraintAdaptation(detected, truth []gait.Event, tolerance float64) float64 {
	left := Match(OnLeg(detected, gait.Left), OnLeg(truth, gait.Left), tolerance).F1
	right := Match(OnLeg(detected, gait.Right), OnLeg(truth, gait.Right), tolerance).F1
	return 0.7*(left+right)/2 + 0.3*(1-math.Abs(left-right))
}
