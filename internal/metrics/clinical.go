package metrics

import (
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// Compensatory pattern grades.
const (
	Mild     = "mild"
	Moderate = "moderate"
	Severe   = "severe"
)

// Constraint impact grades.
const (
	Low    = "low"
	Medium = "medium"
	High   = "high"
)

// Clinical summarizes force asymmetry into graded indicators.
type Clinical struct {
	ForceAsymmetryIndex float64 `json:"force_asymmetry_index"` // Larger of peak and mean stance force asymmetry, %
	CompensatoryPattern string  `json:"compensatory_pattern"`  // mild < 20 <= moderate < 40 <= severe
	ConstraintImpact    string  `json:"constraint_impact"`     // impulse asymmetry: low < 25 <= medium < 50 <= high
}

// AssessClinical grades the asymmetries of f.
func AssessClinical(f Force) Clinical {
	c := Clinical{ForceAsymmetryIndex: max(f.Peak.Asymmetry, f.Mean.Asymmetry)}

	switch {
	case c.ForceAsymmetryIndex < 20:
		c.CompensatoryPattern = Mild
	case c.ForceAsymmetryIndex < 40:
		c.CompensatoryPattern = Moderate
	default:
		c.CompensatoryPattern = Severe
	}

	switch {
	case f.Impulse.Asymmetry < 25:
		c.ConstraintImpact = Low
	case f.Impulse.Asymmetry < 50:
		c.ConstraintImpact = Medium
	default:
		c.ConstraintImpact = High
	}
	return c
}

// Report bundles every metric computed for one detector run.
type Report struct {
	Gait     Gait     `json:"gait"`
	Force    Force    `json:"force"`
	Clinical Clinical `json:"clinical"`
}

// Analyze computes gait, force and clinical metrics for events detected on f.
func Analyze(f *gait.Frame, events []gait.Event) Report {
	force := AnalyzeForce(f, events)
	return Report{
		Gait:     AnalyzeGait(events, f.Duration()),
		Force:    force,
		Clinical: AssessClinical(force),
	}
}
