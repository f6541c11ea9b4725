package evaluate

import (
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// ThresholdFailures explains how a fixed-threshold detector fares on an asymmetrically loaded trial.
type ThresholdFailures struct {
	PeakRatio   float64  `json:"peak_ratio"`    // Left over right peak |fz|
	Severe      bool     `json:"severe"`        // PeakRatio below 0.5
	Asymmetric  bool     `json:"asymmetric"`    // PeakRatio below 0.7
	LowForce    float64  `json:"low_force"`     // Share of left fz samples under the heel strike threshold
	MissedLeft  int      `json:"missed_left"`   // True left events without a detected counterpart by count
	MissedRight int      `json:"missed_right"`  // Same for the right leg
	Reasons     []string `json:"failure_reasons"`
}

// AnalyzeThresholdFailures compares per-leg detection counts to ground truth and relates them to the
// loading of the frame.
func AnalyzeThresholdFailures(f *gait.Frame, detected, truth []gait.Event, heelStrike float64) ThresholdFailures {
	leftFz, rightFz := f.Left.Fz(), f.Right.Fz()
	leftMax := signal.Max(signal.Rectify(leftFz))
	rightMax := signal.Max(signal.Rectify(rightFz))

	a := ThresholdFailures{PeakRatio: 1}
	if rightMax > 0 {
		a.PeakRatio = leftMax / rightMax
	}
	a.Severe = a.PeakRatio < 0.5
	a.Asymmetric = a.PeakRatio < 0.7

	leftDetected, rightDetected := len(OnLeg(detected, gait.Left)), len(OnLeg(detected, gait.Right))
	leftTruth, rightTruth := len(OnLeg(truth, gait.Left)), len(OnLeg(truth, gait.Right))
	a.MissedLeft = max(0, leftTruth-leftDetected)
	a.MissedRight = max(0, rightTruth-rightDetected)

	if len(leftFz) > 0 {
		var low int
		for _, v := range leftFz {
			if v < heelStrike {
				low++
			}
		}
		a.LowForce = float64(low) / float64(len(leftFz))
	}

	if a.Severe {
		a.Reasons = append(a.Reasons, "severe force asymmetry, the left leg carries markedly less load")
	}
	if float64(leftDetected) < 0.7*float64(leftTruth) {
		a.Reasons = append(a.Reasons, "heel strikes missed on the constrained left leg due to reduced force")
	}
	if float64(rightDetected) > 1.3*float64(rightTruth) {
		a.Reasons = append(a.Reasons, "false positives on the right leg from compensatory loading")
	}
	if a.LowForce > 0.8 {
		a.Reasons = append(a.Reasons, "left leg force stays below the heel strike threshold")
	}
	return a
}

// FusionAnalysis describes how often force and EMG agreed for a rule-based fusion detector.
type FusionAnalysis struct {
	AgreementRate     float64  `json:"sensor_agreement_rate"`
	RigidRuleFailures int      `json:"rigid_rule_failures"`
	Opportunities     []string `json:"improvement_opportunities"`
}

// AnalyzeFusion compares the EMG-confirmed detected events with the force transitions the EMG
// gate rejected (unconfirmed). Events lost to rigid rules are estimated as the shortfall against
// the ground truth count.
func AnalyzeFusion(detected []gait.Event, unconfirmed int, truth []gait.Event) FusionAnalysis {
	var confirmed int
	for _, e := range detected {
		if e.Diagnostics["emg_confirmed"] == 1 {
			confirmed++
		}
	}

	var a FusionAnalysis
	if total := confirmed + unconfirmed; total > 0 {
		a.AgreementRate = float64(confirmed) / float64(total)
	}
	a.RigidRuleFailures = max(0, len(truth)-len(detected))

	if a.AgreementRate < 0.6 {
		a.Opportunities = append(a.Opportunities, "EMG and force timing need adaptive modelling")
	}
	if a.RigidRuleFailures > 3 {
		a.Opportunities = append(a.Opportunities, "the alternating heel strike rule fails on constrained gait")
	}
	return a
}
