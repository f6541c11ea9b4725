package evaluate

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gait-fusion/internal/detect"
	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/gait/gaittest"
)

func ev(t float64, typ gait.EventType, leg gait.Leg) gait.Event {
	return gait.Event{Time: t, Type: typ, Leg: leg, Score: 1}
}

func TestMatch(t *testing.T) {
	truth := []gait.Event{
		ev(1.0, gait.HeelStrike, gait.Left),
		ev(1.6, gait.ToeOff, gait.Left),
		ev(1.5, gait.HeelStrike, gait.Right),
	}

	testCases := []struct {
		name     string
		detected []gait.Event
		truth    []gait.Event
		want     Accuracy
	}{
		{
			name:     "perfect",
			detected: truth,
			truth:    truth,
			want:     Accuracy{Precision: 1, Recall: 1, F1: 1, TruePositives: 3},
		},
		{
			name:  "empty both",
			want:  Accuracy{},
		},
		{
			name:  "nothing detected",
			truth: truth,
			want:  Accuracy{FalseNegatives: 3},
		},
		{
			name:     "nothing expected",
			detected: truth,
			want:     Accuracy{FalsePositives: 3},
		},
		{
			name: "tolerance and labels",
			detected: []gait.Event{
				ev(1.09, gait.HeelStrike, gait.Left),  // match
				ev(1.05, gait.HeelStrike, gait.Left),  // truth already used
				ev(1.55, gait.HeelStrike, gait.Left),  // wrong leg
				ev(1.75, gait.ToeOff, gait.Left),      // beyond tolerance
			},
			truth: truth,
			want:  Accuracy{Precision: 0.25, Recall: 1.0 / 3, F1: 2 * 0.25 * (1.0 / 3) / (0.25 + 1.0/3), TruePositives: 1, FalsePositives: 3, FalseNegatives: 2},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Match(tc.detected, tc.truth, DefaultTolerance)
			assert.Equal(t, tc.want.TruePositives, got.TruePositives)
			assert.Equal(t, tc.want.FalsePositives, got.FalsePositives)
			assert.Equal(t, tc.want.FalseNegatives, got.FalseNegatives)
			assert.InDelta(t, tc.want.Precision, got.Precision, 1e-12)
			assert.InDelta(t, tc.want.Recall, got.Recall, 1e-12)
			assert.InDelta(t, tc.want.F1, got.F1, 1e-12)
		})
	}
}

func TestConstraintAdaptation(t *testing.T) {
	truth := []gait.Event{
		ev(1.0, gait.HeelStrike, gait.Left),
		ev(1.5, gait.HeelStrike, gait.Right),
	}

	assert.InDelta(t, 1.0, ConstraintAdaptation(truth, truth, DefaultTolerance), 1e-12)
	// Right only: 0.7 x 0.5 + 0.3 x 0
	assert.InDelta(t, 0.35, ConstraintAdaptation(truth[1:], truth, DefaultTolerance), 1e-12)
	// Nothing on either leg is balanced but useless.
	assert.InDelta(t, 0.3, ConstraintAdaptation(nil, truth, DefaultTolerance), 1e-12)
}

func TestRelativeImprovement(t *testing.T) {
	assert.Equal(t, 50.0, RelativeImprovement(40, 60))
	assert.Equal(t, -25.0, RelativeImprovement(80, 60))
	assert.Equal(t, 66.67, RelativeImprovement(0, 66.67))
	assert.Equal(t, 33.3, RelativeImprovement(75, 99.99))
}

func TestCompare(t *testing.T) {
	c := Compare([]Performance{
		{Algorithm: "a", Accuracy: 50},
		{Algorithm: "b", Accuracy: 75},
		{Algorithm: "c", Accuracy: 100},
	})

	require.Len(t, c.Improvements, 3)
	assert.Equal(t, 50.0, c.Improvement("a", "b"))
	assert.Equal(t, 100.0, c.Improvement("a", "c"))
	assert.Equal(t, 33.3, c.Improvement("b", "c"))
	assert.Zero(t, c.Improvement("c", "a"))

	p, ok := c.Performance("b")
	require.True(t, ok)
	assert.Equal(t, 75.0, p.Accuracy)
}

// The constrained trial loads the left plate far below the fixed thresholds, so accuracy must not
// decrease from the threshold detector through rule fusion to heuristic fusion.
func TestMonotonicAccuracy(t *testing.T) {
	f, truth := gaittest.Constrained().Build()

	r, err := detect.NewRunner(detect.DefaultConfig(), nil)
	require.NoError(t, err)
	runs, err := r.Run(context.Background(), f)
	require.NoError(t, err)

	perf := AssessRuns(runs, truth, DefaultTolerance)
	require.Len(t, perf, 3)

	threshold, rule, heuristic := perf[0], perf[1], perf[2]
	assert.Equal(t, detect.ThresholdName, threshold.Algorithm)
	assert.LessOrEqual(t, threshold.F1, rule.F1)
	assert.LessOrEqual(t, rule.F1, heuristic.F1)

	assert.InDelta(t, 0.667, threshold.F1, 0.001)
	assert.Equal(t, 1.0, heuristic.F1)
	assert.Equal(t, 100.0, heuristic.Accuracy)
	assert.Greater(t, heuristic.Adaptation, threshold.Adaptation)

	failures := AnalyzeThresholdFailures(f, runs[0].Events, truth, detect.DefaultThresholdOptions().HeelStrike)
	assert.True(t, failures.Severe)
	assert.True(t, failures.Asymmetric)
	assert.Equal(t, len(OnLeg(truth, gait.Left)), failures.MissedLeft)
	assert.Zero(t, failures.MissedRight)
	assert.Equal(t, 1.0, failures.LowForce)
	assert.Len(t, failures.Reasons, 3)

	unconfirmed := fault.Count(runs[1].Warnings, fault.Unconfirmed)
	fusion := AnalyzeFusion(runs[1].Events, unconfirmed, truth)
	assert.Greater(t, fusion.AgreementRate, 0.0)
	assert.LessOrEqual(t, fusion.AgreementRate, 1.0)
}

func TestAnalyzeFusion(t *testing.T) {
	confirmed := func(at float64) gait.Event {
		e := ev(at, gait.HeelStrike, gait.Right)
		e.Diagnostics = map[string]float64{"emg_confirmed": 1}
		return e
	}
	detected := []gait.Event{confirmed(1), confirmed(2), confirmed(3)}

	a := AnalyzeFusion(detected, 0, detected)
	assert.Equal(t, 1.0, a.AgreementRate)
	assert.Empty(t, a.Opportunities)

	a = AnalyzeFusion(detected, 2, detected)
	assert.Equal(t, 0.6, a.AgreementRate)
	assert.Empty(t, a.Opportunities)

	a = AnalyzeFusion(detected, 3, detected)
	assert.Equal(t, 0.5, a.AgreementRate)
	assert.Equal(t, []string{"EMG and force timing need adaptive modelling"}, a.Opportunities)
}

func TestAnalyzeFusion_SilentQuadriceps(t *testing.T) {
	f, truth := gaittest.Constrained().Build()
	f.EMG[gait.Quadriceps(gait.Left)] = make([]float64, f.Len())

	d, err := detect.NewRuleFusion(detect.DefaultRuleFusionOptions())
	require.NoError(t, err)
	r, err := d.Detect(context.Background(), f)
	require.NoError(t, err)
	require.NotEmpty(t, r.Value)

	unconfirmed := fault.Count(r.Warnings, fault.Unconfirmed)
	require.Positive(t, unconfirmed)

	a := AnalyzeFusion(r.Value, unconfirmed, truth)
	assert.Greater(t, a.AgreementRate, 0.0)
	assert.Less(t, a.AgreementRate, 1.0)
}

func TestAnalyzeFusion_Empty(t *testing.T) {
	a := AnalyzeFusion(nil, 0, []gait.Event{ev(1, gait.HeelStrike, gait.Left)})
	assert.Zero(t, a.AgreementRate)
	assert.Equal(t, 1, a.RigidRuleFailures)
	assert.NotEmpty(t, a.Opportunities)
}

func TestReport(t *testing.T) {
	truth := []gait.Event{
		ev(1.0, gait.HeelStrike, gait.Left),
		ev(1.5, gait.HeelStrike, gait.Right),
	}
	c := Compare([]Performance{
		Assess("threshold", truth[1:], truth, DefaultTolerance, 3*time.Millisecond),
		Assess("heuristic_fusion", truth, truth, DefaultTolerance, 5*time.Millisecond),
	})

	var buf bytes.Buffer
	require.NoError(t, Report(&buf, ReportData{
		TrialID:    "Sub1_T5",
		Tolerance:  DefaultTolerance,
		Comparison: c,
		Fusion:     &FusionAnalysis{AgreementRate: 0.5, Opportunities: []string{"more data"}},
	}))

	out := buf.String()
	assert.Contains(t, out, "# Gait Event Detection Accuracy Report")
	assert.Contains(t, out, "matching tolerance 100 ms")
	assert.Contains(t, out, "- **threshold**: 66.7% accuracy")
	assert.Contains(t, out, "- **heuristic_fusion vs threshold**: +50.0%")
	assert.Contains(t, out, "Sensor agreement rate: 50.0%")
	assert.Contains(t, out, "heuristic_fusion exceeds 90% accuracy")
	assert.NotContains(t, out, "Threshold Failure Analysis")
}
