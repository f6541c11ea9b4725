package detect

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/gait/gaittest"
)

func eventsOf(events []gait.Event, leg gait.Leg, typ gait.EventType) []gait.Event {
	var out []gait.Event
	for _, e := range events {
		if e.Leg == leg && e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestThreshold_StepHoldFall(t *testing.T) {
	f := gaittest.StepHoldFall(1000, 3, 1.0, 1.6, 1.7, 300)

	d, err := NewThreshold(DefaultThresholdOptions())
	require.NoError(t, err)

	r, err := d.Detect(context.Background(), f)
	require.NoError(t, err)
	assert.False(t, r.Has(fault.NoEvents))

	for _, leg := range gait.Legs {
		t.Run(string(leg), func(t *testing.T) {
			hs := eventsOf(r.Value, leg, gait.HeelStrike)
			require.Len(t, hs, 1)
			assert.InDelta(t, 1.0, hs[0].Time, 0.0015)

			to := eventsOf(r.Value, leg, gait.ToeOff)
			require.Len(t, to, 1)
			assert.GreaterOrEqual(t, to[0].Time, 1.599)
			assert.LessOrEqual(t, to[0].Time, 1.701)

			assert.InDelta(t, (300.0-50)/(1000-50), hs[0].Score, 1e-9)
			assert.Equal(t, 300.0, hs[0].Diagnostics["force_value"])
			assert.InDelta(t, to[0].Time-hs[0].Time, to[0].Diagnostics["stance_duration"], 1e-9)
		})
	}
}

func TestThreshold_ConstrainedLegMissed(t *testing.T) {
	f, truth := gaittest.Constrained().Build()

	d, err := NewThreshold(DefaultThresholdOptions())
	require.NoError(t, err)

	r, err := d.Detect(context.Background(), f)
	require.NoError(t, err)

	assert.True(t, r.Has(fault.NoEvents))
	assert.Empty(t, eventsOf(r.Value, gait.Left, gait.HeelStrike))
	assert.Len(t, r.Value, len(truth)/2)
}

func TestDetectors_EmptyAndNaN(t *testing.T) {
	registry := NewRegistry()
	cfg := DefaultConfig()

	nan := gaittest.StepHoldFall(1000, 3, 1.0, 1.6, 1.7, 300)
	for i := 1200; i < 1300; i++ {
		nan.Right[gait.Fz][i] = math.NaN()
	}

	for _, name := range registry.Names() {
		t.Run(name, func(t *testing.T) {
			d, err := registry.New(name, cfg)
			require.NoError(t, err)

			r, err := d.Detect(context.Background(), &gait.Frame{SampleRate: 1000})
			require.NoError(t, err)
			assert.Empty(t, r.Value)

			r, err = d.Detect(context.Background(), nan)
			require.NoError(t, err)
			for _, e := range r.Value {
				assert.True(t, Valid(e))
			}
		})
	}
}

func TestDetectors_NoDuplicates(t *testing.T) {
	f, _ := gaittest.Constrained().Build()
	registry := NewRegistry()

	for _, name := range registry.Names() {
		t.Run(name, func(t *testing.T) {
			d, err := registry.New(name, DefaultConfig())
			require.NoError(t, err)

			r, err := d.Detect(context.Background(), f)
			require.NoError(t, err)

			last := map[gait.EventKey]float64{}
			for i, e := range r.Value {
				if i > 0 {
					assert.GreaterOrEqual(t, e.Time, r.Value[i-1].Time)
				}
				if prev, ok := last[e.Key()]; ok {
					assert.GreaterOrEqual(t, e.Time-prev, DuplicateWindow)
				}
				last[e.Key()] = e.Time
				assert.Equal(t, name, e.Method)
			}
		})
	}
}

func TestRuleFusion_RequiresEMG(t *testing.T) {
	f, _ := gaittest.Constrained().Build()
	for c := range f.EMG {
		f.EMG[c] = make([]float64, f.Len())
	}

	d, err := NewRuleFusion(DefaultRuleFusionOptions())
	require.NoError(t, err)

	r, err := d.Detect(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, r.Value)
	assert.True(t, r.Has(fault.NoEvents))
}

func TestRuleFusion_Alternation(t *testing.T) {
	d, err := NewRuleFusion(DefaultRuleFusionOptions())
	require.NoError(t, err)

	events := []gait.Event{
		{Time: 0.5, Type: gait.HeelStrike, Leg: gait.Right, Score: 0.5},
		{Time: 1.0, Type: gait.HeelStrike, Leg: gait.Right, Score: 0.5}, // off-turn, dropped
		{Time: 1.1, Type: gait.HeelStrike, Leg: gait.Left, Score: 0.5},
		{Time: 1.5, Type: gait.HeelStrike, Leg: gait.Left, Score: 0.9}, // off-turn, kept
		{Time: 1.6, Type: gait.ToeOff, Leg: gait.Left, Score: 0.3},
		{Time: 1.7, Type: gait.HeelStrike, Leg: gait.Right, Score: 0.5},
	}

	out, rejected := d.alternate(events)
	assert.Equal(t, 1, rejected)
	assert.Len(t, out, 5)
}

func TestHeuristic_Characterize(t *testing.T) {
	c := Characterize(map[gait.Leg][]float64{
		gait.Left:  {0, 20, 40, 0},
		gait.Right: {0, 400, 800, 0},
	})

	assert.Equal(t, 800.0, c.MaxPeak)
	assert.InDelta(t, 0.05, c.Ratio[gait.Left], 1e-12)
	assert.InDelta(t, 0.95, c.Adaptation[gait.Left], 1e-12)
	assert.Zero(t, c.Adaptation[gait.Right])
	assert.Equal(t, 0.1, c.Scale(gait.Left, 0.1))
	assert.Equal(t, 1.0, c.Scale(gait.Right, 0.1))
}

func TestHeuristic_TemporalGaps(t *testing.T) {
	d, err := NewHeuristic(DefaultHeuristicOptions())
	require.NoError(t, err)

	mk := func(ts float64) gait.Event {
		return gait.Event{Time: ts, Type: gait.HeelStrike, Leg: gait.Right, Score: 0.9, Diagnostics: map[string]float64{}}
	}
	out, suppressed := d.temporalGaps([]gait.Event{mk(1), mk(1.2), mk(2.2), mk(6)})

	assert.Equal(t, 1, suppressed)
	require.Len(t, out, 3)
	assert.Equal(t, 1.0, out[0].Diagnostics["bout_start"])
	assert.Equal(t, 0.0, out[1].Diagnostics["bout_start"])
	assert.Equal(t, 1.0, out[2].Diagnostics["bout_start"])
}

func TestHeuristic_SilentChannel(t *testing.T) {
	f, _ := gaittest.Constrained().Build()
	f.EMG[gait.LeftHamstring] = make([]float64, f.Len())

	d, err := NewHeuristic(DefaultHeuristicOptions())
	require.NoError(t, err)

	r, err := d.Detect(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, r.Has(fault.SilentChannel))
	assert.NotEmpty(t, eventsOf(r.Value, gait.Left, gait.ToeOff))
}

func TestFinalize(t *testing.T) {
	events := []gait.Event{
		{Time: 1.03, Type: gait.HeelStrike, Leg: gait.Left, Score: 0.5},
		{Time: 1.00, Type: gait.HeelStrike, Leg: gait.Left, Score: 0.5},
		{Time: 1.01, Type: gait.HeelStrike, Leg: gait.Right, Score: 0.5},
		{Time: 1.06, Type: gait.HeelStrike, Leg: gait.Left, Score: 0.5},
		{Time: -1, Type: gait.ToeOff, Leg: gait.Left, Score: 0.5},
		{Time: 2, Type: gait.ToeOff, Leg: gait.Left, Score: 1.5},
		{Time: 2, Type: "mid_stance", Leg: gait.Left, Score: 0.5},
		{Time: math.NaN(), Type: gait.ToeOff, Leg: gait.Left, Score: 0.5},
	}

	out := Finalize(events)
	require.Len(t, out, 3)
	assert.Equal(t, 1.00, out[0].Time)
	assert.Equal(t, gait.Right, out[1].Leg)
	assert.Equal(t, 1.06, out[2].Time)
}

func TestOptions_Validate(t *testing.T) {
	testCases := []struct {
		name  string
		cfg   func(c *Config)
		field string
	}{
		{"weights sum", func(c *Config) { c.Heuristic.Weights.Force = 0.5 }, "heuristic.weights"},
		{"negative weight", func(c *Config) { c.Heuristic.Weights.Force, c.Heuristic.Weights.EMG = -0.1, 0.7 }, "heuristic.weights"},
		{"toe off above heel strike", func(c *Config) { c.Threshold.ToeOff = 60 }, "threshold.toeOff"},
		{"constrained leg", func(c *Config) { c.RuleFusion.ConstrainedLeg = "middle" }, "ruleFusion.constrainedLeg"},
		{"cycle bounds", func(c *Config) { c.Heuristic.MaxCycle = 0.1 }, "heuristic.maxCycle"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.cfg(&cfg)

			_, err := NewRunner(cfg, nil)

			var ce *fault.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.field, ce.Field)
		})
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestFingerprint(t *testing.T) {
	a, err := NewHeuristic(DefaultHeuristicOptions())
	require.NoError(t, err)
	b, err := NewHeuristic(DefaultHeuristicOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	opts := DefaultHeuristicOptions()
	opts.MinConfidence = 0.6
	c, err := NewHeuristic(opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	th, err := NewThreshold(DefaultThresholdOptions())
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), th.Fingerprint())
}
