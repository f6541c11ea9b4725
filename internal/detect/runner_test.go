package detect

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/gait/gaittest"
)

// stubDetector counts its invocations and optionally blocks until released.
type stubDetector struct {
	calls   *atomic.Int32
	started chan struct{}
	release chan struct{}
	print   string
}

func (d *stubDetector) Name() string        { return "stub" }
func (d *stubDetector) Version() string     { return "0.0.1" }
func (d *stubDetector) Fingerprint() string { return d.print }

func (d *stubDetector) Detect(ctx context.Context, f *gait.Frame) (fault.Result[[]gait.Event], error) {
	d.calls.Add(1)
	if d.started != nil {
		close(d.started)
		<-d.release
	}
	return fault.Ok([]gait.Event{{Time: 0.5, Type: gait.HeelStrike, Leg: gait.Left, Score: 1, Method: "stub"}}), nil
}

func stubRegistry(build func(cfg Config) *stubDetector) *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("stub", func(cfg Config) (Detector, error) { return build(cfg), nil })
	return r
}

func TestGeneration(t *testing.T) {
	var g Generation[int]

	gen := g.Begin()
	assert.True(t, g.Commit(gen, 1))
	v, ok := g.Latest()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	next := g.Begin()
	assert.False(t, g.Commit(gen, 2))
	_, ok = g.Latest()
	assert.False(t, ok)

	assert.True(t, g.Commit(next, 3))
	assert.Equal(t, next, g.Current())
}

func TestRunner_Memoizes(t *testing.T) {
	var calls atomic.Int32
	registry := stubRegistry(func(cfg Config) *stubDetector {
		return &stubDetector{calls: &calls, print: fingerprint("stub", cfg.Threshold)}
	})

	r, err := NewRunner(DefaultConfig(), nil, WithRegistry(registry))
	require.NoError(t, err)

	f := &gait.Frame{TrialID: "Sub1_T5", SampleRate: 1000, Timestamps: []float64{0}}
	first, err := r.Run(context.Background(), f)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first, second)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "Sub1_T5", latest[0].TrialID)

	f.TrialID = "Sub1_T6"
	_, err = r.Run(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	cfg := DefaultConfig()
	cfg.Threshold.HeelStrike = 60
	require.NoError(t, r.SetConfig(cfg))
	_, ok = r.Latest()
	assert.False(t, ok)

	_, err = r.Run(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunner_StaleAfterConfigChange(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	var built atomic.Int32
	registry := stubRegistry(func(cfg Config) *stubDetector {
		d := &stubDetector{calls: &calls, print: fingerprint("stub", cfg.Threshold)}
		if built.Add(1) == 1 {
			d.started, d.release = started, release
		}
		return d
	})

	r, err := NewRunner(DefaultConfig(), nil, WithRegistry(registry))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), &gait.Frame{TrialID: "Sub1_T5", SampleRate: 1000, Timestamps: []float64{0}})
		errCh <- err
	}()

	<-started
	require.NoError(t, r.SetConfig(DefaultConfig()))
	close(release)

	require.ErrorIs(t, <-errCh, ErrStale)
	_, ok := r.Latest()
	assert.False(t, ok)
}

func TestRunner_BuiltIns(t *testing.T) {
	f, _ := gaittest.Constrained().Build()

	r, err := NewRunner(DefaultConfig(), nil)
	require.NoError(t, err)

	runs, err := r.Run(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	for i, name := range []string{ThresholdName, RuleFusionName, HeuristicName} {
		assert.Equal(t, name, runs[i].Detector)
		assert.Equal(t, f.TrialID, runs[i].TrialID)
		assert.NotEmpty(t, runs[i].Fingerprint)
		assert.NotEmpty(t, runs[i].Events)
	}
}

func TestRunner_SliceOfProcessedFrame(t *testing.T) {
	f, _ := gaittest.Constrained().Build()
	window := f.Slice(0, 2000)
	require.Equal(t, f.TrialID, window.TrialID)

	r, err := NewRunner(DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), f)
	require.NoError(t, err)

	runs, err := r.Run(context.Background(), window)
	require.NoError(t, err)

	fresh, err := NewRunner(DefaultConfig(), nil)
	require.NoError(t, err)
	want, err := fresh.Run(context.Background(), window)
	require.NoError(t, err)

	require.Len(t, runs, len(want))
	for i := range runs {
		assert.Equal(t, want[i].Events, runs[i].Events, runs[i].Detector)
		for _, e := range runs[i].Events {
			assert.LessOrEqual(t, e.Time, window.Duration(), runs[i].Detector)
		}
	}
}

func TestRunner_UnknownDetector(t *testing.T) {
	_, err := NewRunner(DefaultConfig(), []string{"wavelet"})
	require.Error(t, err)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", nil)
	r.Register("alpha", nil)

	assert.Equal(t, []string{ThresholdName, RuleFusionName, HeuristicName, "alpha", "zeta"}, r.Names())
}
