package segment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/gait/gaittest"
)

func TestSelect_PrefersWalkingWindow(t *testing.T) {
	f, _ := gaittest.Constrained().Build()
	for i := range 6000 {
		f.Left[gait.Fz][i] = 0
		f.Right[gait.Fz][i] = 0
	}

	r, err := Select(f, Options{Duration: 3.6, Step: 2, Threshold: 100, MaxForce: gait.MaxPlausibleForce})
	require.NoError(t, err)
	assert.False(t, r.Has(fault.ShortRecording))

	w := r.Value
	assert.Equal(t, 6000, w.StartIndex)
	assert.Equal(t, 9600, w.EndIndex)
	assert.InDelta(t, 6.0, w.Start, 1e-9)
	assert.InDelta(t, 9.599, w.End, 1e-9)
	assert.Equal(t, Scores{Variability: 2, Events: 3, Asymmetry: 2, Quality: 2}, w.Scores)
	assert.Equal(t, 9, w.Scores.Total())
}

func TestSelect_TieGoesToEarliest(t *testing.T) {
	f, _ := gaittest.Constrained().Build()

	r, err := Select(f, Options{Duration: 5, Step: 2, Threshold: 100, MaxForce: gait.MaxPlausibleForce})
	require.NoError(t, err)
	assert.Zero(t, r.Value.StartIndex)
}

func TestSelect_ShortRecording(t *testing.T) {
	f, _ := gaittest.Constrained().Build()

	r, err := Select(f, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, r.Has(fault.ShortRecording))
	assert.Equal(t, 0, r.Value.StartIndex)
	assert.Equal(t, f.Len(), r.Value.EndIndex)
}

func TestSelect_EmptyRecording(t *testing.T) {
	_, err := Select(&gait.Frame{SampleRate: 1000}, DefaultOptions())
	require.ErrorIs(t, err, ErrEmptyRecording)
}

func TestSelect_InvalidOptions(t *testing.T) {
	f, _ := gaittest.Constrained().Build()

	_, err := Select(f, Options{Duration: 20, Step: 0, Threshold: 100})

	var ce *fault.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "segment.step", ce.Field)
}

func TestScore_NonFinite(t *testing.T) {
	f, _ := gaittest.Constrained().Build()
	f.Left[gait.Fz][10] = math.NaN()

	s := Score(f, 0, 1000, DefaultOptions())
	assert.Equal(t, 1, s.Quality)
}

func TestScore_OutOfRange(t *testing.T) {
	f, _ := gaittest.Constrained().Build()
	assert.Equal(t, 2, Score(f, 2000, 4000, DefaultOptions()).Quality)

	f.Right[gait.Fz][3000] = 1e9
	assert.Equal(t, 1, Score(f, 2000, 4000, DefaultOptions()).Quality)
	assert.Equal(t, 2, Score(f, 0, 2000, DefaultOptions()).Quality)

	opts := DefaultOptions()
	opts.MaxForce = 2e9
	assert.Equal(t, 2, Score(f, 2000, 4000, opts).Quality)

	opts.MaxForce = opts.Threshold
	var ce *fault.ConfigError
	require.ErrorAs(t, opts.Validate(), &ce)
	assert.Equal(t, "segment.maxForce", ce.Field)
}

func TestCoarseEvents(t *testing.T) {
	assert.Equal(t, 4, CoarseEvents([]float64{0, 150, 200, 50, -150, 0}, 100))
	assert.Zero(t, CoarseEvents(nil, 100))
}

func TestWindow_Apply(t *testing.T) {
	f, _ := gaittest.Constrained().Build()
	w := Window{StartIndex: 2000, EndIndex: 4000}

	out := w.Apply(f)
	require.Equal(t, 2000, out.Len())
	assert.Zero(t, out.Timestamps[0])
	assert.InDelta(t, 1.999, out.Timestamps[1999], 1e-9)
	assert.Equal(t, f.Right[gait.Fz][2500], out.Right[gait.Fz][500])
}
