package app

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gait-fusion/internal/artifact"
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

func rgba(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func testTrace() *TraceData {
	n := 1000
	t := &TraceData{
		TrialID:    "Sub1_T5",
		Timestamps: make([]float64, n),
		Left:       make([]float64, n),
		Right:      make([]float64, n),
		ForceMax:   600,
	}
	for i := range n {
		t.Timestamps[i] = float64(i) / 100
		if i >= 200 && i < 500 {
			t.Right[i] = 600
		}
	}
	t.SetEvents("threshold", []gait.Event{
		{Time: 2, Type: gait.HeelStrike, Leg: gait.Right, Score: 1},
		{Time: 5, Type: gait.ToeOff, Leg: gait.Right, Score: 0},
		{Time: 42, Type: gait.HeelStrike, Leg: gait.Left, Score: 1},
	}, 0)
	return t
}

func TestTraceRenderer_Render(t *testing.T) {
	trace := testTrace()
	require.Len(t, trace.Events, 2)

	r, err := NewTraceRenderer(RenderConfig{Width: 1070, Height: 400})
	require.NoError(t, err)

	img, err := r.Render(trace)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1070, 400), img.Bounds())

	p := newProjection(r.Area(), trace)

	// Heel strike marker in the score color, above the force trace.
	hs := p.x(2)
	assert.Equal(t, rgba(scoreColor(1)), rgba(img.At(hs, r.Area().Min.Y+1)))

	// Toe off markers are dashed in runs of four pixels.
	to, top := p.x(5), r.Area().Min.Y
	assert.Equal(t, rgba(scoreColor(0)), rgba(img.At(to, top+2)))
	assert.NotEqual(t, rgba(scoreColor(0)), rgba(img.At(to, top+6)))

	// Right trace at its plateau and the idle left trace on the baseline.
	assert.Equal(t, rgba(traceColor(gait.Right)), rgba(img.At(p.x(3.5), p.y(600))))
	assert.Equal(t, rgba(traceColor(gait.Left)), rgba(img.At(p.x(3.5), p.y(0))))
}

func TestNewTraceRenderer_TooSmall(t *testing.T) {
	_, err := NewTraceRenderer(RenderConfig{Width: 50, Height: 50})
	assert.Error(t, err)
}

func TestTraceRenderer_Empty(t *testing.T) {
	r, err := NewTraceRenderer(RenderConfig{})
	require.NoError(t, err)
	_, err = r.Render(&TraceData{})
	assert.ErrorIs(t, err, errEmptyTrace)
}

func TestNewTraceData(t *testing.T) {
	d := &artifact.Document{
		Timestamps: []float64{0, 0.1, 0.2, 0.3, 0.4},
		ForcePlates: artifact.ForcePlates{
			Left:  map[string][]float64{"fz": {-1, -2, -3, -4, -5}},
			Right: map[string][]float64{"fz": {10, 20, 30, 40, 50}},
		},
	}
	from, to := 0.1, 0.3

	trace, err := NewTraceData("T5", d, &from, &to)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, trace.Timestamps)
	assert.Equal(t, []float64{2, 3, 4}, trace.Left)
	assert.Equal(t, 40.0, trace.ForceMax)

	trace.SetEvents("truth", []gait.Event{
		{Time: 0, Score: 1},
		{Time: 0.2, Score: 0.5},
		{Time: 0.25, Score: 0.9},
	}, 0.6)
	require.Len(t, trace.Events, 1)
	assert.Equal(t, 0.25, trace.Events[0].Time)

	from, to = 1, 2
	_, err = NewTraceData("T5", d, &from, &to)
	assert.ErrorIs(t, err, errEmptyTrace)
}

func TestNiceStep(t *testing.T) {
	testCases := []struct {
		span, labels, want float64
	}{
		{10, 8, 2},
		{700, 1, 1000},
		{0.95, 10, 0.1},
		{30, 3, 10},
		{0, 5, 1},
	}
	for _, tc := range testCases {
		assert.InDelta(t, tc.want, niceStep(tc.span, tc.labels), 1e-9, "span %v labels %v", tc.span, tc.labels)
	}
}

func TestScoreColor(t *testing.T) {
	red := rgba(scoreColor(0))
	green := rgba(scoreColor(1))
	assert.Greater(t, red.R, red.G)
	assert.Greater(t, green.G, green.R)
	assert.Equal(t, red, rgba(scoreColor(-3)))
	assert.Equal(t, green, rgba(scoreColor(7)))
}
