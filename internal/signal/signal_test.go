package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimate_HalvesRamp(t *testing.T) {
	x := make([]float64, 20)
	for i := range x {
		x[i] = float64(i)
	}

	got := Decimate(x, 2, 10)
	assert.Equal(t, []float64{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, got)
}

func TestDecimate_ExactLength(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7}

	testCases := []struct {
		name   string
		target int
		want   []float64
	}{
		{"pad with last value", 6, []float64{1, 3, 5, 7, 7, 7}},
		{"truncate", 2, []float64{1, 3}},
		{"exact", 4, []float64{1, 3, 5, 7}},
		{"zero target", 0, []float64{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decimate(x, 2, tc.target)
			require.Len(t, got, tc.target)
			assert.Equal(t, tc.want, got)
		})
	}

	assert.Equal(t, []float64{0, 0, 0}, Decimate(nil, 2, 3))
}

func TestInterpolate_ClampsOutsideRange(t *testing.T) {
	srcT := []float64{0.1, 0.2, 0.3}
	srcV := []float64{10, 20, 40}

	got := Interpolate(srcT, srcV, []float64{0, 0.05, 0.1, 0.15, 0.25, 0.3, 0.31, 5})
	assert.Equal(t, 10.0, got[0])
	assert.Equal(t, 10.0, got[1])
	assert.Equal(t, 10.0, got[2])
	assert.InDelta(t, 15.0, got[3], 1e-9)
	assert.InDelta(t, 30.0, got[4], 1e-9)
	assert.Equal(t, 40.0, got[5])
	assert.Equal(t, 40.0, got[6])
	assert.Equal(t, 40.0, got[7])
}

func TestInterpolate_EmptySource(t *testing.T) {
	got := Interpolate(nil, nil, []float64{0, 1})
	assert.Equal(t, []float64{0, 0}, got)
}

func TestMovingAverage_Trailing(t *testing.T) {
	got := MovingAverage([]float64{0, 0, 10, 10, 10}, 2)
	assert.Equal(t, []float64{0, 0, 5, 10, 10}, got)

	assert.Equal(t, []float64{1, 2}, MovingAverage([]float64{1, 2}, 1))
}

func TestCenteredMovingAverage(t *testing.T) {
	got := CenteredMovingAverage([]float64{0, 3, 0, 3}, 1)
	assert.InDeltaSlice(t, []float64{1.5, 1, 2, 1.5}, got, 1e-9)
}

func TestTrapezoid(t *testing.T) {
	// y = 100 N held for 1 s sampled at 1 kHz
	y := make([]float64, 1001)
	for i := range y {
		y[i] = 100
	}
	assert.InDelta(t, 100.0, Trapezoid(y, 0.001), 1e-9)

	// triangle 0 -> 10 -> 0 over 2 s
	assert.InDelta(t, 10.0, Trapezoid([]float64{0, 10, 0}, 1), 1e-9)
	assert.Zero(t, Trapezoid([]float64{5}, 1))
}

func TestStatistics(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)

	assert.Zero(t, CV([]float64{4}))
	assert.Zero(t, CV([]float64{-1, 1}))
	assert.InDelta(t, math.Sqrt2/2, CV([]float64{1, 3}), 1e-9)
	assert.InDelta(t, 1.0, RMS([]float64{1, -1, 1, -1}), 1e-12)
	assert.Equal(t, 3, ArgMax([]float64{1, 2, 0, 9, 9}))
	assert.Equal(t, -1, ArgMax(nil))
	assert.InDelta(t, 95.0, Percentile(rampTo(100), 0.95), 1.0)
}

func rampTo(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[n-1-i] = float64(i + 1)
	}
	return x
}

func TestRoundAndClamp(t *testing.T) {
	assert.Equal(t, 1.3, Round(1.25, 1))
	assert.Equal(t, -1.3, Round(-1.25, 1))
	assert.Equal(t, 0.000123, Round(0.0001234, 6))

	assert.Zero(t, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Zero(t, Confidence(10, 50, 1000))
	assert.InDelta(t, 0.5, Confidence(525, 50, 1000), 1e-12)
}

func TestSanitizeAndCrossings(t *testing.T) {
	x := []float64{0, math.NaN(), 200, math.Inf(1), 0}
	assert.False(t, AllFinite(x))
	assert.Equal(t, 2, Sanitize(x))
	assert.True(t, AllFinite(x))

	up, down := Crossings([]float64{0, 150, 150, 0, 150}, 100)
	assert.Equal(t, 2, up)
	assert.Equal(t, 1, down)

	mean, n := MeanAbove([]float64{50, 150, 250}, 100)
	assert.Equal(t, 2, n)
	assert.Equal(t, 200.0, mean)
}
