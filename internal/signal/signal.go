// Package signal holds the numeric primitives shared by the synchronizer, detectors and metrics:
// smoothing, resampling, summary statistics and integration over plain float64 slices.
package signal

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MovingAverage returns the trailing moving average of x: y[i] is the mean of
// x[max(0, i-window+1) .. i]. A window below 2 returns a copy of x.
func MovingAverage(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window < 2 {
		copy(out, x)
		return out
	}

	var sum float64
	for i, v := range x {
		sum += v
		if i >= window {
			sum -= x[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// CenteredMovingAverage returns the mean of x over [i-half, i+half] for every i, with the window
// clipped at both ends.
func CenteredMovingAverage(x []float64, half int) []float64 {
	out := make([]float64, len(x))
	if half < 1 {
		copy(out, x)
		return out
	}

	prefix := make([]float64, len(x)+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}
	for i := range x {
		lo := max(0, i-half)
		hi := min(len(x), i+half+1)
		out[i] = (prefix[hi] - prefix[lo]) / float64(hi-lo)
	}
	return out
}

// Rectify returns |x| element-wise.
func Rectify(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Abs(v)
	}
	return out
}

// Envelope rectifies x and smooths it with a centered moving average.
func Envelope(x []float64, half int) []float64 {
	return CenteredMovingAverage(Rectify(x), half)
}

// Decimate keeps every factor-th sample of x starting with the first one, then pads with the
// last kept value or truncates so the result has exactly target samples. No anti-alias
// filtering is applied.
func Decimate(x []float64, factor, target int) []float64 {
	if target <= 0 {
		return []float64{}
	}
	factor = max(factor, 1)

	out := make([]float64, 0, target)
	for i := 0; i < len(x) && len(out) < target; i += factor {
		out = append(out, x[i])
	}

	var last float64
	if len(out) > 0 {
		last = out[len(out)-1]
	}
	for len(out) < target {
		out = append(out, last)
	}
	return out
}

// Interpolate evaluates the piecewise-linear function through (srcT, srcV) at every time in dstT.
// Times before the first or after the last source sample take the boundary value exactly.
// srcT must be ascending.
func Interpolate(srcT, srcV, dstT []float64) []float64 {
	out := make([]float64, len(dstT))
	n := min(len(srcT), len(srcV))
	if n == 0 {
		return out
	}

	j := 0
	for i, t := range dstT {
		switch {
		case t <= srcT[0]:
			out[i] = srcV[0]
		case t >= srcT[n-1]:
			out[i] = srcV[n-1]
		default:
			if t < srcT[j] {
				j = 0
			}
			for j < n-2 && srcT[j+1] < t {
				j++
			}
			t0, t1 := srcT[j], srcT[j+1]
			if t1 == t0 {
				out[i] = srcV[j]
				continue
			}
			ratio := (t - t0) / (t1 - t0)
			out[i] = srcV[j] + ratio*(srcV[j+1]-srcV[j])
		}
	}
	return out
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// CV returns the coefficient of variation (sample standard deviation over mean). It is 0 for
// fewer than two values or a zero mean.
func CV(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(x, nil)
	if mean == 0 {
		return 0
	}
	return std / math.Abs(mean)
}

// RMS returns the root mean square, or 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// Max returns the largest value, or 0 for an empty slice.
func Max(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x)
}

// ArgMax returns the index of the first largest value, or -1 for an empty slice.
func ArgMax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}

// Percentile returns the p-quantile (p in [0,1]) of x using the empirical CDF.
func Percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	return stat.Quantile(Clamp01(p), stat.Empirical, sorted, nil)
}

// Trapezoid integrates uniformly sampled y with step dt using the trapezoidal rule.
func Trapezoid(y []float64, dt float64) float64 {
	if len(y) < 2 {
		return 0
	}
	return dt * (floats.Sum(y) - (y[0]+y[len(y)-1])/2)
}

// Round rounds v to the given number of decimals, half away from zero.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// RoundAll rounds every element of x into a new slice.
func RoundAll(x []float64, decimals int) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = Round(v, decimals)
	}
	return out
}

// Clamp01 limits v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Confidence linearly maps v from [threshold, maxValue] onto [0, 1]. Values below the threshold
// score 0.
func Confidence(v, threshold, maxValue float64) float64 {
	if v < threshold || maxValue <= threshold {
		return 0
	}
	return Clamp01((v - threshold) / (maxValue - threshold))
}

// Sanitize replaces NaN and infinite samples with 0 in place and returns how many were replaced.
func Sanitize(x []float64) int {
	var n int
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			x[i] = 0
			n++
		}
	}
	return n
}

// AllFinite reports whether x holds no NaN or infinite values.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Crossings counts upward and downward crossings of the threshold.
func Crossings(x []float64, threshold float64) (up, down int) {
	for i := 1; i < len(x); i++ {
		switch {
		case x[i-1] < threshold && x[i] >= threshold:
			up++
		case x[i-1] >= threshold && x[i] < threshold:
			down++
		}
	}
	return up, down
}

// MeanAbove returns the mean of the values strictly above the threshold and how many there were.
func MeanAbove(x []float64, threshold float64) (float64, int) {
	var sum float64
	var n int
	for _, v := range x {
		if v > threshold {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
