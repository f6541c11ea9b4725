package sensor

import (
	"math"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

const (
	// DefaultMinDuration is the recording length below which a trial yields weak demo segments.
	DefaultMinDuration = 200.0

	// LoadingThreshold separates loading phases from swing on a force plate, N.
	LoadingThreshold = 100.0

	maxQuality = 5
)

// Quality is the outcome of Validate.
type Quality struct {
	Score           int
	Valid           bool
	AsymmetryRatio  float64 // right/left mean loading force; +Inf when the left plate is never loaded
	Recommendations []string
}

// Validate grades a series for demo suitability. Findings are warnings; Valid is false when the
// score drops below 3.
func Validate(s *Series, minDuration float64) fault.Result[Quality] {
	q := Quality{Score: maxQuality}
	var result fault.Result[Quality]
	source := string(s.Modality)

	if minDuration <= 0 {
		minDuration = DefaultMinDuration
	}
	if d := s.Duration(); d < minDuration {
		result.Add(fault.Warn(fault.ShortRecording, source, "duration %.1fs is below %.0fs", d, minDuration))
		q.Score--
	}
	if !s.Consistent() {
		result.Add(fault.Warn(fault.LengthMismatch, source, "channel lengths differ from the timestamp count"))
		q.Score -= 2
	}

	if s.Modality == Kinetics {
		right, _ := s.Channel(PlateColumn(gait.Right, gait.Fz))
		left, _ := s.Channel(PlateColumn(gait.Left, gait.Fz))
		rightMean, rightN := meanAbsAbove(right, LoadingThreshold)
		leftMean, leftN := meanAbsAbove(left, LoadingThreshold)

		switch {
		case rightN > 0 && leftN > 0:
			q.AsymmetryRatio = rightMean / leftMean
			switch {
			case q.AsymmetryRatio > 2:
				q.Recommendations = append(q.Recommendations, "excellent constraint pattern")
			case q.AsymmetryRatio > 1.5:
				q.Recommendations = append(q.Recommendations, "good constraint pattern")
			default:
				result.Add(fault.Warn(fault.LoadingAsymmetry, source, "weak constraint pattern: only %.1f:1 loading asymmetry", q.AsymmetryRatio))
				q.Score--
			}
		case rightN == 0 && leftN == 0:
			result.Add(fault.Warn(fault.LoadingAsymmetry, source, "no loading phases detected"))
			q.Score -= 2
		case leftN == 0:
			q.AsymmetryRatio = math.Inf(1)
			q.Recommendations = append(q.Recommendations, "complete left unloading with right compensation")
		}
	}

	q.Valid = q.Score >= 3
	result.Value = q
	return result
}

func meanAbsAbove(x []float64, threshold float64) (float64, int) {
	var sum float64
	var n int
	for _, v := range x {
		if a := math.Abs(v); a > threshold {
			sum += a
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
