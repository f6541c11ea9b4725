package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

const (
	hueLow  = 0.0   // red, confidence 0
	hueHigh = 120.0 // green, confidence 1
)

var (
	leftTraceColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	rightTraceColor = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
	gridColor       = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
)

// scoreColor maps an event confidence in [0, 1] from red through yellow to green.
func scoreColor(score float64) color.Color {
	if math.IsNaN(score) {
		score = 0
	}
	score = math.Max(0, math.Min(1, score))
	return colorful.Hsv(hueLow+score*(hueHigh-hueLow), 1, 0.85)
}

func traceColor(leg gait.Leg) color.Color {
	if leg == gait.Left {
		return leftTraceColor
	}
	return rightTraceColor
}
