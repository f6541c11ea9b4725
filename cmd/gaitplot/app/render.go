package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

const (
	dpi            = 72.0
	fontSize       = 12.0
	tickMarkHeight = 5
	pixelsPerLabel = 120.0

	defaultWidth  = 1600
	defaultHeight = 600
	minWidth      = 200
	minHeight     = 150

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 70
	defaultBottomBorder = 50
	defaultRightBorder  = 30
)

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int // Space for event labels
	Left   int // Space for the force scale
	Bottom int // Space for the time scale and information bar
	Right  int // Right padding
}

// RenderConfig holds the configuration of the force trace plot
type RenderConfig struct {
	Width         int // Full image width in pixels
	Height        int // Full image height in pixels
	FontSize      float64
	NoAnnotations bool
	BorderConfig  BorderConfig
}

// TraceRenderer draws both vertical force traces with the events marked on top.
type TraceRenderer struct {
	config RenderConfig
}

// NewTraceRenderer creates a new trace renderer with the given configuration
func NewTraceRenderer(config RenderConfig) (*TraceRenderer, error) {
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig == (BorderConfig{}) {
		config.BorderConfig = BorderConfig{
			Top:    defaultTopBorder,
			Left:   defaultLeftBorder,
			Bottom: defaultBottomBorder,
			Right:  defaultRightBorder,
		}
	}

	b := config.BorderConfig
	if config.Width-b.Left-b.Right < 2 || config.Height-b.Top-b.Bottom < 2 {
		return nil, fmt.Errorf("plot area of %dx%d leaves no room inside the borders", config.Width, config.Height)
	}
	return &TraceRenderer{config: config}, nil
}

// Area returns the plot rectangle inside the borders.
func (r *TraceRenderer) Area() image.Rectangle {
	b := r.config.BorderConfig
	return image.Rect(b.Left, b.Top, r.config.Width-b.Right, r.config.Height-b.Bottom)
}

// Render creates an image of the trace
func (r *TraceRenderer) Render(trace *TraceData) (*image.RGBA, error) {
	if len(trace.Timestamps) == 0 {
		return nil, errEmptyTrace
	}

	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	p := newProjection(r.Area(), trace)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(r.config.FontSize, r.config.BorderConfig)
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, p, trace); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderTrace(img, p, trace.Timestamps, trace.Left, traceColor(gait.Left))
	r.renderTrace(img, p, trace.Timestamps, trace.Right, traceColor(gait.Right))
	r.renderEvents(img, p, trace.Events)
	return img, nil
}

func (r *TraceRenderer) renderTrace(img *image.RGBA, p projection, ts, fz []float64, c color.Color) {
	prevOK := false
	var px, py int
	for i := range min(len(ts), len(fz)) {
		if math.IsNaN(fz[i]) {
			prevOK = false
			continue
		}
		x, y := p.x(ts[i]), p.y(fz[i])
		if prevOK {
			drawLine(img, px, py, x, y, c)
		} else {
			img.Set(x, y, c)
		}
		px, py, prevOK = x, y, true
	}
}

// renderEvents draws a vertical marker per event colored by its confidence: solid for heel strikes,
// dashed for toe offs.
func (r *TraceRenderer) renderEvents(img *image.RGBA, p projection, events []gait.Event) {
	for _, e := range events {
		x := p.x(e.Time)
		c := scoreColor(e.Score)
		for y := p.area.Min.Y; y < p.area.Max.Y; y++ {
			if e.Type == gait.ToeOff && (y/4)%2 == 1 {
				continue
			}
			img.Set(x, y, c)
		}
	}
}

// projection maps seconds and newtons onto the plot area.
type projection struct {
	area             image.Rectangle
	start, end, fmax float64
}

func newProjection(area image.Rectangle, trace *TraceData) projection {
	p := projection{area: area, start: trace.Start(), end: trace.End(), fmax: trace.ForceMax}
	if p.end <= p.start {
		p.end = p.start + 1
	}
	if p.fmax <= 0 {
		p.fmax = 1
	}
	p.fmax = niceStep(p.fmax, 1) // headroom up to the next round value
	return p
}

func (p projection) x(t float64) int {
	ratio := (t - p.start) / (p.end - p.start)
	return p.area.Min.X + int(math.Round(ratio*float64(p.area.Dx()-1)))
}

func (p projection) y(f float64) int {
	ratio := math.Max(0, math.Min(1, f/p.fmax))
	return p.area.Max.Y - 1 - int(math.Round(ratio*float64(p.area.Dy()-1)))
}

// drawLine draws a Bresenham line between two points.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	borders  BorderConfig
}

func newAnnotator(size float64, borders BorderConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		borders: borders,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, p projection, trace *TraceData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, projection, *TraceData) error
	}{
		{"drawing time scale", a.drawTimeScale},
		{"drawing force scale", a.drawForceScale},
		{"drawing event labels", a.drawEventLabels},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, p, trace); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}
	return nil
}

func (a *annotator) fontHeight() int {
	m := a.fontFace.Metrics()
	return (m.Ascent + m.Descent).Round()
}

func (a *annotator) drawTimeScale(img *image.RGBA, p projection, _ *TraceData) error {
	step := niceStep(p.end-p.start, float64(p.area.Dx())/pixelsPerLabel)
	textY := p.area.Max.Y + tickMarkHeight + a.fontHeight()

	for t := math.Ceil(p.start/step) * step; t <= p.end; t += step {
		x := p.x(t)
		for y := p.area.Min.Y; y < p.area.Max.Y; y++ {
			img.Set(x, y, gridColor)
		}
		for y := p.area.Max.Y; y < p.area.Max.Y+tickMarkHeight; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatSeconds(t, step)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawForceScale(img *image.RGBA, p projection, _ *TraceData) error {
	step := niceStep(p.fmax, float64(p.area.Dy())/(pixelsPerLabel/2))
	m := a.fontFace.Metrics()

	for f := 0.0; f <= p.fmax; f += step {
		y := p.y(f)
		for x := p.area.Min.X; x < p.area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
		for x := p.area.Min.X - tickMarkHeight; x < p.area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%.0f N", f)
		width := font.MeasureString(a.fontFace, label)
		textY := y + a.fontHeight()/2 - m.Descent.Round()
		pt := freetype.Pt(p.area.Min.X-tickMarkHeight-3-width.Round(), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing force label: %w", err)
		}
	}
	return nil
}

// drawEventLabels writes the leg and event type above each marker, e.g. "R-HS".
func (a *annotator) drawEventLabels(_ *image.RGBA, p projection, trace *TraceData) error {
	textY := p.area.Min.Y - 4
	for _, e := range trace.Events {
		label := eventLabel(e)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(p.x(e.Time)-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing event label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, p projection, trace *TraceData) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Trial: %s", trace.TrialID))
	if trace.Source != "" {
		sb.WriteString(fmt.Sprintf("; Events: %s (%s)", humanize.Comma(int64(len(trace.Events))), trace.Source))
	}
	sb.WriteString(fmt.Sprintf("; Time: %.3f - %.3f s", p.start, p.end))
	sb.WriteString(fmt.Sprintf("; Samples: %s", humanize.Comma(int64(len(trace.Timestamps)))))
	sb.WriteString("; left blue, right orange")

	m := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - m.Descent.Round() - 3
	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.borders.Left, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

func eventLabel(e gait.Event) string {
	leg := "R"
	if e.Leg == gait.Left {
		leg = "L"
	}
	typ := "HS"
	if e.Type == gait.ToeOff {
		typ = "TO"
	}
	return leg + "-" + typ
}

// niceStep returns a 1, 2 or 5 x 10^n step that divides span into at most labels intervals.
func niceStep(span, labels float64) float64 {
	if span <= 0 {
		return 1
	}
	labels = max(labels, 1)
	rough := span / labels
	exp := math.Pow(10, math.Floor(math.Log10(rough)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * exp; step >= rough {
			return step
		}
	}
	return 10 * exp
}

func formatSeconds(t, step float64) string {
	switch {
	case step >= 1:
		return fmt.Sprintf("%.0fs", t)
	case step >= 0.1:
		return fmt.Sprintf("%.1fs", t)
	default:
		return fmt.Sprintf("%.2fs", t)
	}
}
