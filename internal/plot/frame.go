package plot

import (
	"fmt"
	"image/color"

	"github.com/dustin/go-humanize"
	"github.com/roman-kulish/rotorscope/internal/acquisition"
	"github.com/roman-kulish/rotorscope/internal/series"
)

var (
	LiveColor    = color.RGBA{R: 0x21, G: 0x96, B: 0xF3, A: 0xFF}
	MinColor     = color.RGBA{R: 0x4C, G: 0xAF, B: 0x50, A: 0xFF}
	MaxColor     = color.RGBA{R: 0xF4, G: 0x43, B: 0x36, A: 0xFF}
	HistoryColor = color.RGBA{R: 0xFF, G: 0x98, B: 0x00, A: 0xFF}
)

// XY is a point in data coordinates
type XY struct {
	X float64
	Y float64
}

// Line is one plotted series. A nil point breaks the line.
type Line struct {
	Title   string
	Color   color.Color
	Points  []*XY
	Markers bool // Draw every point as a square instead of joining them
}

// Frame is everything drawn into one image
type Frame struct {
	Title  string
	XMin   float64
	XMax   float64
	XStep  float64              // Distance between two X labels
	XLabel func(float64) string // Formats an X label
	Lines  []Line
}

// FromView builds the frame of the active session. It returns false while idle.
func FromView(v *acquisition.View) (*Frame, bool) {
	switch {
	case v == nil:
		return nil, false
	case v.State == acquisition.Sweeping && v.Live != nil:
		return Spectrum(v.Band, v.Live, v.Min, v.Max), true
	case v.State == acquisition.Monitoring && v.Trace != nil:
		return Trace(v.Frequency, v.Window, v.Trace, v.History), true
	default:
		return nil, false
	}
}

// Spectrum builds the sweep frame: min, max and live over the band
func Spectrum(band acquisition.Band, live, lo, hi *series.FixedSeries) *Frame {
	return &Frame{
		Title:  fmt.Sprintf("Spectrum %s", band),
		XMin:   float64(band.Low),
		XMax:   float64(band.High),
		XStep:  niceFrequencyStep(band.High - band.Low),
		XLabel: frequencyLabel,
		Lines: []Line{
			{Title: lo.Title(), Color: MinColor, Points: binPoints(lo)},
			{Title: hi.Title(), Color: MaxColor, Points: binPoints(hi)},
			{Title: live.Title(), Color: LiveColor, Points: binPoints(live)},
		},
	}
}

// Trace builds the monitor frame: the live trace and history markers over
// the window ending at the newest sample. X labels are seconds relative to it.
func Trace(frequency int, window int64, trace, history *series.RingSeries) *Frame {
	points := trace.Points()

	var end int64
	if len(points) > 0 {
		end = points[len(points)-1].X
	}
	start := end - window

	title := "RSSI"
	if frequency != 0 {
		title = fmt.Sprintf("RSSI at %s", frequencyLabel(float64(frequency)))
	}

	return &Frame{
		Title:  title,
		XMin:   float64(start),
		XMax:   float64(end),
		XStep:  niceTimeStep(window),
		XLabel: func(x float64) string { return fmt.Sprintf("%.1fs", (x-float64(end))/1000) },
		Lines: []Line{
			{Title: trace.Title(), Color: LiveColor, Points: ringPoints(points)},
			{Title: history.Title(), Color: HistoryColor, Points: ringPoints(history.Points()), Markers: true},
		},
	}
}

func binPoints(fs *series.FixedSeries) []*XY {
	bins := fs.Bins()

	points := make([]*XY, len(bins)) // Preallocate with length
	for i, b := range bins {
		if b.Valid {
			points[i] = &XY{X: float64(b.Frequency), Y: float64(b.Value)}
		}
	}
	return points
}

func ringPoints(ps []series.Point) []*XY {
	points := make([]*XY, len(ps)) // Preallocate with length
	for i, p := range ps {
		points[i] = &XY{X: float64(p.X), Y: float64(p.Y)}
	}
	return points
}

// frequencyLabel formats a frequency in MHz
func frequencyLabel(mhz float64) string {
	fract, suffix := humanize.ComputeSI(mhz * 1e6)
	return fmt.Sprintf("%0.3f %sHz", fract, suffix)
}

func niceFrequencyStep(span int) float64 {
	for _, step := range []int{5, 10, 20, 25, 50, 100, 200, 500} {
		if span/step <= 8 {
			return float64(step)
		}
	}
	return float64(span) / 2
}

func niceTimeStep(window int64) float64 {
	for _, step := range []int64{500, 1000, 2000, 5000, 10000, 30000, 60000} {
		if window/step <= 10 {
			return float64(step)
		}
	}
	return float64(window) / 2
}
