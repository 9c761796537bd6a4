package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 72.0
	fontSize       = 12.0
	tickMarkLength = 5
	markerRadius   = 2

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 50
	defaultBottomBorder = 40
	defaultRightBorder  = 20

	defaultWidth  = 1024
	defaultHeight = 512
	defaultYMax   = 150
	defaultYStep  = 10
)

var gridColor = color.Gray{Y: 0xDD}

// BorderConfig defines the sizes of white space around the plot area
type BorderConfig struct {
	Top    int // Space for title and legend
	Left   int // Space for RSSI scale
	Bottom int // Space for X scale
	Right  int // Right padding
}

// RenderConfig holds the image size and the fixed RSSI axis
type RenderConfig struct {
	Width    int
	Height   int
	YMax     int     // Top of the RSSI axis, the bottom is 0
	YStep    int     // Distance between two RSSI grid lines
	FontSize float64 // Font size in points

	BorderConfig BorderConfig
}

// Renderer draws frames into images. It is not safe for concurrent use.
type Renderer struct {
	config   RenderConfig
	context  *freetype.Context
	fontFace font.Face
}

// NewRenderer creates a new Renderer with the given configuration
func NewRenderer(config RenderConfig) (*Renderer, error) {
	// Set defaults for zero values
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.YMax == 0 {
		config.YMax = defaultYMax
	}
	if config.YStep == 0 {
		config.YStep = defaultYStep
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &Renderer{
		config:  config,
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (r *Renderer) Close() error {
	if r.fontFace != nil {
		return r.fontFace.Close()
	}
	return nil
}

// Render draws f with its scales, title and legend
func (r *Renderer) Render(f *Frame) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(
		r.config.BorderConfig.Left,
		r.config.BorderConfig.Top,
		r.config.Width-r.config.BorderConfig.Right,
		r.config.Height-r.config.BorderConfig.Bottom,
	)
	if area.Dx() < 2 || area.Dy() < 2 {
		return nil, fmt.Errorf("image %dx%d too small for its borders", r.config.Width, r.config.Height)
	}

	r.context.SetClip(img.Bounds())
	r.context.SetDst(img)

	if err := r.drawYScale(img, area); err != nil {
		return nil, fmt.Errorf("drawing rssi scale: %w", err)
	}
	if err := r.drawXScale(img, area, f); err != nil {
		return nil, fmt.Errorf("drawing x scale: %w", err)
	}
	if err := r.drawHeader(img, f); err != nil {
		return nil, fmt.Errorf("drawing header: %w", err)
	}

	for _, line := range f.Lines {
		r.drawLine(img, area, f, line)
	}

	return img, nil
}

func (r *Renderer) drawYScale(img *image.RGBA, area image.Rectangle) error {
	metrics := r.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for v := 0; v <= r.config.YMax; v += r.config.YStep {
		y := r.yToPx(area, float64(v))

		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%d", v)
		width := font.MeasureString(r.fontFace, label).Round()
		pt := freetype.Pt(area.Min.X-tickMarkLength-3-width, y+fontHeight/2-metrics.Descent.Round())
		if _, err := r.context.DrawString(label, pt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawXScale(img *image.RGBA, area image.Rectangle, f *Frame) error {
	for x := area.Min.X; x < area.Max.X; x++ {
		img.Set(x, area.Max.Y-1, color.Black)
	}
	if f.XMax <= f.XMin || f.XStep <= 0 {
		return nil
	}

	metrics := r.fontFace.Metrics()
	textY := area.Max.Y + tickMarkLength + metrics.Ascent.Round() + 2

	start := math.Ceil(f.XMin/f.XStep) * f.XStep
	for v := start; v <= f.XMax; v += f.XStep {
		x := r.xToPx(area, f, v)
		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := f.XLabel(v)
		width := font.MeasureString(r.fontFace, label).Round()
		if _, err := r.context.DrawString(label, freetype.Pt(x-width/2, textY)); err != nil {
			return err
		}
	}
	return nil
}

// drawHeader draws the title on the left and the legend on the right
func (r *Renderer) drawHeader(img *image.RGBA, f *Frame) error {
	metrics := r.fontFace.Metrics()
	textY := r.config.BorderConfig.Top/2 + metrics.Ascent.Round()/2

	if _, err := r.context.DrawString(f.Title, freetype.Pt(r.config.BorderConfig.Left, textY)); err != nil {
		return err
	}

	x := r.config.Width - r.config.BorderConfig.Right
	for i := len(f.Lines) - 1; i >= 0; i-- {
		line := f.Lines[i]
		x -= font.MeasureString(r.fontFace, line.Title).Round()
		if _, err := r.context.DrawString(line.Title, freetype.Pt(x, textY)); err != nil {
			return err
		}

		swatch := image.Rect(x-14, textY-metrics.Ascent.Round()/2-4, x-4, textY-metrics.Ascent.Round()/2+4)
		draw.Draw(img, swatch, image.NewUniform(line.Color), image.Point{}, draw.Src)
		x -= 28
	}
	return nil
}

func (r *Renderer) drawLine(img *image.RGBA, area image.Rectangle, f *Frame, line Line) {
	var prev *image.Point
	for _, p := range line.Points {
		if p == nil || p.X < f.XMin || p.X > f.XMax {
			prev = nil
			continue
		}

		pt := image.Pt(r.xToPx(area, f, p.X), r.yToPx(area, p.Y))
		if line.Markers {
			marker := image.Rect(pt.X-markerRadius, pt.Y-markerRadius, pt.X+markerRadius+1, pt.Y+markerRadius+1)
			draw.Draw(img, marker.Intersect(area), image.NewUniform(line.Color), image.Point{}, draw.Src)
			continue
		}

		if prev == nil {
			img.Set(pt.X, pt.Y, line.Color)
		} else {
			bresenham(img, *prev, pt, line.Color)
		}
		prev = &pt
	}
}

func (r *Renderer) xToPx(area image.Rectangle, f *Frame, x float64) int {
	if f.XMax <= f.XMin {
		return area.Min.X
	}
	ratio := (x - f.XMin) / (f.XMax - f.XMin)
	return area.Min.X + int(math.Round(ratio*float64(area.Dx()-1)))
}

func (r *Renderer) yToPx(area image.Rectangle, y float64) int {
	y = math.Max(0, math.Min(y, float64(r.config.YMax)))
	ratio := y / float64(r.config.YMax)
	return area.Max.Y - 1 - int(math.Round(ratio*float64(area.Dy()-1)))
}

func bresenham(img *image.RGBA, from, to image.Point, c color.Color) {
	dx := abs(to.X - from.X)
	dy := -abs(to.Y - from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}

	err := dx + dy
	x, y := from.X, from.Y
	for {
		img.Set(x, y, c)
		if x == to.X && y == to.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
