// Package skyplot renders a polar azimuth/elevation view of the
// constellation as a PNG image.
package skyplot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/radiolab/gnss-simulator/internal/constellation"
)

const (
	dpi      = 72.0
	fontSize = 11.0

	DefaultSize = 600

	// Outer margin leaves room for azimuth labels.
	margin = 30

	satelliteRadius = 6
)

var (
	background = color.RGBA{R: 0x10, G: 0x14, B: 0x1c, A: 0xff}
	gridColor  = color.RGBA{R: 0x3a, G: 0x42, B: 0x50, A: 0xff}
	textColor  = image.NewUniform(color.RGBA{R: 0xc8, G: 0xd0, B: 0xdc, A: 0xff})

	visibleColor   = color.RGBA{G: 0xc8, B: 0x50, A: 0xff}
	unhealthyColor = color.RGBA{R: 0xd8, G: 0x40, B: 0x30, A: 0xff}
	maskedColor    = color.RGBA{R: 0x60, G: 0x66, B: 0x70, A: 0xff}
)

// WithSize sets the output image size in pixels (square).
func WithSize(size int) func(r *Renderer) {
	return func(r *Renderer) {
		if size > 2*margin {
			r.size = size
		}
	}
}

// Renderer draws sky plots. It is safe for concurrent use once created.
type Renderer struct {
	size int
	font *truetype.Font
}

// NewRenderer creates a Renderer. fontPath may be empty, in which case
// plots are drawn without PRN labels.
func NewRenderer(fontPath string, options ...func(r *Renderer)) (*Renderer, error) {
	r := Renderer{size: DefaultSize}

	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("reading font file: %w", err)
		}

		r.font, err = freetype.ParseFont(data)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}
	}

	for _, option := range options {
		option(&r)
	}

	return &r, nil
}

// Render draws the constellation state and writes it as PNG.
func (r *Renderer) Render(w io.Writer, state *constellation.State) error {
	img := image.NewRGBA(image.Rect(0, 0, r.size, r.size))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	cx, cy := r.size/2, r.size/2
	radius := r.size/2 - margin

	r.drawGrid(img, cx, cy, radius)

	var ctx *freetype.Context
	if r.font != nil {
		ctx = freetype.NewContext()
		ctx.SetDPI(dpi)
		ctx.SetFont(r.font)
		ctx.SetFontSize(fontSize)
		ctx.SetSrc(textColor)
		ctx.SetHinting(font.HintingFull)
		ctx.SetClip(img.Bounds())
		ctx.SetDst(img)

		r.drawCompass(ctx, cx, cy, radius)
	}

	for _, obs := range state.Observations {
		x, y := project(cx, cy, radius, obs.AzimuthDeg, obs.ElevationDeg)

		c := maskedColor
		switch {
		case obs.Visible && obs.Healthy:
			c = visibleColor
		case obs.Visible:
			c = unhealthyColor
		case obs.ElevationDeg < 0:
			continue // below the horizon entirely
		}

		fillCircle(img, x, y, satelliteRadius, c)

		if ctx != nil {
			pt := freetype.Pt(x+satelliteRadius+2, y+4)
			_, _ = ctx.DrawString(fmt.Sprintf("G%02d", obs.PRN), pt)
		}
	}

	if ctx != nil {
		r.drawInfo(ctx, state)
	}

	return png.Encode(w, img)
}

// drawGrid draws elevation rings at 0, 30 and 60 degrees plus the
// cardinal cross.
func (r *Renderer) drawGrid(img *image.RGBA, cx, cy, radius int) {
	for _, el := range []float64{0, 30, 60} {
		ringRadius := int(float64(radius) * (90 - el) / 90)
		strokeCircle(img, cx, cy, ringRadius, gridColor)
	}

	for i := -radius; i <= radius; i++ {
		img.Set(cx+i, cy, gridColor)
		img.Set(cx, cy+i, gridColor)
	}
}

func (r *Renderer) drawCompass(ctx *freetype.Context, cx, cy, radius int) {
	labels := []struct {
		text string
		x, y int
	}{
		{"N", cx - 4, cy - radius - 8},
		{"E", cx + radius + 8, cy + 4},
		{"S", cx - 4, cy + radius + 16},
		{"W", cx - radius - 20, cy + 4},
	}
	for _, l := range labels {
		_, _ = ctx.DrawString(l.text, freetype.Pt(l.x, l.y))
	}
}

func (r *Renderer) drawInfo(ctx *freetype.Context, state *constellation.State) {
	lines := []string{
		state.Time.Format("2006-01-02 15:04:05 MST"),
		fmt.Sprintf("Visible: %d  Quality: %s", state.VisibleCount, state.Quality),
	}
	if state.PDOPValid {
		lines[1] += fmt.Sprintf("  PDOP: %.2f", state.PDOP)
	}

	pt := freetype.Pt(8, r.size-24)
	for _, line := range lines {
		_, _ = ctx.DrawString(line, pt)
		pt.Y += ctx.PointToFixed(fontSize * 1.2)
	}
}

// project maps azimuth/elevation onto the polar plot. North is up,
// azimuth increases clockwise, the zenith maps to the centre.
func project(cx, cy, radius int, azDeg, elDeg float64) (int, int) {
	if elDeg < 0 {
		elDeg = 0
	}
	r := float64(radius) * (90 - elDeg) / 90
	az := azDeg * math.Pi / 180

	x := cx + int(r*math.Sin(az))
	y := cy - int(r*math.Cos(az))
	return x, y
}

func fillCircle(img *image.RGBA, cx, cy, radius int, c color.Color) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

func strokeCircle(img *image.RGBA, cx, cy, radius int, c color.Color) {
	steps := 8 * radius
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		img.Set(cx+int(float64(radius)*math.Cos(a)), cy+int(float64(radius)*math.Sin(a)), c)
	}
}
