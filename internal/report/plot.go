package report

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/mrsinham/dvhgrab/internal/dvh"
	"github.com/mrsinham/dvhgrab/internal/session"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Chart geometry, in pixels.
const (
	chartWidth   = 800
	chartHeight  = 500
	marginLeft   = 60
	marginRight  = 160
	marginTop    = 30
	marginBottom = 50
	gridLines    = 5
)

var (
	chartBackground = color.RGBA{255, 255, 255, 255}
	chartAxis       = color.RGBA{40, 40, 40, 255}
	chartGrid       = color.RGBA{220, 220, 220, 255}

	curveColors = []color.RGBA{
		{31, 119, 180, 255},
		{214, 39, 40, 255},
		{44, 160, 44, 255},
		{255, 127, 14, 255},
		{148, 103, 189, 255},
		{140, 86, 75, 255},
		{227, 119, 194, 255},
		{23, 190, 207, 255},
	}
)

// Curve is one labelled DVH of a chart.
type Curve struct {
	Label string
	DVH   *dvh.DVH
}

// CurvesFromResults returns the DVHs of the resolved structures of t.
func CurvesFromResults(t *session.ResultsTable) []Curve {
	var curves []Curve
	for _, s := range t.Structures {
		if s.DVH != nil && s.DVH.Volume() > 0 {
			curves = append(curves, Curve{Label: s.Name, DVH: s.DVH})
		}
	}
	return curves
}

// PlotDVH renders the cumulative DVHs as a PNG chart: dose in Gy on the x
// axis and percent of each structure volume on the y axis.
func PlotDVH(w io.Writer, curves []Curve) error {
	if len(curves) == 0 {
		return fmt.Errorf("no DVH to plot")
	}
	img := RenderDVH(curves)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	return nil
}

// RenderDVH draws the chart image.
func RenderDVH(curves []Curve) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: chartBackground}, image.Point{}, draw.Src)

	maxDose := 0.0
	for _, c := range curves {
		maxDose = math.Max(maxDose, c.DVH.Max())
	}
	maxDose = niceCeil(maxDose)

	plotW := chartWidth - marginLeft - marginRight
	plotH := chartHeight - marginTop - marginBottom
	toX := func(dose float64) int { return marginLeft + int(dose/maxDose*float64(plotW)) }
	toY := func(pct float64) int { return marginTop + plotH - int(pct/100*float64(plotH)) }

	for i := 0; i <= gridLines; i++ {
		pct := float64(i) * 100 / gridLines
		dose := float64(i) * maxDose / gridLines
		drawLine(img, marginLeft, toY(pct), marginLeft+plotW, toY(pct), chartGrid, 1)
		drawLine(img, toX(dose), marginTop, toX(dose), marginTop+plotH, chartGrid, 1)
		drawText(img, marginLeft-35, toY(pct)+4, fmt.Sprintf("%3.0f", pct), chartAxis)
		drawText(img, toX(dose)-10, marginTop+plotH+18, fmt.Sprintf("%.0f", dose), chartAxis)
	}
	drawLine(img, marginLeft, marginTop, marginLeft, marginTop+plotH, chartAxis, 2)
	drawLine(img, marginLeft, marginTop+plotH, marginLeft+plotW, marginTop+plotH, chartAxis, 2)
	drawText(img, marginLeft+plotW/2-30, chartHeight-10, "Dose (Gy)", chartAxis)
	drawText(img, 5, marginTop-12, "Volume (%)", chartAxis)

	for i, c := range curves {
		col := curveColors[i%len(curveColors)]
		vol := c.DVH.Volume()
		prevX, prevY := -1, -1
		for bin, v := range c.DVH.Counts {
			dose := float64(bin) * dvh.BinWidth
			if dose > maxDose {
				break
			}
			x, y := toX(dose), toY(100*v/vol)
			if prevX >= 0 && (x != prevX || y != prevY) {
				drawLine(img, prevX, prevY, x, y, col, 2)
			}
			prevX, prevY = x, y
		}

		ly := marginTop + 10 + i*18
		lx := marginLeft + plotW + 15
		drawLine(img, lx, ly-4, lx+20, ly-4, col, 3)
		drawText(img, lx+26, ly, c.Label, chartAxis)
	}
	return img
}

// niceCeil rounds a dose up to a multiple of 5 Gy, at least 5.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 5
	}
	return math.Ceil(v/5) * 5
}

// drawLine draws a segment with Bresenham's algorithm and a square pen.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA, width int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		for ox := 0; ox < width; ox++ {
			for oy := 0; oy < width; oy++ {
				img.SetRGBA(x0+ox-width/2, y0+oy-width/2, c)
			}
		}
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

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
