package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// kappa places cubic control points so a Bézier segment approximates a
// quarter circle.
const kappa = 0.5522847498

// rect is a float rectangle in pixel coordinates; pixel (x, y) covers
// [x, x+1) × [y, y+1).
type rect struct {
	x0, y0, x1, y1 float64
}

func (r rect) width() float64  { return r.x1 - r.x0 }
func (r rect) height() float64 { return r.y1 - r.y0 }

func (r rect) center() (float64, float64) {
	return (r.x0 + r.x1) / 2, (r.y0 + r.y1) / 2
}

func (r rect) inset(d float64) rect {
	return rect{r.x0 + d, r.y0 + d, r.x1 - d, r.y1 - d}
}

func (r rect) empty() bool { return r.width() <= 0 || r.height() <= 0 }

// canvas is a transparent NRGBA surface. Shapes are rasterized as vector
// paths and composited with draw.Over.
type canvas struct {
	img  *image.NRGBA
	z    *vector.Rasterizer
	size int
}

func newCanvas(size int) *canvas {
	return &canvas{
		img:  image.NewNRGBA(image.Rect(0, 0, size, size)),
		z:    vector.NewRasterizer(size, size),
		size: size,
	}
}

// corner is one rounded corner of a path: the arc runs from a to b with p as
// the sharp corner it replaces.
type corner struct {
	ax, ay, px, py, bx, by float64
}

// roundedRectCorners lists the corners of r clockwise from the top right.
func roundedRectCorners(r rect, radius float64) []corner {
	rad := math.Max(0, math.Min(radius, math.Min(r.width(), r.height())/2))
	return []corner{
		{r.x1 - rad, r.y0, r.x1, r.y0, r.x1, r.y0 + rad},
		{r.x1, r.y1 - rad, r.x1, r.y1, r.x1 - rad, r.y1},
		{r.x0 + rad, r.y1, r.x0, r.y1, r.x0, r.y1 - rad},
		{r.x0, r.y0 + rad, r.x0, r.y0, r.x0 + rad, r.y0},
	}
}

// addPath appends a closed path through cs. With reverse set the path runs
// the other way, which cuts a hole out of an enclosing path.
func (cv *canvas) addPath(cs []corner, reverse bool) {
	if reverse {
		rev := make([]corner, len(cs))
		for i, c := range cs {
			rev[len(cs)-1-i] = corner{c.bx, c.by, c.px, c.py, c.ax, c.ay}
		}
		cs = rev
	}
	last := cs[len(cs)-1]
	cv.z.MoveTo(float32(last.bx), float32(last.by))
	for _, c := range cs {
		cv.z.LineTo(float32(c.ax), float32(c.ay))
		cv.z.CubeTo(
			float32(c.ax+kappa*(c.px-c.ax)), float32(c.ay+kappa*(c.py-c.ay)),
			float32(c.bx+kappa*(c.px-c.bx)), float32(c.by+kappa*(c.py-c.by)),
			float32(c.bx), float32(c.by),
		)
	}
	cv.z.ClosePath()
}

// paint composites src through the current path mask and clears the path.
func (cv *canvas) paint(src image.Image) {
	cv.z.Draw(cv.img, cv.img.Bounds(), src, image.Point{})
	cv.z.Reset(cv.size, cv.size)
}

// fillRoundedRect fills r with paint.
func (cv *canvas) fillRoundedRect(r rect, radius float64, paint image.Image) {
	if r.empty() {
		return
	}
	cv.addPath(roundedRectCorners(r, radius), false)
	cv.paint(paint)
}

// strokeRoundedRect draws the outline of r with the given line width,
// centred on the edge.
func (cv *canvas) strokeRoundedRect(r rect, radius, width float64, c color.NRGBA) {
	half := width / 2
	outer := r.inset(-half)
	if outer.empty() {
		return
	}
	cv.addPath(roundedRectCorners(outer, radius+half), false)
	if inner := r.inset(half); !inner.empty() {
		cv.addPath(roundedRectCorners(inner, radius-half), true)
	}
	cv.paint(image.NewUniform(c))
}

// fillCircle fills a disc centred on (cx, cy).
func (cv *canvas) fillCircle(cx, cy, radius float64, c color.NRGBA) {
	cv.fillRoundedRect(rect{cx - radius, cy - radius, cx + radius, cy + radius}, radius, image.NewUniform(c))
}

// gradient is an unbounded image interpolating from c0 at the top-left
// corner of r to c1 at its bottom-right corner.
type gradient struct {
	r      rect
	c0, c1 color.NRGBA
}

func (g *gradient) ColorModel() color.Model { return color.NRGBAModel }

func (g *gradient) Bounds() image.Rectangle {
	return image.Rectangle{Min: image.Point{X: -1e9, Y: -1e9}, Max: image.Point{X: 1e9, Y: 1e9}}
}

func (g *gradient) At(x, y int) color.Color {
	span := g.r.width() + g.r.height()
	if span <= 0 {
		return g.c0
	}
	t := ((float64(x) + 0.5 - g.r.x0) + (float64(y) + 0.5 - g.r.y0)) / span
	return lerp(g.c0, g.c1, math.Max(0, math.Min(1, t)))
}

// diagonal returns a paint interpolating from c0 at the top-left corner of r
// to c1 at its bottom-right corner.
func diagonal(r rect, c0, c1 color.NRGBA) image.Image {
	return &gradient{r: r, c0: c0, c1: c1}
}

func solid(c color.NRGBA) image.Image { return image.NewUniform(c) }
