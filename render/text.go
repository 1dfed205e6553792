package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawLabel renders text centred in r with a cap height of roughly pixels,
// shrinking it when it would not fit the width of r.
func (cv *canvas) drawLabel(r rect, text string, pixels float64, c color.NRGBA) {
	if text == "" || pixels <= 0 {
		return
	}
	face := basicfont.Face7x13
	m := face.Metrics()
	cellH := (m.Ascent + m.Descent).Ceil()
	cellW := font.MeasureString(face, text).Ceil()
	if cellW <= 0 || cellH <= 0 {
		return
	}

	glyphs := image.NewNRGBA(image.Rect(0, 0, cellW, cellH))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: m.Ascent},
	}
	d.DrawString(text)

	scale := pixels / float64(cellH)
	maxW := r.width() * 0.9
	if w := float64(cellW) * scale; w > maxW && maxW > 0 {
		scale = maxW / float64(cellW)
	}
	tw := max(1, int(float64(cellW)*scale+0.5))
	th := max(1, int(float64(cellH)*scale+0.5))

	cx, cy := r.center()
	x0 := int(cx - float64(tw)/2 + 0.5)
	y0 := int(cy - float64(th)/2 + 0.5)
	dst := image.Rect(x0, y0, x0+tw, y0+th)
	draw.BiLinear.Scale(cv.img, dst, glyphs, glyphs.Bounds(), draw.Over, nil)
}
