// Package render draws the synthetic placeholder icons: extension badges,
// the loading spinner, the error mark and the generic default icon.
//
// Output is deterministic for a given input so that placeholders can be
// persisted to the cache tiers and compared in tests.
package render

import (
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/meigma/iconcache/bitmap"
)

// MaxLabelLen is the number of extension characters printed on a badge.
const MaxLabelLen = 4

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Label returns the badge text for path: its extension without the dot,
// upper-cased and truncated to MaxLabelLen characters.
func Label(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	ext = strings.ToUpper(ext)
	if r := []rune(ext); len(r) > MaxLabelLen {
		ext = string(r[:MaxLabelLen])
	}
	return ext
}

// badge returns the rounded badge rectangle and corner radius for size.
func badge(size int) (rect, float64) {
	margin := float64(max(2, size/16))
	r := rect{0, 0, float64(size), float64(size)}.inset(margin)
	return r, float64(size / 8)
}

func finish(cv *canvas, kind bitmap.Kind, label string) *bitmap.Bitmap {
	b, err := bitmap.New(cv.img, kind, label)
	if err != nil {
		// size is validated by every caller; an empty canvas is a programming error.
		panic(err)
	}
	return b
}

// FileTypeIcon renders a coloured badge carrying the extension of path.
// Paths without an extension get a neutral, unlabeled badge.
func FileTypeIcon(path string, size int) *bitmap.Bitmap {
	size = max(size, 1)
	cv := newCanvas(size)
	base := ExtensionColor(filepath.Ext(path))
	r, radius := badge(size)
	cv.fillRoundedRect(r, radius, diagonal(r, lighter(base, 120), darker(base, 120)))

	label := Label(path)
	cv.drawLabel(r, label, float64(max(size/3, 8)), white)
	return finish(cv, bitmap.KindFileType, label)
}

// LoadingIcon renders the neutral in-progress placeholder.
func LoadingIcon(size int) *bitmap.Bitmap {
	size = max(size, 1)
	cv := newCanvas(size)
	r, radius := badge(size)
	full := rect{0, 0, float64(size), float64(size)}
	cv.fillRoundedRect(r, radius, diagonal(full,
		color.NRGBA{R: 240, G: 240, B: 240, A: 200},
		color.NRGBA{R: 220, G: 220, B: 220, A: 200}))

	dot := color.NRGBA{R: 66, G: 133, B: 244, A: 200}
	cx, cy := r.center()
	orbit := r.width() / 3
	dotRadius := float64(size/8) / 2
	for i := range 4 {
		angle := float64(i) * math.Pi / 2
		cv.fillCircle(cx+orbit*math.Cos(angle), cy+orbit*math.Sin(angle), dotRadius, dot)
	}

	if size >= 32 {
		cv.drawLabel(r, "...", float64(max(size/6, 8)), color.NRGBA{R: 100, G: 100, B: 100, A: 200})
	}
	return finish(cv, bitmap.KindLoading, "")
}

// ErrorIcon renders a red badge with an exclamation mark.
func ErrorIcon(size int) *bitmap.Bitmap {
	size = max(size, 1)
	cv := newCanvas(size)
	r, radius := badge(size)
	cv.fillRoundedRect(r, radius, diagonal(r,
		color.NRGBA{R: 244, G: 67, B: 54, A: 180},
		color.NRGBA{R: 211, G: 47, B: 47, A: 180}))

	cx, _ := r.center()
	lineW := float64(max(2, size/16))
	top := r.y0 + r.height()/4
	bottom := r.y1 - r.height()/4
	bar := rect{cx - lineW/2, top, cx + lineW/2, bottom - lineW}
	cv.fillRoundedRect(bar, lineW/2, solid(white))

	dotRadius := float64(max(2, size/32))
	cv.fillCircle(cx, bottom+dotRadius, dotRadius, white)
	return finish(cv, bitmap.KindError, "")
}

// DefaultIcon renders the generic blue application icon.
func DefaultIcon(size int) *bitmap.Bitmap {
	size = max(size, 1)
	cv := newCanvas(size)
	r, radius := badge(size)
	cv.fillRoundedRect(r, radius, diagonal(r,
		color.NRGBA{R: 66, G: 133, B: 244, A: 180},
		color.NRGBA{R: 26, G: 115, B: 232, A: 180}))

	inner := r.inset(float64(size / 6))
	if inner.width() > 0 && inner.height() > 0 {
		innerRadius := float64(size / 16)
		cv.fillRoundedRect(inner, innerRadius, solid(color.NRGBA{R: 255, G: 255, B: 255, A: 100}))
		cv.strokeRoundedRect(inner, innerRadius, float64(max(1, size/32)), white)
	}
	return finish(cv, bitmap.KindDefault, "")
}
