package bitmap

import (
	"image"

	"golang.org/x/image/draw"
)

// Fit returns b scaled to exactly size × size.
//
// The source aspect ratio is preserved: the scaled image is centred on a
// transparent square canvas. Bitmaps that already match are returned as is.
func Fit(b *Bitmap, size int) *Bitmap {
	if b == nil || size < 1 {
		return b
	}
	w, h := b.Width(), b.Height()
	if w == size && h == size {
		return b
	}

	tw, th := size, size
	if w > h {
		th = max(1, (h*size+w/2)/w)
	} else if h > w {
		tw = max(1, (w*size+h/2)/h)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	off := image.Pt((size-tw)/2, (size-th)/2)
	target := image.Rectangle{Min: off, Max: off.Add(image.Pt(tw, th))}
	draw.CatmullRom.Scale(dst, target, b.img, b.img.Rect, draw.Src, nil)

	return &Bitmap{img: dst, kind: b.kind, label: b.label}
}
