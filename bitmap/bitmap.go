// Package bitmap provides the immutable RGBA image type shared by every
// tier of the icon cache.
//
// A Bitmap owns width × height × 4 bytes of non-premultiplied RGBA pixel data.
// Once constructed it is never mutated, so a single value can be handed to any
// number of goroutines and stored in the memory tier without copying.
package bitmap

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
)

// BytesPerPixel is the storage cost of one RGBA pixel.
const BytesPerPixel = 4

// MaxDecodeSide is the largest width or height Decode accepts.
const MaxDecodeSide = 4096

// ErrEmpty is returned when an image has no pixels.
var ErrEmpty = errors.New("bitmap: empty image")

// ErrTooLarge is returned by Decode when the header claims a side above
// MaxDecodeSide.
var ErrTooLarge = errors.New("bitmap: image dimensions too large")

// Kind records where a bitmap came from.
type Kind uint8

const (
	// KindExtracted is an icon obtained from the file or the platform.
	KindExtracted Kind = iota
	// KindFileType is a synthetic badge labelled with the file extension.
	KindFileType
	// KindLoading is the placeholder served while a request is in flight.
	KindLoading
	// KindError is the placeholder served for failed requests.
	KindError
	// KindDefault is the generic placeholder for invalid arguments.
	KindDefault
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindExtracted:
		return "extracted"
	case KindFileType:
		return "filetype"
	case KindLoading:
		return "loading"
	case KindError:
		return "error"
	case KindDefault:
		return "default"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Bitmap is a decoded RGBA icon.
type Bitmap struct {
	img   *image.NRGBA
	kind  Kind
	label string
}

// New wraps img without copying. The caller must not modify img afterwards.
// The image origin is normalized to (0, 0).
func New(img *image.NRGBA, kind Kind, label string) (*Bitmap, error) {
	if img == nil || img.Rect.Empty() {
		return nil, ErrEmpty
	}
	if img.Rect.Min != (image.Point{}) {
		img = toNRGBA(img)
	}
	return &Bitmap{img: img, kind: kind, label: label}, nil
}

// FromImage copies any image.Image into a new Bitmap.
func FromImage(src image.Image, kind Kind, label string) (*Bitmap, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrEmpty
	}
	return &Bitmap{img: toNRGBA(src), kind: kind, label: label}, nil
}

// Decode reads a PNG (or any registered image format) into a Bitmap tagged
// as KindExtracted. The header is checked against MaxDecodeSide before any
// pixels are allocated.
func Decode(r io.Reader) (*Bitmap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bitmap: read: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bitmap: decode config: %w", err)
	}
	if cfg.Width > MaxDecodeSide || cfg.Height > MaxDecodeSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bitmap: decode: %w", err)
	}
	return FromImage(img, KindExtracted, "")
}

func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst
}

// Width returns the width in pixels.
func (b *Bitmap) Width() int { return b.img.Rect.Dx() }

// Height returns the height in pixels.
func (b *Bitmap) Height() int { return b.img.Rect.Dy() }

// Kind returns the origin tag.
func (b *Bitmap) Kind() Kind { return b.kind }

// Label returns the text drawn on a synthetic badge, if any.
func (b *Bitmap) Label() string { return b.label }

// SizeBytes estimates the memory footprint as width × height × 4.
func (b *Bitmap) SizeBytes() int64 {
	return int64(b.Width()) * int64(b.Height()) * BytesPerPixel
}

// Image returns the underlying pixels. The result is shared and must be
// treated as read-only.
func (b *Bitmap) Image() image.Image { return b.img }

// WithKind returns a bitmap sharing the same pixels under a different tag.
func (b *Bitmap) WithKind(kind Kind, label string) *Bitmap {
	return &Bitmap{img: b.img, kind: kind, label: label}
}

// PNG encodes the bitmap.
func (b *Bitmap) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG writes the bitmap as PNG to w.
func (b *Bitmap) EncodePNG(w io.Writer) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, b.img); err != nil {
		return fmt.Errorf("bitmap: encode png: %w", err)
	}
	return nil
}
