package extract

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/meigma/iconcache/bitmap"
)

// maxImageFileSize bounds how much of an image file is read into memory.
const maxImageFileSize = 32 << 20

// MaxSourceSide is the largest side of a plain image file used as its own
// icon. The header is checked before pixels are decoded.
const MaxSourceSide = 4096

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {},
	".webp": {}, ".tif": {}, ".tiff": {}, ".ico": {}, ".cur": {}, ".icns": {},
}

// IsImageFile reports whether path has an extension ImageFile decodes.
func IsImageFile(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ImageFile uses the file itself as its icon when it is an image.
type ImageFile struct{}

// Name implements Strategy.
func (ImageFile) Name() string { return "image" }

// TryExtract implements Strategy.
func (ImageFile) TryExtract(path string, size int) (*bitmap.Bitmap, bool) {
	if !IsImageFile(path) {
		return nil, false
	}
	b, err := decodeImageFile(path, size)
	if err != nil {
		return nil, false
	}
	return b, true
}

// decodeImageFile decodes path with the reader matching its extension.
func decodeImageFile(path string, size int) (*bitmap.Bitmap, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() || fi.Size() > maxImageFileSize {
		return nil, fmt.Errorf("%w: %s is not a readable image file", ErrNotIcon, path)
	}
	data, err := os.ReadFile(path) //nolint:gosec // reading the requested file is the purpose
	if err != nil {
		return nil, err
	}

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ico", ".cur":
		img, err = decodeICO(data, size)
	case ".icns":
		img, err = decodeICNS(data, size)
	default:
		img, err = decodeBounded(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return bitmap.FromImage(img, bitmap.KindExtracted, "")
}

// decodeBounded decodes data with the registered image readers after
// checking the header dimensions against MaxSourceSide.
func decodeBounded(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkSides(cfg, MaxSourceSide); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
