//go:build darwin

package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/iconcache/bitmap"
)

// System reads the icon family of an application bundle.
type System struct{}

// NewSystem returns the macOS bundle strategy.
func NewSystem() *System { return &System{} }

// Name implements Strategy.
func (*System) Name() string { return "bundle" }

// TryExtract implements Strategy. Paths inside a bundle resolve to the
// enclosing .app.
func (*System) TryExtract(path string, size int) (*bitmap.Bitmap, bool) {
	bundle, ok := enclosingBundle(path)
	if !ok {
		return nil, false
	}
	res := filepath.Join(bundle, "Contents", "Resources")
	candidates := []string{filepath.Join(res, "AppIcon.icns")}
	if more, err := filepath.Glob(filepath.Join(res, "*.icns")); err == nil {
		candidates = append(candidates, more...)
	}
	for _, c := range candidates {
		if b, err := decodeImageFile(c, size); err == nil {
			return b, true
		}
	}
	return nil, false
}

func enclosingBundle(path string) (string, bool) {
	for p := filepath.Clean(path); p != "/" && p != "."; p = filepath.Dir(p) {
		if !strings.EqualFold(filepath.Ext(p), ".app") {
			continue
		}
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			return p, true
		}
	}
	return "", false
}
