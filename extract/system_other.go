//go:build !windows && !darwin

package extract

import (
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/internal/platform"
)

// themeSizes are the fixed-size hicolor directories probed, smallest first.
var themeSizes = []int{16, 22, 24, 32, 48, 64, 96, 128, 256, 512}

var themeContexts = []string{"apps", "mimetypes", "places", "devices"}

// System resolves freedesktop icon names against the hicolor theme and the
// legacy pixmaps directory.
type System struct {
	themeDirs  []string
	pixmapDirs []string
}

// NewSystem returns the strategy for the current user's data directories.
func NewSystem() *System {
	var themes []string
	if h, err := os.UserHomeDir(); err == nil {
		themes = append(themes, filepath.Join(h, ".icons"))
	}
	for _, d := range platform.DataDirs() {
		themes = append(themes, filepath.Join(d, "icons"))
	}
	return newSystem(themes, []string{"/usr/share/pixmaps"})
}

func newSystem(themeDirs, pixmapDirs []string) *System {
	return &System{themeDirs: themeDirs, pixmapDirs: pixmapDirs}
}

// Name implements Strategy.
func (*System) Name() string { return "freedesktop" }

// TryExtract implements Strategy.
func (s *System) TryExtract(path string, size int) (*bitmap.Bitmap, bool) {
	for _, name := range iconNames(path) {
		if filepath.IsAbs(name) {
			if b, err := decodeImageFile(name, size); err == nil {
				return b, true
			}
			continue
		}
		file, ok := s.lookup(name, size)
		if !ok {
			continue
		}
		if b, err := decodeImageFile(file, size); err == nil {
			return b, true
		}
	}
	return nil, false
}

// iconNames lists theme icon names for path in preference order.
func iconNames(path string) []string {
	var names []string
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".desktop" {
		if de, err := readDesktopEntry(path); err == nil && de.Icon != "" {
			names = append(names, de.Icon)
		}
	}
	if base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)); base != "" && base != "." {
		names = append(names, strings.ToLower(base))
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		mt, _, _ = strings.Cut(mt, ";")
		names = append(names, strings.ReplaceAll(mt, "/", "-"))
		if major, _, ok := strings.Cut(mt, "/"); ok {
			names = append(names, major+"-x-generic")
		}
	}
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0 {
		names = append(names, "application-x-executable")
	}
	return names
}

// lookup finds the PNG for name whose size best matches size.
func (s *System) lookup(name string, size int) (string, bool) {
	name = strings.TrimSuffix(name, ".png")
	for _, sz := range rankSizes(themeSizes, size) {
		dir := strconv.Itoa(sz) + "x" + strconv.Itoa(sz)
		for _, base := range s.themeDirs {
			for _, ctx := range themeContexts {
				p := filepath.Join(base, "hicolor", dir, ctx, name+".png")
				if isFile(p) {
					return p, true
				}
			}
		}
	}
	for _, d := range s.pixmapDirs {
		p := filepath.Join(d, name+".png")
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

// rankSizes orders sizes like rank does for icon entries: the smallest size
// not below want first, then the rest upwards, then smaller sizes downwards.
func rankSizes(sizes []int, want int) []int {
	var up, down []int
	for _, s := range sizes {
		if s >= want {
			up = append(up, s)
		} else {
			down = append([]int{s}, down...)
		}
	}
	return append(up, down...)
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
