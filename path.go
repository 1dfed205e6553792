package iconcache

import (
	"os"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// StatFunc reports a file's modification time in Unix nanoseconds and
// whether it exists.
type StatFunc func(path string) (mtime int64, exists bool)

// osStat is the default StatFunc.
func osStat(path string) (int64, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return fi.ModTime().UnixNano(), true
}

// normalize returns the absolute, cleaned form of path used in cache keys,
// case-folded when the service folds case.
func (s *Service) normalize(path string) string {
	p := path
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	p = filepath.Clean(p)
	if s.foldCase {
		// Casers carry state and are not safe for concurrent use.
		p = cases.Fold().String(norm.NFC.String(p))
	}
	return p
}
