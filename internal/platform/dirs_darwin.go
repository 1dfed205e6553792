//go:build darwin

package platform

import (
	"os"
	"path/filepath"
)

// CaseInsensitive reports whether the native file system folds case.
const CaseInsensitive = true

// SystemDirs returns the macOS directories searched for bare program names.
func SystemDirs() []string {
	dirs := []string{"/Applications", "/System/Applications", "/usr/bin", "/usr/local/bin"}
	if h, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(h, "Applications"))
	}
	return dirs
}
