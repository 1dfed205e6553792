//go:build !windows && !darwin

package platform

import (
	"os"
	"path/filepath"
)

// CaseInsensitive reports whether the native file system folds case.
const CaseInsensitive = false

// SystemDirs returns the directories searched for bare program names.
func SystemDirs() []string {
	dirs := []string{"/usr/bin", "/usr/local/bin", "/usr/share/applications"}
	if h, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(h, ".local", "share", "applications"))
	}
	return dirs
}
