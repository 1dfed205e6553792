// Package platform holds the operating-system specific lookup locations used
// when resolving bare program names and theme icons.
package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirs returns the freedesktop data directories in priority order:
// $XDG_DATA_HOME (default ~/.local/share) followed by $XDG_DATA_DIRS
// (default /usr/local/share:/usr/share).
func DataDirs() []string {
	var dirs []string
	if home := os.Getenv("XDG_DATA_HOME"); home != "" {
		dirs = append(dirs, home)
	} else if h, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(h, ".local", "share"))
	}
	sys := os.Getenv("XDG_DATA_DIRS")
	if sys == "" {
		sys = "/usr/local/share:/usr/share"
	}
	for _, d := range strings.Split(sys, ":") {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// PathDirs returns the entries of $PATH.
func PathDirs() []string {
	return filepath.SplitList(os.Getenv("PATH"))
}

// SearchDirs returns SystemDirs followed by PathDirs with duplicates removed.
func SearchDirs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range append(SystemDirs(), PathDirs()...) {
		if d == "" {
			continue
		}
		d = filepath.Clean(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
