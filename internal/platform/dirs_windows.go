//go:build windows

package platform

import (
	"os"
	"path/filepath"
)

// CaseInsensitive reports whether the native file system folds case.
const CaseInsensitive = true

// SystemDirs returns the Windows directories searched for bare program names.
func SystemDirs() []string {
	root := os.Getenv("SystemRoot")
	if root == "" {
		root = `C:\Windows`
	}
	dirs := []string{root, filepath.Join(root, "System32")}
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
		if d := os.Getenv(env); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
