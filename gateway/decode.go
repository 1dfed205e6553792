package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/meigma/iconcache/internal/platform"
)

// ErrInvalidRequest is wrapped by every Decode failure.
var ErrInvalidRequest = errors.New("gateway: invalid request")

var schemePrefixes = []string{"image://icon/", "file://"}

// Decode turns a request identifier into an existing absolute path,
// searching the platform system directories and PATH by basename when the
// literal path does not exist.
func Decode(id string) (string, error) {
	return decode(id, platform.SearchDirs())
}

func decode(id string, searchDirs []string) (string, error) {
	p := unescape(id)
	for _, prefix := range schemePrefixes {
		p = strings.TrimPrefix(p, prefix)
	}
	p = norm.NFC.String(p)
	p = strings.TrimSpace(fixSeparators(p, runtime.GOOS == "windows"))
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidRequest)
	}

	if filepath.IsAbs(p) {
		if exists(p) {
			return filepath.Clean(p), nil
		}
		if found, ok := search(filepath.Base(p), searchDirs); ok {
			return found, nil
		}
		return "", fmt.Errorf("%w: %s: not found", ErrInvalidRequest, p)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidRequest, p, err)
	}
	if !exists(abs) {
		return "", fmt.Errorf("%w: %s: not found", ErrInvalidRequest, abs)
	}
	return abs, nil
}

// unescape percent-decodes id. Identifiers that are not valid escapes, such
// as raw paths containing '%', are returned unchanged.
func unescape(id string) string {
	p, err := url.PathUnescape(id)
	if err != nil {
		return id
	}
	return p
}

// fixSeparators converts p to the host separator. On Windows a slash before
// a drive letter ("/C:/x") is dropped.
func fixSeparators(p string, windows bool) string {
	if !windows {
		return strings.ReplaceAll(p, `\`, "/")
	}
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return strings.ReplaceAll(p, "/", `\`)
}

func search(base string, dirs []string) (string, bool) {
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", false
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, base)
		if exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
