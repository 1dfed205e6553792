package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf16"
)

// Resolvers tries each resolver in order and returns the first match.
type Resolvers []Resolver

// Resolve implements Resolver.
func (rs Resolvers) Resolve(path string) (string, bool) {
	for _, r := range rs {
		if target, ok := r.Resolve(path); ok && target != "" {
			return target, true
		}
	}
	return "", false
}

// DefaultResolvers returns the shortcut, launcher and symlink resolvers.
func DefaultResolvers() Resolvers {
	return Resolvers{LinkResolver{}, DesktopEntryResolver{}, SymlinkResolver{}}
}

// SymlinkResolver follows symbolic links.
type SymlinkResolver struct{}

// Resolve implements Resolver.
func (SymlinkResolver) Resolve(path string) (string, bool) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil || target == path {
		return "", false
	}
	return target, true
}

// DesktopEntryResolver maps a .desktop launcher to the program in its Exec
// key, searching $PATH for bare names.
type DesktopEntryResolver struct{}

// Resolve implements Resolver.
func (DesktopEntryResolver) Resolve(path string) (string, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".desktop") {
		return "", false
	}
	de, err := readDesktopEntry(path)
	if err != nil {
		return "", false
	}
	prog := de.Program()
	if prog == "" {
		return "", false
	}
	if filepath.IsAbs(prog) {
		return prog, true
	}
	found, err := exec.LookPath(prog)
	if err != nil {
		return "", false
	}
	return found, true
}

// LinkResolver reads the local target path of a Windows Shell Link (.lnk).
// The format is parsed directly, so it works on any host.
type LinkResolver struct{}

// Resolve implements Resolver.
func (LinkResolver) Resolve(path string) (string, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".lnk") {
		return "", false
	}
	data, err := os.ReadFile(path) //nolint:gosec // shortcut path supplied by the caller
	if err != nil {
		return "", false
	}
	target, err := ParseShellLink(data)
	if err != nil || target == "" {
		return "", false
	}
	return target, true
}

// ErrBadLink is returned for data that is not a usable shell link.
var ErrBadLink = errors.New("extract: malformed shell link")

const (
	lnkHeaderSize       = 0x4c
	lnkHasIDList        = 1 << 0
	lnkHasLinkInfo      = 1 << 1
	lnkVolumeAndLocal   = 1 << 0
	lnkInfoUnicodeStart = 0x24
)

// ParseShellLink returns the local base path (plus common path suffix) of a
// shell link.
func ParseShellLink(data []byte) (string, error) {
	if len(data) < lnkHeaderSize || binary.LittleEndian.Uint32(data) != lnkHeaderSize {
		return "", ErrBadLink
	}
	flags := binary.LittleEndian.Uint32(data[20:])
	off := lnkHeaderSize
	if flags&lnkHasIDList != 0 {
		if off+2 > len(data) {
			return "", ErrBadLink
		}
		off += 2 + int(binary.LittleEndian.Uint16(data[off:]))
	}
	if flags&lnkHasLinkInfo == 0 || off+28 > len(data) {
		return "", ErrBadLink
	}

	info := data[off:]
	infoSize := int(binary.LittleEndian.Uint32(info))
	if infoSize < 28 || infoSize > len(info) {
		return "", ErrBadLink
	}
	info = info[:infoSize]
	headerSize := binary.LittleEndian.Uint32(info[4:])
	infoFlags := binary.LittleEndian.Uint32(info[8:])
	if infoFlags&lnkVolumeAndLocal == 0 {
		return "", ErrBadLink
	}

	var base, suffix string
	if headerSize >= lnkInfoUnicodeStart && len(info) >= lnkInfoUnicodeStart {
		base = utf16z(info, binary.LittleEndian.Uint32(info[28:]))
		suffix = utf16z(info, binary.LittleEndian.Uint32(info[32:]))
	}
	if base == "" {
		base = cstring(info, binary.LittleEndian.Uint32(info[16:]))
		suffix = cstring(info, binary.LittleEndian.Uint32(info[24:]))
	}
	if base == "" {
		return "", ErrBadLink
	}
	if suffix != "" && !strings.HasSuffix(base, `\`) {
		base += `\`
	}
	return base + suffix, nil
}

func cstring(b []byte, off uint32) string {
	if off == 0 || int(off) >= len(b) {
		return ""
	}
	s := b[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

func utf16z(b []byte, off uint32) string {
	if off == 0 || int(off) >= len(b) {
		return ""
	}
	var u []uint16
	for i := int(off); i+1 < len(b); i += 2 {
		c := binary.LittleEndian.Uint16(b[i:])
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}
