package extract

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/iconcache/internal/testutil"
)

// shellLink builds a .lnk file whose LinkInfo carries base and suffix.
// With unicode set, the strings are stored only in the UTF-16 fields.
func shellLink(base, suffix string, withIDList, unicode bool) []byte {
	hdr := make([]byte, lnkHeaderSize)
	binary.LittleEndian.PutUint32(hdr, lnkHeaderSize)
	flags := uint32(lnkHasLinkInfo)
	if withIDList {
		flags |= lnkHasIDList
	}
	binary.LittleEndian.PutUint32(hdr[20:], flags)
	out := hdr
	if withIDList {
		out = append(out, 4, 0, 0xde, 0xad, 0xbe, 0xef)
	}

	headerSize := 28
	if unicode {
		headerSize = lnkInfoUnicodeStart
	}
	volume := make([]byte, 16)
	var strs []byte
	ansi := func(s string) []byte { return append([]byte(s), 0) }
	wide := func(s string) []byte {
		var b []byte
		for _, u := range utf16.Encode([]rune(s)) {
			b = binary.LittleEndian.AppendUint16(b, u)
		}
		return append(b, 0, 0)
	}

	info := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(info[4:], uint32(headerSize))
	binary.LittleEndian.PutUint32(info[8:], lnkVolumeAndLocal)
	binary.LittleEndian.PutUint32(info[12:], uint32(headerSize))
	off := headerSize + len(volume)
	if unicode {
		// Empty ANSI strings force the UTF-16 fields to be used.
		binary.LittleEndian.PutUint32(info[16:], uint32(off))
		strs = append(strs, 0)
		binary.LittleEndian.PutUint32(info[24:], uint32(off))
		binary.LittleEndian.PutUint32(info[28:], uint32(off+len(strs)))
		strs = append(strs, wide(base)...)
		binary.LittleEndian.PutUint32(info[32:], uint32(off+len(strs)))
		strs = append(strs, wide(suffix)...)
	} else {
		binary.LittleEndian.PutUint32(info[16:], uint32(off))
		strs = append(strs, ansi(base)...)
		binary.LittleEndian.PutUint32(info[24:], uint32(off+len(strs)))
		strs = append(strs, ansi(suffix)...)
	}
	info = append(info, volume...)
	info = append(info, strs...)
	binary.LittleEndian.PutUint32(info, uint32(len(info)))
	return append(out, info...)
}

func TestParseShellLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{"ansi", shellLink(`C:\Tools\tool.exe`, "", false, false), `C:\Tools\tool.exe`, false},
		{"id list skipped", shellLink(`C:\Tools\tool.exe`, "", true, false), `C:\Tools\tool.exe`, false},
		{"suffix", shellLink(`C:\Program Files`, `App\app.exe`, false, false), `C:\Program Files\App\app.exe`, false},
		{"unicode", shellLink(`C:\Prögramme\app.exe`, "", false, true), `C:\Prögramme\app.exe`, false},
		{"garbage", []byte("not a link"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseShellLink(tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadLink)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinkResolver(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lnk := testutil.WriteFile(t, dir, "Tool.LNK", shellLink(`C:\Tools\tool.exe`, "", false, false))

	got, ok := LinkResolver{}.Resolve(lnk)
	require.True(t, ok)
	assert.Equal(t, `C:\Tools\tool.exe`, got)

	_, ok = LinkResolver{}.Resolve(filepath.Join(dir, "other.exe"))
	assert.False(t, ok)
}

func TestParseDesktopEntry(t *testing.T) {
	t.Parallel()

	src := `# comment
[Desktop Entry]
Name=Tool
Icon=tool-icon
Icon[de]=werkzeug
Exec=env LANG=C "/opt/my app/run" --flag %U

[Desktop Action new]
Exec=/other
`
	de, err := ParseDesktopEntry(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "Tool", de.Name)
	assert.Equal(t, "tool-icon", de.Icon)
	assert.Equal(t, "/opt/my app/run", de.Program())
}

func TestDesktopEntryProgram(t *testing.T) {
	t.Parallel()

	tests := []struct {
		exec, tryExec, want string
	}{
		{"/usr/bin/gedit %U", "", "/usr/bin/gedit"},
		{`"/a b/c" x`, "", "/a b/c"},
		{`"/esc\"q"`, "", `/esc"q`},
		{"", "/usr/bin/fallback", "/usr/bin/fallback"},
		{"%f", "", ""},
	}
	for _, tt := range tests {
		de := DesktopEntry{Exec: tt.exec, TryExec: tt.tryExec}
		assert.Equal(t, tt.want, de.Program(), tt.exec)
	}
}

func TestDesktopEntryResolver(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "bin", "tool")
	launcher := testutil.WriteFile(t, dir, "tool.desktop",
		[]byte("[Desktop Entry]\nExec="+target+" %F\n"))

	got, ok := DesktopEntryResolver{}.Resolve(launcher)
	require.True(t, ok)
	assert.Equal(t, target, got)

	_, ok = DesktopEntryResolver{}.Resolve(filepath.Join(dir, "missing.desktop"))
	assert.False(t, ok)
}

func TestSymlinkResolver(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := testutil.WritePNG(t, dir, "real.png", 2, 2, red)
	link := filepath.Join(dir, "link.png")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, ok := SymlinkResolver{}.Resolve(link)
	require.True(t, ok)
	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, ok = SymlinkResolver{}.Resolve(want)
	assert.False(t, ok)
}

func TestResolversFirstMatch(t *testing.T) {
	t.Parallel()

	rs := Resolvers{mapResolver{}, mapResolver{"/a": "/b"}, mapResolver{"/a": "/c"}}
	got, ok := rs.Resolve("/a")
	require.True(t, ok)
	assert.Equal(t, "/b", got)
}

func TestParseDesktopEntryVerbatimValues(t *testing.T) {
	t.Parallel()

	src := "[Desktop Entry]\nName=A; B # not a comment\nExec=\"/a b/c\" --opt=x:y\nIcon=app\\\n"
	de, err := ParseDesktopEntry(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "A; B # not a comment", de.Name)
	assert.Equal(t, `"/a b/c" --opt=x:y`, de.Exec)
	assert.Equal(t, "/a b/c", de.Program())
	assert.Equal(t, `app\`, de.Icon)

	de, err = ParseDesktopEntry(strings.NewReader("[Other]\nIcon=x\n"))
	require.NoError(t, err)
	assert.Empty(t, de.Icon)
}
