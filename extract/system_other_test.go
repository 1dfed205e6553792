//go:build !windows && !darwin

package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/iconcache/internal/testutil"
)

func TestRankSizes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{48, 64, 32, 16}, rankSizes([]int{16, 32, 48, 64}, 40))
	assert.Equal(t, []int{64, 48, 16}, rankSizes([]int{16, 48, 64}, 100))
}

func TestSystemThemeLookup(t *testing.T) {
	t.Parallel()

	themes := t.TempDir()
	pixmaps := t.TempDir()
	testutil.WritePNG(t, themes, "hicolor/48x48/apps/gimp.png", 48, 48, red)
	testutil.WritePNG(t, themes, "hicolor/16x16/apps/gimp.png", 16, 16, green)
	testutil.WritePNG(t, pixmaps, "legacy.png", 24, 24, blue)

	s := newSystem([]string{filepath.Join(t.TempDir(), "absent"), themes}, []string{pixmaps})

	p, ok := s.lookup("gimp", 32)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(themes, "hicolor/48x48/apps/gimp.png"), p)

	p, ok = s.lookup("gimp", 16)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(themes, "hicolor/16x16/apps/gimp.png"), p)

	p, ok = s.lookup("legacy", 32)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(pixmaps, "legacy.png"), p)

	_, ok = s.lookup("nothing", 32)
	assert.False(t, ok)
}

func TestSystemDesktopIcon(t *testing.T) {
	t.Parallel()

	themes := t.TempDir()
	testutil.WritePNG(t, themes, "hicolor/32x32/apps/editor-icon.png", 32, 32, green)
	dir := t.TempDir()
	launcher := testutil.WriteFile(t, dir, "editor.desktop",
		[]byte("[Desktop Entry]\nName=Editor\nIcon=editor-icon\nExec=editor\n"))
	absIcon := testutil.WritePNG(t, dir, "own.png", 8, 8, red)
	absLauncher := testutil.WriteFile(t, dir, "own.desktop",
		[]byte("[Desktop Entry]\nIcon="+absIcon+"\n"))

	s := newSystem([]string{themes}, nil)

	b, ok := s.TryExtract(launcher, 32)
	require.True(t, ok)
	assert.Equal(t, 32, b.Width())

	b, ok = s.TryExtract(absLauncher, 32)
	require.True(t, ok)
	assert.Equal(t, 8, b.Width())
}

func TestSystemExecutableBasename(t *testing.T) {
	t.Parallel()

	themes := t.TempDir()
	testutil.WritePNG(t, themes, "hicolor/64x64/apps/firefox.png", 64, 64, blue)

	s := newSystem([]string{themes}, nil)
	b, ok := s.TryExtract("/usr/lib/firefox/Firefox", 48)
	require.True(t, ok)
	assert.Equal(t, 64, b.Width())
}
