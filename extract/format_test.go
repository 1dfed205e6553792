package extract

import (
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/iconcache/internal/testutil"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

func at(t *testing.T, img image.Image, x, y int) color.NRGBA {
	t.Helper()
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestRank(t *testing.T) {
	t.Parallel()

	cands := []candidate{
		{width: 16, bits: 32},
		{width: 48, bits: 8},
		{width: 48, bits: 32},
		{width: 256, bits: 32},
		{width: 32, bits: 32},
	}
	got := rank(cands, 40)
	want := []candidate{
		{width: 48, bits: 32},
		{width: 48, bits: 8},
		{width: 256, bits: 32},
		{width: 32, bits: 32},
		{width: 16, bits: 32},
	}
	assert.Equal(t, want, got)
}

func TestDecodeICOPicksBestEntry(t *testing.T) {
	t.Parallel()

	data := testutil.ICO(
		testutil.ICOEntry{Width: 16, Bits: 32, Data: testutil.PNG(t, 16, 16, red)},
		testutil.ICOEntry{Width: 48, Bits: 32, Data: testutil.PNG(t, 48, 48, green)},
		testutil.ICOEntry{Width: 32, Bits: 32, Data: testutil.PNG(t, 32, 32, blue)},
	)

	img, err := decodeICO(data, 32)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, blue, at(t, img, 0, 0))

	img, err = decodeICO(data, 64)
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
}

func TestDecodeICODIB(t *testing.T) {
	t.Parallel()

	c := color.NRGBA{R: 10, G: 20, B: 30, A: 200}
	data := testutil.ICO(testutil.ICOEntry{Width: 8, Bits: 32, Data: testutil.DIB32(8, 8, c, true)})

	img, err := decodeICO(data, 8)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	assert.Equal(t, c, at(t, img, 3, 5))
}

func TestDecodeICOLegacyAlphaUsesMask(t *testing.T) {
	t.Parallel()

	c := color.NRGBA{R: 1, G: 2, B: 3, A: 255}
	img, err := decodeIconImage(testutil.DIB32(4, 4, c, false))
	require.NoError(t, err)
	// Zero AND mask means every pixel is opaque.
	assert.Equal(t, c, at(t, img, 0, 0))
}

func TestDecodeIconImageRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := decodeIconImage([]byte("short"))
	require.ErrorIs(t, err, ErrNotIcon)

	bad := testutil.DIB32(4, 4, red, true)
	bad[14] = 7 // bit count
	_, err = decodeIconImage(bad)
	require.ErrorIs(t, err, ErrNotIcon)
}

func TestOversizedEntriesRejected(t *testing.T) {
	t.Parallel()

	huge := testutil.OversizedPNG(t, 20000, 20000)

	_, err := decodeICO(testutil.ICO(testutil.ICOEntry{Width: 0, Bits: 32, Data: huge}), 32)
	require.ErrorIs(t, err, ErrTooLarge)
	require.ErrorIs(t, err, ErrNotIcon)

	// A valid smaller entry still wins over the oversized one.
	data := testutil.ICO(
		testutil.ICOEntry{Width: 0, Bits: 32, Data: huge},
		testutil.ICOEntry{Width: 16, Bits: 32, Data: testutil.PNG(t, 16, 16, red)},
	)
	img, err := decodeICO(data, 256)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	dib := testutil.DIB32(4, 4, red, true)
	binary.LittleEndian.PutUint32(dib[4:], 20000)
	binary.LittleEndian.PutUint32(dib[8:], 40000)
	_, err = decodeIconImage(dib)
	require.ErrorIs(t, err, ErrNotIcon)

	_, err = decodeICNS(testutil.ICNS(map[string][]byte{"ic10": huge}), 32)
	require.ErrorIs(t, err, ErrNotIcon)
}

func TestImageFileRejectsOversizedHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	huge := testutil.WriteFile(t, dir, "huge.png", testutil.OversizedPNG(t, 20000, 20000))
	wide := testutil.WriteFile(t, dir, "wide.png", testutil.OversizedPNG(t, MaxSourceSide+1, 1))

	_, err := decodeImageFile(huge, 32)
	require.ErrorIs(t, err, ErrTooLarge)

	var s ImageFile
	_, ok := s.TryExtract(huge, 32)
	assert.False(t, ok)
	_, ok = s.TryExtract(wide, 32)
	assert.False(t, ok)
}

func TestParseICORejects(t *testing.T) {
	t.Parallel()

	_, err := parseICO([]byte{0, 0, 9, 0, 1, 0})
	require.ErrorIs(t, err, ErrNotIcon)

	// Entry pointing past the end is dropped.
	data := testutil.ICO(testutil.ICOEntry{Width: 16, Bits: 32, Data: testutil.PNG(t, 16, 16, red)})
	_, err = parseICO(data[:30])
	require.ErrorIs(t, err, ErrNotIcon)
}

func TestDecodeICNS(t *testing.T) {
	t.Parallel()

	data := testutil.ICNS(map[string][]byte{
		"icp4": testutil.PNG(t, 16, 16, red),
		"ic07": testutil.PNG(t, 128, 128, green),
	})

	img, err := decodeICNS(data, 64)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	img, err = decodeICNS(data, 16)
	require.NoError(t, err)
	assert.Equal(t, red, at(t, img, 0, 0))

	_, err = decodeICNS([]byte("nope"), 16)
	require.ErrorIs(t, err, ErrNotIcon)
}

func TestImageFileStrategy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	png := testutil.WritePNG(t, dir, "logo.PNG", 20, 10, green)
	ico := testutil.WriteFile(t, dir, "app.ico", testutil.ICO(
		testutil.ICOEntry{Width: 32, Bits: 32, Data: testutil.PNG(t, 32, 32, blue)},
	))
	txt := testutil.WriteFile(t, dir, "notes.txt", []byte("hello"))
	broken := testutil.WriteFile(t, dir, "broken.png", []byte("not a png"))

	var s ImageFile
	b, ok := s.TryExtract(png, 32)
	require.True(t, ok)
	assert.Equal(t, 20, b.Width())

	b, ok = s.TryExtract(ico, 32)
	require.True(t, ok)
	assert.Equal(t, 32, b.Width())

	_, ok = s.TryExtract(txt, 32)
	assert.False(t, ok)
	_, ok = s.TryExtract(broken, 32)
	assert.False(t, ok)
	_, ok = s.TryExtract(dir+"/missing.png", 32)
	assert.False(t, ok)
}

func TestIsImageFile(t *testing.T) {
	t.Parallel()

	assert.True(t, IsImageFile("/a/b.JPEG"))
	assert.True(t, IsImageFile("x.icns"))
	assert.False(t, IsImageFile("x.exe"))
	assert.False(t, IsImageFile("noext"))
}
