// Package testutil provides fixtures and fake extraction strategies shared by
// the package tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/meigma/iconcache/bitmap"
)

// Solid returns a w×h image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// Bitmap returns a solid extracted bitmap.
func Bitmap(t testing.TB, w, h int, c color.NRGBA) *bitmap.Bitmap {
	t.Helper()
	b, err := bitmap.New(Solid(w, h, c), bitmap.KindExtracted, "")
	if err != nil {
		t.Fatalf("bitmap.New() error = %v", err)
	}
	return b
}

// PNG returns the PNG encoding of a solid w×h image.
func PNG(t testing.TB, w, h int, c color.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Solid(w, h, c)); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to dir/name, creating parent directories, and
// returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // test fixture
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// OversizedPNG returns a 1×1 PNG whose IHDR claims w×h, with a valid CRC,
// so header readers report the claimed size.
func OversizedPNG(t testing.TB, w, h uint32) []byte {
	t.Helper()
	data := PNG(t, 1, 1, color.NRGBA{A: 255})
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// WritePNG writes a solid PNG to dir/name and returns its path.
func WritePNG(t testing.TB, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	return WriteFile(t, dir, name, PNG(t, w, h, c))
}

// DIB32 returns a headerless 32-bit bottom-up DIB with an all-zero AND mask,
// the payload format of classic ICO entries. When alpha is false every pixel
// alpha byte is zero so readers must fall back to the mask.
func DIB32(w, h int, c color.NRGBA, alpha bool) []byte {
	var buf bytes.Buffer
	hdr := make([]byte, 40)
	binary.LittleEndian.PutUint32(hdr[0:], 40)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(w))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(h*2))
	binary.LittleEndian.PutUint16(hdr[12:], 1)
	binary.LittleEndian.PutUint16(hdr[14:], 32)
	buf.Write(hdr)
	a := c.A
	if !alpha {
		a = 0
	}
	for range w * h {
		buf.Write([]byte{c.B, c.G, c.R, a})
	}
	maskStride := (w + 31) / 32 * 4
	buf.Write(make([]byte, maskStride*h))
	return buf.Bytes()
}

// ICOEntry is one image of an ICO fixture.
type ICOEntry struct {
	Width int
	Bits  int
	Data  []byte
}

// ICO assembles an ICO container from entries.
func ICO(entries ...ICOEntry) []byte {
	var buf bytes.Buffer
	head := make([]byte, 6)
	binary.LittleEndian.PutUint16(head[2:], 1)
	binary.LittleEndian.PutUint16(head[4:], uint16(len(entries)))
	buf.Write(head)
	off := 6 + 16*len(entries)
	for _, e := range entries {
		d := make([]byte, 16)
		d[0], d[1] = byte(e.Width), byte(e.Width)
		binary.LittleEndian.PutUint16(d[4:], 1)
		binary.LittleEndian.PutUint16(d[6:], uint16(e.Bits))
		binary.LittleEndian.PutUint32(d[8:], uint32(len(e.Data)))
		binary.LittleEndian.PutUint32(d[12:], uint32(off))
		buf.Write(d)
		off += len(e.Data)
	}
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// ICNS assembles an Apple icon family from PNG payloads keyed by OSType.
func ICNS(entries map[string][]byte) []byte {
	var body bytes.Buffer
	for _, typ := range []string{"icp4", "icp5", "icp6", "ic07", "ic08"} {
		data, ok := entries[typ]
		if !ok {
			continue
		}
		body.WriteString(typ)
		_ = binary.Write(&body, binary.BigEndian, uint32(len(data)+8))
		body.Write(data)
	}
	var out bytes.Buffer
	out.WriteString("icns")
	_ = binary.Write(&out, binary.BigEndian, uint32(body.Len()+8))
	out.Write(body.Bytes())
	return out.Bytes()
}

// CountingStrategy is an extraction strategy that returns a fixed result
// and counts calls per path.
type CountingStrategy struct {
	ID     string
	Result *bitmap.Bitmap
	// Match restricts hits to one path when non-empty.
	Match string

	calls atomic.Int64
	mu    sync.Mutex
	paths []string
}

// Name implements extract.Strategy.
func (s *CountingStrategy) Name() string { return s.ID }

// TryExtract implements extract.Strategy.
func (s *CountingStrategy) TryExtract(path string, _ int) (*bitmap.Bitmap, bool) {
	s.calls.Add(1)
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	if s.Result == nil || (s.Match != "" && s.Match != path) {
		return nil, false
	}
	return s.Result, true
}

// Calls returns the number of TryExtract calls.
func (s *CountingStrategy) Calls() int64 { return s.calls.Load() }

// Paths returns the paths passed to TryExtract in call order.
func (s *CountingStrategy) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// BlockingStrategy blocks every TryExtract until Release is called.
type BlockingStrategy struct {
	Result *bitmap.Bitmap

	// Started receives one value per TryExtract call once it is blocked.
	Started chan struct{}

	release chan struct{}
	once    sync.Once
	calls   atomic.Int64
}

// NewBlockingStrategy returns a strategy that answers result once released.
func NewBlockingStrategy(result *bitmap.Bitmap) *BlockingStrategy {
	return &BlockingStrategy{
		Result:  result,
		Started: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

// Name implements extract.Strategy.
func (s *BlockingStrategy) Name() string { return "blocking" }

// TryExtract implements extract.Strategy.
func (s *BlockingStrategy) TryExtract(string, int) (*bitmap.Bitmap, bool) {
	s.calls.Add(1)
	select {
	case s.Started <- struct{}{}:
	default:
	}
	<-s.release
	return s.Result, s.Result != nil
}

// Release unblocks all current and future calls.
func (s *BlockingStrategy) Release() {
	s.once.Do(func() { close(s.release) })
}

// Calls returns the number of TryExtract calls.
func (s *BlockingStrategy) Calls() int64 { return s.calls.Load() }
