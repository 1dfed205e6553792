package disk

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/cache"
	"github.com/meigma/iconcache/internal/testutil"
)

func testBitmap(t *testing.T, side int, c color.NRGBA) *bitmap.Bitmap {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for y := range side {
		for x := range side {
			img.SetNRGBA(x, y, c)
		}
	}
	b, err := bitmap.New(img, bitmap.KindExtracted, "")
	if err != nil {
		t.Fatalf("bitmap.New() error = %v", err)
	}
	return b
}

func testKey(i int) cache.Key {
	return cache.NewKey(fmt.Sprintf("/apps/%d.exe", i), 32, 0)
}

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	key := testKey(1)
	if err := c.Put(key, testBitmap(t, 16, want)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Width() != 16 || got.Height() != 16 {
		t.Fatalf("Get() size = %dx%d, want 16x16", got.Width(), got.Height())
	}
	if px := got.Image().(*image.NRGBA).NRGBAAt(3, 3); px != want {
		t.Fatalf("Get() pixel = %v, want %v", px, want)
	}

	path := filepath.Join(dir, key.Shard(), key.String()+".png")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
}

func TestCacheMiss(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := c.Get(testKey(7)); ok {
		t.Fatal("Get() ok = true, want false")
	}
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := testKey(2)
	path, err := c.Path(key)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(key); ok {
		t.Fatal("Get() ok = true for corrupt file, want false")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("corrupt file should be removed, stat err = %v", err)
	}

	if err := c.Put(key, testBitmap(t, 4, color.NRGBA{A: 255})); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := c.Get(key); !ok {
		t.Fatal("Get() ok = false after rewrite, want true")
	}
}

func TestCacheOversizedEntryIsMiss(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := testKey(3)
	path, err := c.Path(key)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	testutil.WriteFile(t, filepath.Dir(path), filepath.Base(path), testutil.OversizedPNG(t, 20000, 20000))

	if _, ok := c.Get(key); ok {
		t.Fatal("Get() ok = true for a 20000x20000 header, want false")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("oversized file should be removed, stat err = %v", err)
	}
}

func TestCacheOverwrite(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := testKey(3)
	if err := c.Put(key, testBitmap(t, 4, color.NRGBA{R: 1, A: 255})); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(key, testBitmap(t, 8, color.NRGBA{R: 2, A: 255})); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(key)
	if !ok || got.Width() != 8 {
		t.Fatalf("Get() = %v, %v; want last written 8px entry", got, ok)
	}
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := testKey(4)
	if err := c.Put(key, testBitmap(t, 2, color.NRGBA{A: 255})); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	path := filepath.Join(dir, key.String()+".png")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
}

func TestCacheRejectsInvalidKey(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put(cache.Key("../escape"), testBitmap(t, 2, color.NRGBA{})); err == nil {
		t.Fatal("Put() error = nil, want ErrInvalidKey")
	}
}

func TestCacheConcurrentWriters(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := testKey(5)
	bm := testBitmap(t, 32, color.NRGBA{G: 255, A: 255})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Put(key, bm); err != nil {
				t.Errorf("Put() error = %v", err)
			}
			if got, ok := c.Get(key); ok && got.Width() != 32 {
				t.Errorf("Get() observed partial entry: width %d", got.Width())
			}
		}()
	}
	wg.Wait()

	if _, ok := c.Get(key); !ok {
		t.Fatal("Get() ok = false, want true")
	}
}

func TestCacheClear(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := range 3 {
		if err := c.Put(testKey(i), testBitmap(t, 2, color.NRGBA{A: 255})); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	size, err := c.Size()
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 0 {
		t.Fatalf("Size() = %d after Clear, want 0", size)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("cache root should be recreated: %v", err)
	}
}

func TestNewEmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New() error = nil, want error")
	}
}

// age sets the modification time of key's file to now minus d.
func age(t *testing.T, c *Cache, key cache.Key, d time.Duration) {
	t.Helper()
	path, err := c.Path(key)
	if err != nil {
		t.Fatal(err)
	}
	when := time.Now().Add(-d)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
}
