package iconcache

import (
	"context"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/extract"
	"github.com/meigma/iconcache/internal/metrics"
	"github.com/meigma/iconcache/internal/testutil"
)

// countingExtractor returns a fixed non-square bitmap and counts calls.
type countingExtractor struct {
	calls  atomic.Int64
	result *bitmap.Bitmap
}

func (e *countingExtractor) Extract(string, int) (*bitmap.Bitmap, bool) {
	e.calls.Add(1)
	return e.result, e.result != nil
}

func newExtractor(t *testing.T) *countingExtractor {
	t.Helper()
	return &countingExtractor{result: testutil.Bitmap(t, 20, 10, color.NRGBA{R: 200, A: 255})}
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func existing(t *testing.T, name string) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), name, []byte("payload"))
}

func TestIconAlwaysRequestedSize(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	path := existing(t, "tool.exe")
	ctx := context.Background()

	for _, size := range []int{1, 16, 32, 48, 256} {
		for range 2 {
			b := s.Icon(ctx, path, size)
			require.NotNil(t, b)
			assert.Equal(t, size, b.Width(), "size %d", size)
			assert.Equal(t, size, b.Height(), "size %d", size)
		}
	}
}

func TestIconSecondCallIsMemoryHit(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	path := existing(t, "tool.exe")
	ctx := context.Background()

	first := s.Icon(ctx, path, 32)
	second := s.Icon(ctx, path, 32)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, ex.calls.Load())
	st := s.Stats()
	assert.EqualValues(t, 2, st.TotalRequests)
	assert.EqualValues(t, 1, st.MemoryHits)
	assert.EqualValues(t, 1, st.Extractions)
	assert.InDelta(t, 50.0, st.MemoryHitRate, 0.001)
	assert.InDelta(t, 100.0, st.ExtractionSuccessRate, 0.001)
}

func TestIconMtimeChangeInvalidates(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	path := existing(t, "tool.exe")
	ctx := context.Background()

	s.Icon(ctx, path, 32)
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	s.Icon(ctx, path, 32)

	assert.EqualValues(t, 2, ex.calls.Load())
}

func TestIconMissingFilePlaceholder(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	ctx := context.Background()

	first := s.Icon(ctx, "/nonexistent/file.exe", 48)
	require.NotNil(t, first)
	assert.Equal(t, 48, first.Width())
	assert.Equal(t, 48, first.Height())
	assert.Equal(t, bitmap.KindFileType, first.Kind())
	assert.Equal(t, "EXE", first.Label())

	second := s.Icon(ctx, "/nonexistent/file.exe", 48)
	assert.Same(t, first, second)
	assert.EqualValues(t, 0, ex.calls.Load())
	st := s.Stats()
	assert.EqualValues(t, 1, st.MemoryHits)
	assert.EqualValues(t, 1, st.Placeholders)
}

func TestIconCreatedAfterMissing(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	path := filepath.Join(t.TempDir(), "late.exe")
	ctx := context.Background()

	before := s.Icon(ctx, path, 32)
	assert.Equal(t, bitmap.KindFileType, before.Kind())
	assert.EqualValues(t, 0, ex.calls.Load())

	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	after := s.Icon(ctx, path, 32)
	assert.Equal(t, bitmap.KindExtracted, after.Kind())
	assert.Equal(t, 32, after.Width())
	assert.EqualValues(t, 1, ex.calls.Load())
}

func TestIconColdLookupCountsOneMiss(t *testing.T) {
	t.Parallel()

	s := newService(t, WithExtractor(newExtractor(t)))
	s.Icon(context.Background(), existing(t, "tool.exe"), 32)

	st := s.Stats()
	assert.EqualValues(t, 1, st.Memory.Misses)
	assert.EqualValues(t, 0, st.Memory.Hits)
}

func TestIconMissingFileWithoutExtension(t *testing.T) {
	t.Parallel()

	s := newService(t, WithExtractor(newExtractor(t)))
	b := s.Icon(context.Background(), "/nonexistent/README", 32)
	assert.Equal(t, bitmap.KindDefault, b.Kind())
}

func TestIconDiskHitAfterMemoryClear(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	path := existing(t, "tool.exe")
	ctx := context.Background()

	s.Icon(ctx, path, 32)
	s.Icon(ctx, "/nonexistent/file.exe", 32)
	require.NoError(t, s.Clear(true))
	assert.Zero(t, s.Stats().TotalRequests)

	b := s.Icon(ctx, path, 32)
	assert.Equal(t, 32, b.Width())
	assert.Equal(t, bitmap.KindExtracted, b.Kind())

	missing := s.Icon(ctx, "/nonexistent/file.exe", 32)
	assert.Equal(t, bitmap.KindFileType, missing.Kind())
	assert.Equal(t, "EXE", missing.Label())

	assert.EqualValues(t, 1, ex.calls.Load())
	assert.EqualValues(t, 2, s.Stats().DiskHits)
}

func TestIconFullClearForcesExtraction(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	path := existing(t, "tool.exe")
	ctx := context.Background()

	s.Icon(ctx, path, 32)
	require.NoError(t, s.Clear(false))
	s.Icon(ctx, path, 32)
	assert.EqualValues(t, 2, ex.calls.Load())
}

func TestIconInvalidRequest(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		size int
		want int
	}{
		{"empty path", "", 32, 32},
		{"zero size", "/x.exe", 0, 1},
		{"negative size", "/x.exe", -4, 1},
		{"too large", "/x.exe", MaxIconSize + 1, MaxIconSize},
	}
	for _, tt := range tests {
		b := s.Icon(ctx, tt.path, tt.size)
		assert.Equal(t, bitmap.KindDefault, b.Kind(), tt.name)
		assert.Equal(t, tt.want, b.Width(), tt.name)
	}
	assert.Zero(t, s.Stats().Memory.Entries)
	assert.EqualValues(t, 0, ex.calls.Load())
}

func TestIconExtractionFailure(t *testing.T) {
	t.Parallel()

	ex := &countingExtractor{}
	m := metrics.NewSimple()
	s := newService(t, WithExtractor(ex), WithMetrics(m))
	path := existing(t, "archive.zip")

	b := s.Icon(context.Background(), path, 24)
	assert.Equal(t, bitmap.KindFileType, b.Kind())
	assert.Equal(t, "ZIP", b.Label())
	assert.Equal(t, 24, b.Width())

	st := s.Stats()
	assert.EqualValues(t, 1, st.FailedExtractions)
	assert.InDelta(t, 0.0, st.ExtractionSuccessRate, 0.001)
	assert.EqualValues(t, 1, m.ExtractionsFailed.Load())
	assert.EqualValues(t, 1, m.Requests.Load())
}

func TestIconConcurrentSingleExtraction(t *testing.T) {
	t.Parallel()

	blocking := testutil.NewBlockingStrategy(testutil.Bitmap(t, 32, 32, color.NRGBA{G: 255, A: 255}))
	chain := extract.NewChain([]extract.Strategy{blocking})
	s := newService(t, WithExtractor(chain))
	path := existing(t, "tool.exe")

	const n = 16
	results := make([]*bitmap.Bitmap, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Icon(context.Background(), path, 32)
		}()
	}
	<-blocking.Started
	blocking.Release()
	wg.Wait()

	assert.EqualValues(t, 1, blocking.Calls())
	for _, b := range results {
		require.NotNil(t, b)
		assert.Equal(t, 32, b.Width())
	}
}

func TestIconCaseFolding(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	stat := func(string) (int64, bool) { return 42, true }
	s := newService(t, WithExtractor(ex), WithStatFunc(stat), WithCaseFolding(true))
	ctx := context.Background()

	s.Icon(ctx, "/Apps/Tool.EXE", 32)
	s.Icon(ctx, "/apps/tool.exe", 32)
	assert.EqualValues(t, 1, ex.calls.Load())

	plain := newService(t, WithExtractor(newExtractor(t)), WithStatFunc(stat), WithCaseFolding(false))
	plain.Icon(ctx, "/Apps/Tool.EXE", 32)
	plain.Icon(ctx, "/apps/tool.exe", 32)
	assert.EqualValues(t, 2, plain.Stats().Extractions)
}

func TestMemoryLimitsApplied(t *testing.T) {
	t.Parallel()

	stat := func(string) (int64, bool) { return 1, true }
	s := newService(t, WithExtractor(newExtractor(t)), WithStatFunc(stat), WithMemoryLimits(2, 1<<20))
	ctx := context.Background()
	for _, p := range []string{"/a.exe", "/b.exe", "/c.exe"} {
		s.Icon(ctx, p, 16)
	}
	st := s.Stats().Memory
	assert.Equal(t, 2, st.Entries)
	assert.EqualValues(t, 1, st.Evictions)
}

func TestPreload(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex), WithPreloadWorkers(2))
	path := existing(t, "tool.exe")

	s.Preload([]string{path, "/nonexistent/skip.exe", ""}, nil)
	s.WaitPreload()
	assert.EqualValues(t, len(DefaultPreloadSizes), ex.calls.Load())

	before := s.Stats().MemoryHits
	s.Icon(context.Background(), path, 48)
	assert.Equal(t, before+1, s.Stats().MemoryHits)

	s.Preload([]string{path}, []int{0, 2000, 20})
	s.WaitPreload()
	assert.EqualValues(t, len(DefaultPreloadSizes)+1, ex.calls.Load())
}

func TestCloseStopsAdmin(t *testing.T) {
	t.Parallel()

	ex := newExtractor(t)
	s := newService(t, WithExtractor(ex))
	path := existing(t, "tool.exe")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s.Preload([]string{path}, []int{32})
	assert.EqualValues(t, 0, ex.calls.Load())
	require.ErrorIs(t, s.Clear(true), ErrClosed)
	_, err := s.CleanupDays(1, 1)
	require.ErrorIs(t, err, ErrClosed)

	// Lookups still work.
	assert.Equal(t, 16, s.Icon(context.Background(), path, 16).Width())
}

func TestCleanupDays(t *testing.T) {
	t.Parallel()

	s := newService(t, WithExtractor(newExtractor(t)))
	ctx := context.Background()
	for _, name := range []string{"a.exe", "b.exe", "c.exe"} {
		s.Icon(ctx, existing(t, name), 32)
	}

	removed, err := s.CleanupDays(7, 500)
	require.NoError(t, err)
	assert.Zero(t, removed)

	old := time.Now().Add(-10 * 24 * time.Hour)
	err = filepath.WalkDir(s.Dir(), func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return os.Chtimes(p, old, old)
	})
	require.NoError(t, err)

	removed, err = s.CleanupDays(7, 500)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}

func TestExport(t *testing.T) {
	t.Parallel()

	s := newService(t, WithExtractor(newExtractor(t)))
	out := filepath.Join(t.TempDir(), "nested", "icon.png")

	require.NoError(t, s.Export(context.Background(), existing(t, "tool.exe"), 40, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)

	require.ErrorIs(t, s.Export(context.Background(), "", 40, out), ErrInvalidRequest)
}

func TestNewOptionErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := New(dir, WithPreloadWorkers(0))
	require.Error(t, err)
	_, err = New(dir, WithMemoryLimits(0, 10))
	require.Error(t, err)
	_, err = New(dir, WithExtractor(nil))
	require.Error(t, err)
	_, err = New("")
	require.Error(t, err)
}
