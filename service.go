package iconcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/cache"
	"github.com/meigma/iconcache/cache/disk"
	"github.com/meigma/iconcache/cache/memory"
	"github.com/meigma/iconcache/extract"
	"github.com/meigma/iconcache/internal/batch"
	"github.com/meigma/iconcache/internal/metrics"
	"github.com/meigma/iconcache/internal/platform"
	"github.com/meigma/iconcache/render"
)

const (
	// MaxIconSize is the largest edge length Icon renders.
	MaxIconSize = 1024

	// DefaultPreloadWorkers is the preload pool size.
	DefaultPreloadWorkers = 2

	tracerName = "github.com/meigma/iconcache"
)

// DefaultPreloadSizes are used when Preload is called without sizes.
var DefaultPreloadSizes = []int{32, 48, 64}

// Service is the icon lookup entry point. It is safe for concurrent use.
type Service struct {
	memory    *memory.Cache
	disk      *disk.Cache
	extractor Extractor
	stat      StatFunc
	foldCase  bool

	logger  *slog.Logger
	metrics metrics.Interface
	tracer  trace.Tracer

	memEntries int
	memBytes   int64
	workers    int

	fills   singleflight.Group
	preload *batch.Queue[preloadJob]

	stats     counters
	startMu   sync.RWMutex
	startTime time.Time

	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a Service persisting to cacheDir.
//
// Without WithExtractor the platform chain from extract.Default is used.
func New(cacheDir string, opts ...Option) (*Service, error) {
	s := &Service{
		stat:       osStat,
		foldCase:   platform.CaseInsensitive,
		logger:     slog.New(slog.DiscardHandler),
		metrics:    metrics.Noop{},
		tracer:     otel.Tracer(tracerName),
		memEntries: memory.DefaultMaxEntries,
		memBytes:   memory.DefaultMaxBytes,
		workers:    DefaultPreloadWorkers,
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	d, err := disk.New(cacheDir, disk.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("iconcache: %w", err)
	}
	s.disk = d
	s.memory = memory.New(
		memory.WithMaxEntries(s.memEntries),
		memory.WithMaxBytes(s.memBytes),
		memory.WithOnEvict(func(cache.Key, int64) { s.metrics.AddEvicted(1) }),
	)
	if s.extractor == nil {
		s.extractor = extract.Default(extract.WithLogger(s.logger))
	}
	s.preload = batch.NewQueue(s.workers, s.runPreload)
	return s, nil
}

// Dir returns the disk cache root.
func (s *Service) Dir() string { return s.disk.Dir() }

// Icon returns the icon for path at size×size. It never fails: lookups that
// cannot be satisfied yield a synthesized placeholder. ctx only carries trace
// context; extraction is not cancelled.
func (s *Service) Icon(ctx context.Context, path string, size int) *bitmap.Bitmap {
	s.stats.totalRequests.Add(1)
	s.metrics.IncRequest()

	if path == "" || size < 1 || size > MaxIconSize {
		s.logger.Debug("icon.invalid_request",
			slog.String("path", path),
			slog.Int("size", size))
		return render.DefaultIcon(min(max(size, 1), MaxIconSize))
	}

	norm := s.normalize(path)
	mtime, exists := s.stat(norm)
	key := cache.NewKey(norm, size, mtime)

	if b, ok := s.memory.Get(key); ok {
		s.stats.memoryHits.Add(1)
		s.metrics.IncMemoryHit()
		return b
	}

	v, _, _ := s.fills.Do(string(key), func() (any, error) {
		// Another fill for this key may have finished since the check above.
		// Peek so the miss already counted is not counted twice.
		if b, ok := s.memory.Peek(key); ok {
			s.stats.memoryHits.Add(1)
			s.metrics.IncMemoryHit()
			return b, nil
		}
		return s.fill(ctx, key, norm, size, exists), nil
	})
	b, _ := v.(*bitmap.Bitmap) //nolint:errcheck // fill always returns a bitmap
	return b
}

// fill resolves a memory miss through the disk tier, extraction and
// placeholders, then writes the result back.
func (s *Service) fill(ctx context.Context, key cache.Key, path string, size int, exists bool) *bitmap.Bitmap {
	_, span := s.tracer.Start(ctx, "iconcache.fill", trace.WithAttributes(
		attribute.String("icon.path", path),
		attribute.Int("icon.size", size),
		attribute.Bool("icon.exists", exists),
	))
	defer span.End()

	if b, ok := s.disk.Get(key); ok {
		if !exists {
			b = missingKind(b, path)
		}
		s.stats.diskHits.Add(1)
		s.metrics.IncDiskHit()
		s.memory.Put(key, b)
		s.metrics.SetMemoryEntries(s.memory.Len())
		span.SetAttributes(attribute.String("icon.source", "disk"))
		return b
	}

	if !exists {
		b := missingPlaceholder(path, size)
		s.stats.placeholders.Add(1)
		s.metrics.IncPlaceholder()
		span.SetAttributes(attribute.String("icon.source", "placeholder"))
		s.store(key, b)
		return b
	}

	s.stats.extractions.Add(1)
	s.metrics.IncExtraction()
	start := time.Now()
	b, ok := s.extractor.Extract(path, size)
	s.metrics.ObserveExtraction(time.Since(start))
	if !ok || b == nil {
		s.stats.failedExtractions.Add(1)
		s.metrics.IncExtractionFailed()
		s.logger.Debug("icon.extract_failed",
			slog.String("path", path),
			slog.Int("size", size))
		span.SetStatus(codes.Error, "extraction failed")
		b = render.FileTypeIcon(path, size)
	} else {
		span.SetAttributes(attribute.String("icon.source", "extracted"))
	}

	b = bitmap.Fit(b, size)
	s.store(key, b)
	return b
}

// store writes b to both tiers. Disk failures are logged and ignored.
func (s *Service) store(key cache.Key, b *bitmap.Bitmap) {
	s.memory.Put(key, b)
	s.metrics.SetMemoryEntries(s.memory.Len())
	if err := s.disk.Put(key, b); err != nil {
		s.logger.Warn("disk.write_failed",
			slog.String("key", key.String()),
			slog.Any("error", err))
	}
}

// missingPlaceholder is the icon cached for paths that do not exist.
func missingPlaceholder(path string, size int) *bitmap.Bitmap {
	if render.Label(path) == "" {
		return render.DefaultIcon(size)
	}
	return render.FileTypeIcon(path, size)
}

// missingKind restores the placeholder tag of a missing-file entry read
// back from disk.
func missingKind(b *bitmap.Bitmap, path string) *bitmap.Bitmap {
	label := render.Label(path)
	if label == "" {
		return b.WithKind(bitmap.KindDefault, "")
	}
	return b.WithKind(bitmap.KindFileType, label)
}
