package iconcache

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/internal/metrics"
)

// Extractor produces an icon for a path; see extract.Chain.
type Extractor interface {
	Extract(path string, size int) (*bitmap.Bitmap, bool)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(path string, size int) (*bitmap.Bitmap, bool)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(path string, size int) (*bitmap.Bitmap, bool) {
	return f(path, size)
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithExtractor replaces the platform extraction chain.
func WithExtractor(e Extractor) Option {
	return func(s *Service) error {
		if e == nil {
			return errors.New("iconcache: nil extractor")
		}
		s.extractor = e
		return nil
	}
}

// WithMemoryLimits bounds the memory tier by entry count and estimated bytes.
func WithMemoryLimits(entries int, bytes int64) Option {
	return func(s *Service) error {
		if entries < 1 || bytes < 1 {
			return errors.New("iconcache: memory limits must be positive")
		}
		s.memEntries = entries
		s.memBytes = bytes
		return nil
	}
}

// WithPreloadWorkers sets the size of the preload worker pool.
func WithPreloadWorkers(n int) Option {
	return func(s *Service) error {
		if n < 1 {
			return errors.New("iconcache: preload workers must be positive")
		}
		s.workers = n
		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Interface) Option {
	return func(s *Service) error {
		if m != nil {
			s.metrics = m
		}
		return nil
	}
}

// WithStatFunc replaces the file existence and mtime accessor.
func WithStatFunc(fn StatFunc) Option {
	return func(s *Service) error {
		if fn == nil {
			return errors.New("iconcache: nil stat func")
		}
		s.stat = fn
		return nil
	}
}

// WithCaseFolding overrides the platform default for folding path case in
// cache keys.
func WithCaseFolding(enabled bool) Option {
	return func(s *Service) error {
		s.foldCase = enabled
		return nil
	}
}

// WithTracer sets the tracer used for cache fills.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) error {
		if t != nil {
			s.tracer = t
		}
		return nil
	}
}
