package iconcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Clear empties the memory tier and, unless memoryOnly, the disk tier.
// Counters and the start time are reset as well.
func (s *Service) Clear(memoryOnly bool) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.memory.Clear()
	s.metrics.SetMemoryEntries(0)
	s.resetStats()
	if memoryOnly {
		s.logger.Info("cache.cleared", slog.Bool("memory_only", true))
		return nil
	}
	if err := s.disk.Clear(); err != nil {
		return fmt.Errorf("iconcache: clear disk: %w", err)
	}
	s.logger.Info("cache.cleared", slog.Bool("memory_only", false))
	return nil
}

// Cleanup removes disk entries older than maxAge, then the oldest entries
// until the tier fits in maxBytes. maxAge <= 0 skips the age phase and
// maxBytes < 0 skips the size phase. It returns the number of files removed.
func (s *Service) Cleanup(maxAge time.Duration, maxBytes int64) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	res, err := s.disk.Cleanup(maxAge, maxBytes)
	if err != nil {
		return res.Removed, fmt.Errorf("iconcache: cleanup: %w", err)
	}
	s.logger.Info("cache.cleanup",
		slog.Int("removed", res.Removed),
		slog.Int64("remaining_bytes", res.RemainingBytes))
	return res.Removed, nil
}

// CleanupDays is Cleanup with the age in days and the budget in megabytes.
// A negative megabyte budget disables the size phase.
func (s *Service) CleanupDays(maxAgeDays, maxSizeMB int) (int, error) {
	maxBytes := int64(-1)
	if maxSizeMB >= 0 {
		maxBytes = int64(maxSizeMB) << 20
	}
	return s.Cleanup(time.Duration(maxAgeDays)*24*time.Hour, maxBytes)
}

// Export writes the icon for path at size as a PNG file at outPath,
// creating its parent directory.
func (s *Service) Export(ctx context.Context, path string, size int, outPath string) error {
	if path == "" || outPath == "" || size < 1 || size > MaxIconSize {
		return ErrInvalidRequest
	}
	b := s.Icon(ctx, path, size)
	data, err := b.PNG()
	if err != nil {
		return fmt.Errorf("iconcache: export: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil { //nolint:gosec // exported icons are user files
		return fmt.Errorf("iconcache: export: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil { //nolint:gosec // exported icons are user files
		return fmt.Errorf("iconcache: export: %w", err)
	}
	return nil
}

// Close drains queued preloads and stops the workers. Lookups keep working
// afterwards; administrative operations return ErrClosed.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.preload.Close()
	})
	return nil
}
