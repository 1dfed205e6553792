package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type cacheEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// CleanupResult describes one Cleanup sweep.
type CleanupResult struct {
	Removed        int   // entries deleted
	RemainingBytes int64 // bytes held by surviving entries
}

// Size returns the total bytes held by cache entries.
func (c *Cache) Size() (int64, error) {
	entries, _, err := c.scan()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	return total, nil
}

// Cleanup removes expired and excess entries.
//
// The sweep runs in two phases. First every entry older than maxAge is
// deleted. If the surviving entries still exceed maxBytes, the oldest are
// deleted until the total fits. Empty shard directories are removed last.
// maxAge <= 0 disables the age phase; maxBytes < 0 disables the size phase.
//
// Cleanup is safe to run alongside Get and Put: files that vanish mid-sweep
// are skipped and not counted.
func (c *Cache) Cleanup(maxAge time.Duration, maxBytes int64) (CleanupResult, error) {
	entries, temps, err := c.scan()
	if err != nil {
		return CleanupResult{}, err
	}

	var res CleanupResult
	for _, e := range entries {
		res.RemainingBytes += e.size
	}

	// Oldest first, with path as a tie-breaker for stable ordering.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].path < entries[j].path
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})

	now := time.Now()
	survivors := entries[:0]
	for _, e := range entries {
		if maxAge > 0 && now.Sub(e.modTime) > maxAge {
			removed, err := removeIfExists(e.path)
			if err != nil {
				c.logger.Warn("disk.cleanup.remove",
					slog.String("path", e.path),
					slog.Any("error", err))
				survivors = append(survivors, e)
				continue
			}
			if removed {
				res.Removed++
			}
			res.RemainingBytes -= e.size
			continue
		}
		survivors = append(survivors, e)
	}

	if maxBytes >= 0 {
		for _, e := range survivors {
			if res.RemainingBytes <= maxBytes {
				break
			}
			removed, err := removeIfExists(e.path)
			if err != nil {
				c.logger.Warn("disk.cleanup.remove",
					slog.String("path", e.path),
					slog.Any("error", err))
				continue
			}
			if removed {
				res.Removed++
			}
			res.RemainingBytes -= e.size
		}
	}

	// Temp files left by interrupted writers.
	for _, e := range temps {
		if maxAge > 0 && now.Sub(e.modTime) > maxAge {
			_, _ = removeIfExists(e.path)
		}
	}

	c.removeEmptyShards()
	return res, nil
}

// scan lists cache entries and leftover temp files under the root.
func (c *Cache) scan() (entries, temps []cacheEntry, err error) {
	walkErr := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		e := cacheEntry{path: path, size: info.Size(), modTime: info.ModTime()}
		switch name := d.Name(); {
		case strings.HasSuffix(name, entryExt):
			entries = append(entries, e)
		case strings.HasPrefix(name, tempPrefix):
			temps = append(temps, e)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("disk: scan: %w", walkErr)
	}
	return entries, temps, nil
}

func (c *Cache) removeEmptyShards() {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		// os.Remove fails on non-empty directories.
		_ = os.Remove(filepath.Join(c.dir, d.Name()))
	}
}

// removeIfExists deletes path, reporting false when it was already gone.
func removeIfExists(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
