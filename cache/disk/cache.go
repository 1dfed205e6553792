// Package disk provides the persistent, sharded PNG tier of the icon cache.
//
// Entries live at <dir>/<first two hex chars of key>/<key>.png. The whole
// directory is derived data: deleting it is equivalent to a full clear.
package disk

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/cache"
)

const (
	defaultShardPrefixLen = cache.ShardPrefixLen
	defaultDirPerm        = 0o700

	entryExt   = ".png"
	tempPrefix = "cache-"
)

var (
	// ErrEmptyDir is returned by New when no directory is given.
	ErrEmptyDir = errors.New("disk: cache dir is empty")
	// ErrInvalidKey is returned for keys that could escape the cache root.
	ErrInvalidKey = errors.New("disk: invalid key")
)

// Cache stores PNG-encoded bitmaps on the local filesystem.
//
// Writes go to a temporary file in the shard directory and are renamed into
// place, so concurrent readers never observe partial files. Concurrent
// writers of the same key are safe: the last rename wins.
type Cache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	logger         *slog.Logger
}

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithLogger sets the logger used to report corrupt entries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a disk-backed cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("disk: shard prefix length must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, fmt.Errorf("disk: create cache dir: %w", err)
	}
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// Get loads the bitmap stored under key.
//
// A missing file is a miss. A file that fails to decode is removed and also
// reported as a miss, so the next Put can replace it.
func (c *Cache) Get(key cache.Key) (*bitmap.Bitmap, bool) {
	path, err := c.Path(key)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated key
	if err != nil {
		return nil, false
	}
	bm, err := bitmap.Decode(bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("disk.corrupt",
			slog.String("path", path),
			slog.Any("error", err))
		if _, statErr := os.Stat(path); statErr == nil {
			_ = os.Remove(path)
		}
		return nil, false
	}
	return bm, true
}

// Put encodes bm as PNG and stores it under key.
func (c *Cache) Put(key cache.Key, bm *bitmap.Bitmap) error {
	if bm == nil {
		return bitmap.ErrEmpty
	}
	path, err := c.Path(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return fmt.Errorf("disk: create shard: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("disk: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if err := bm.EncodePNG(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("disk: close temp: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		// A concurrent writer (or a reader holding the file open on Windows)
		// may block the rename; an equivalent entry is already in place.
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		}
		return fmt.Errorf("disk: rename: %w", err)
	}
	return nil
}

// Path returns the file location for key.
func (c *Cache) Path(key cache.Key) (string, error) {
	if !key.Valid() {
		return "", ErrInvalidKey
	}
	name := key.String() + entryExt
	if c.shardPrefixLen <= 0 {
		return filepath.Join(c.dir, name), nil
	}
	prefixLen := min(c.shardPrefixLen, len(key))
	return filepath.Join(c.dir, key.String()[:prefixLen], name), nil
}

// Clear removes every entry by deleting and recreating the root.
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("disk: clear: %w", err)
	}
	if err := os.MkdirAll(c.dir, c.dirPerm); err != nil {
		return fmt.Errorf("disk: recreate cache dir: %w", err)
	}
	return nil
}
