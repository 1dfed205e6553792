// Package memory provides the in-process LRU tier of the icon cache.
package memory

import (
	"container/list"
	"sync"

	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/cache"
)

// Default bounds.
const (
	DefaultMaxEntries       = 100
	DefaultMaxBytes   int64 = 50 << 20 // 50 MB
)

// Cache is a thread-safe LRU bounded by entry count and estimated bytes.
//
// Sizes are estimated as width × height × 4 and tracked as a running total,
// so every operation is O(1) apart from the evictions it triggers.
type Cache struct {
	maxEntries int
	maxBytes   int64
	onEvict    func(cache.Key, int64)

	mu    sync.Mutex
	ll    *list.List // Front = least recently used (victim), Back = most recent
	idx   map[cache.Key]*list.Element
	bytes int64

	hits      uint64
	misses    uint64
	evictions uint64
}

type item struct {
	key  cache.Key
	bm   *bitmap.Bitmap
	size int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries bounds the number of resident entries. Values < 1 become 1.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		c.maxEntries = n
	}
}

// WithMaxBytes bounds the estimated pixel bytes held. Values < 1 become 1.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// WithOnEvict registers a callback invoked for every evicted entry.
// The callback runs with the cache lock held and must not call back into the cache.
func WithOnEvict(fn func(key cache.Key, size int64)) Option {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxEntries: DefaultMaxEntries,
		maxBytes:   DefaultMaxBytes,
		ll:         list.New(),
		idx:        make(map[cache.Key]*list.Element),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.maxEntries < 1 {
		c.maxEntries = 1
	}
	if c.maxBytes < 1 {
		c.maxBytes = 1
	}
	return c
}

// Get returns the bitmap stored under key and marks it most recently used.
func (c *Cache) Get(key cache.Key) (*bitmap.Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.idx[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.ll.MoveToBack(el)
	return el.Value.(*item).bm, true //nolint:errcheck // list only holds *item
}

// Peek returns the bitmap stored under key without counting a hit or miss
// and without changing its recency.
func (c *Cache) Peek(key cache.Key) (*bitmap.Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.idx[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*item).bm, true //nolint:errcheck // list only holds *item
}

// Put stores bm under key.
//
// A new key first evicts least recently used entries until there is room for
// one more entry and for its bytes. Replacing an existing key adjusts the
// running total by the size delta and promotes the key; if that pushes the
// total over the bound, other entries are evicted.
func (c *Cache) Put(key cache.Key, bm *bitmap.Bitmap) {
	if bm == nil {
		return
	}
	size := bm.SizeBytes()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.idx[key]; ok {
		it := el.Value.(*item) //nolint:errcheck // list only holds *item
		c.bytes += size - it.size
		it.bm = bm
		it.size = size
		c.ll.MoveToBack(el)
		for c.bytes > c.maxBytes && c.ll.Len() > 1 {
			if !c.evict() {
				break
			}
		}
		return
	}

	for c.ll.Len() >= c.maxEntries || c.bytes+size > c.maxBytes {
		if !c.evict() {
			// Empty cache and the entry alone exceeds the bound: store it anyway.
			break
		}
	}

	c.idx[key] = c.ll.PushBack(&item{key: key, bm: bm, size: size})
	c.bytes += size
}

// evict removes the least recently used entry. It reports false when the
// cache is empty. Callers must hold c.mu.
func (c *Cache) evict() bool {
	front := c.ll.Front()
	if front == nil {
		return false
	}
	it := front.Value.(*item) //nolint:errcheck // list only holds *item
	c.ll.Remove(front)
	delete(c.idx, it.key)
	c.bytes -= it.size
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(it.key, it.size)
	}
	return true
}

// Contains reports whether key is resident without touching recency.
func (c *Cache) Contains(key cache.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.idx[key]
	return ok
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Bytes returns the estimated bytes held.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.idx)
	c.bytes = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"max_entries"`
	Bytes      int64  `json:"bytes"`
	MaxBytes   int64  `json:"max_bytes"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
}

// Stats returns a snapshot of occupancy and counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:    c.ll.Len(),
		MaxEntries: c.maxEntries,
		Bytes:      c.bytes,
		MaxBytes:   c.maxBytes,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}
