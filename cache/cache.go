// Package cache defines the cache key shared by the memory and disk tiers.
//
// A Key identifies one rendition of one icon: the same normalized path, pixel
// size and source modification time always produce the same Key. Touching the
// source file changes its modification time and therefore its Key, so stale
// entries are never returned; they simply age out of the disk tier.
package cache

import (
	_ "crypto/sha256" // registers the digest algorithm
	"fmt"

	"github.com/opencontainers/go-digest"
)

// KeyLen is the length of a Key in hex characters.
const KeyLen = 64

// ShardPrefixLen is the number of leading hex characters naming a shard.
const ShardPrefixLen = 2

// Key is a fixed-length hex digest over (path, size, mtime).
type Key string

// NewKey derives the key for path rendered at size pixels. mtime is the
// source modification time in Unix nanoseconds, or 0 when the source does
// not exist.
func NewKey(path string, size int, mtime int64) Key {
	d := digest.SHA256.FromString(fmt.Sprintf("%s_%d_%d", path, size, mtime))
	return Key(d.Encoded())
}

// Shard returns the shard directory name for k.
func (k Key) Shard() string {
	if len(k) < ShardPrefixLen {
		return string(k)
	}
	return string(k[:ShardPrefixLen])
}

// Valid reports whether k has the shape produced by NewKey.
func (k Key) Valid() bool {
	if len(k) != KeyLen {
		return false
	}
	return digest.NewDigestFromEncoded(digest.SHA256, string(k)).Validate() == nil
}

// String implements fmt.Stringer.
func (k Key) String() string { return string(k) }
