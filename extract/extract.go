// Package extract obtains native icons for files.
//
// Extraction is organised as an ordered chain of strategies. The first
// strategy that yields an image wins; when all of them fail the chain asks a
// Resolver for the real target of a shortcut or symlink and tries once more.
// Failures are never errors at this level: a miss is reported as ok=false and
// the caller synthesizes a placeholder.
package extract

import (
	"errors"
	"log/slog"

	"github.com/meigma/iconcache/bitmap"
)

// ErrNotIcon is returned by the format readers when data does not hold a
// usable icon.
var ErrNotIcon = errors.New("extract: no usable icon")

// ErrTooLarge is returned, alongside ErrNotIcon, when an image header claims
// dimensions above the decode limit.
var ErrTooLarge = errors.New("extract: image dimensions too large")

// Strategy is one way of obtaining an icon for a path.
type Strategy interface {
	Name() string
	TryExtract(path string, size int) (*bitmap.Bitmap, bool)
}

// Resolver maps a shortcut, launcher or symlink to the file it points at.
type Resolver interface {
	Resolve(path string) (string, bool)
}

// Chain runs strategies in order with one resolver retry.
type Chain struct {
	strategies []Strategy
	resolver   Resolver
	logger     *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithResolver sets the resolver consulted after every strategy has failed.
func WithResolver(r Resolver) Option {
	return func(c *Chain) {
		c.resolver = r
	}
}

// WithLogger sets the logger for extraction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// NewChain returns a chain over strategies, tried in the given order.
func NewChain(strategies []Strategy, opts ...Option) *Chain {
	c := &Chain{
		strategies: append([]Strategy(nil), strategies...),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Strategies returns the names of the configured strategies in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract returns an icon for path fitted to size×size and tagged
// bitmap.KindExtracted.
func (c *Chain) Extract(path string, size int) (*bitmap.Bitmap, bool) {
	if path == "" || size < 1 {
		return nil, false
	}
	if b, ok := c.try(path, size); ok {
		return b, true
	}
	if c.resolver == nil {
		return nil, false
	}
	target, ok := c.resolver.Resolve(path)
	if !ok || target == "" || target == path {
		return nil, false
	}
	c.logger.Debug("extract.resolved",
		slog.String("path", path),
		slog.String("target", target))
	return c.try(target, size)
}

func (c *Chain) try(path string, size int) (*bitmap.Bitmap, bool) {
	for _, s := range c.strategies {
		b, ok := c.run(s, path, size)
		if !ok {
			continue
		}
		c.logger.Debug("extract.hit",
			slog.String("strategy", s.Name()),
			slog.String("path", path),
			slog.Int("size", size))
		return bitmap.Fit(b, size).WithKind(bitmap.KindExtracted, ""), true
	}
	c.logger.Debug("extract.miss", slog.String("path", path), slog.Int("size", size))
	return nil, false
}

// run isolates a single strategy so that a panic inside platform code is
// treated as a miss.
func (c *Chain) run(s Strategy, path string, size int) (b *bitmap.Bitmap, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("extract.panic",
				slog.String("strategy", s.Name()),
				slog.String("path", path),
				slog.Any("panic", r))
			b, ok = nil, false
		}
	}()
	b, ok = s.TryExtract(path, size)
	if b == nil {
		return nil, false
	}
	return b, ok
}
