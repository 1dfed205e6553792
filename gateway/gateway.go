// Package gateway adapts opaque icon request identifiers, as sent by an
// image provider front end, into icon lookups.
//
// A Gateway decodes identifiers into paths, resolves the icon size and
// suppresses duplicate concurrent requests: while a (path, size) pair is in
// flight, further requests for it get a loading placeholder immediately
// instead of waiting. NewRouter exposes a Gateway and the cache
// administration operations over HTTP.
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meigma/iconcache"
	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/internal/metrics"
	"github.com/meigma/iconcache/internal/platform"
	"github.com/meigma/iconcache/render"
)

const (
	// responseWindow is the number of response times averaged by Stats.
	responseWindow = 100

	// perfLogEvery is the request interval between performance summaries.
	perfLogEvery = 100
)

// Backend serves icon lookups. *iconcache.Service implements it.
type Backend interface {
	Icon(ctx context.Context, path string, size int) *bitmap.Bitmap
}

type pendingKey struct {
	path string
	size int
}

// Gateway decodes requests and deduplicates in-flight lookups. It is safe
// for concurrent use.
type Gateway struct {
	backend    Backend
	logger     *slog.Logger
	metrics    metrics.Interface
	tracer     trace.Tracer
	searchDirs []string

	mu      sync.Mutex
	pending map[pendingKey]struct{}

	total      atomic.Int64
	successful atomic.Int64
	failed     atomic.Int64
	start      time.Time

	timesMu sync.Mutex
	times   [responseWindow]time.Duration
	timesN  int
	next    int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink for deduplicated requests.
func WithMetrics(m metrics.Interface) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithSearchDirs replaces the directories searched for absolute paths that
// do not exist.
func WithSearchDirs(dirs []string) Option {
	return func(g *Gateway) {
		g.searchDirs = append([]string(nil), dirs...)
	}
}

// New creates a Gateway in front of backend.
func New(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		logger:  slog.New(slog.DiscardHandler),
		metrics: metrics.Noop{},
		tracer:  otel.Tracer("github.com/meigma/iconcache/gateway"),
		pending: make(map[pendingKey]struct{}),
		start:   time.Now(),
	}
	g.searchDirs = platform.SearchDirs()
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decode resolves id using the gateway's search directories.
func (g *Gateway) Decode(id string) (string, error) {
	return decode(id, g.searchDirs)
}

// Request returns the icon for the identifier id. It never fails: an
// undecodable id yields an error placeholder and a request that duplicates
// one in flight yields a loading placeholder.
func (g *Gateway) Request(ctx context.Context, id string, requested, hinted Size) *bitmap.Bitmap {
	begin := time.Now()
	total := g.total.Add(1)

	ctx, span := g.tracer.Start(ctx, "gateway.request", trace.WithAttributes(
		attribute.String("icon.id", id),
	))
	defer span.End()

	path, err := g.Decode(id)
	if err != nil {
		g.failed.Add(1)
		g.logger.Warn("gateway.invalid_request",
			slog.String("id", id),
			slog.Any("error", err))
		span.SetStatus(codes.Error, "invalid request")
		return render.ErrorIcon(clampSize(ResolveSize(requested, Size{})))
	}

	size := ResolveSize(requested, hinted)
	span.SetAttributes(attribute.String("icon.path", path), attribute.Int("icon.size", size))

	key := pendingKey{path: path, size: size}
	if !g.acquire(key) {
		g.metrics.IncDeduplicated()
		span.SetAttributes(attribute.Bool("icon.deduplicated", true))
		return render.LoadingIcon(clampSize(size))
	}
	defer g.release(key)

	b := g.backend.Icon(ctx, path, size)
	switch {
	case b == nil:
		g.failed.Add(1)
		g.logger.Warn("gateway.lookup_failed", slog.String("path", path), slog.Int("size", size))
		span.SetStatus(codes.Error, "lookup failed")
		return render.FileTypeIcon(path, clampSize(size))
	case b.Kind() == bitmap.KindError:
		g.failed.Add(1)
		span.SetStatus(codes.Error, "error placeholder")
		return b
	}

	g.successful.Add(1)
	g.record(time.Since(begin))
	if total%perfLogEvery == 0 {
		g.logPerformance()
	}
	return b
}

func (g *Gateway) acquire(key pendingKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pending[key]; ok {
		return false
	}
	g.pending[key] = struct{}{}
	return true
}

func (g *Gateway) release(key pendingKey) {
	g.mu.Lock()
	delete(g.pending, key)
	g.mu.Unlock()
}

func (g *Gateway) record(d time.Duration) {
	g.timesMu.Lock()
	g.times[g.next] = d
	g.next = (g.next + 1) % responseWindow
	if g.timesN < responseWindow {
		g.timesN++
	}
	g.timesMu.Unlock()
}

func (g *Gateway) averageResponse() time.Duration {
	g.timesMu.Lock()
	defer g.timesMu.Unlock()
	if g.timesN == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range g.times[:g.timesN] {
		sum += d
	}
	return sum / time.Duration(g.timesN)
}

func (g *Gateway) logPerformance() {
	st := g.Stats()
	g.logger.Info("gateway.performance",
		slog.Int64("total_requests", st.TotalRequests),
		slog.Float64("success_rate", st.SuccessRate),
		slog.Float64("avg_response_ms", st.AvgResponseMS),
		slog.Int("pending", st.Pending))
}

// Stats is a snapshot of the gateway counters.
type Stats struct {
	TotalRequests int64   `json:"total_requests"`
	Successful    int64   `json:"successful"`
	Failed        int64   `json:"failed"`
	SuccessRate   float64 `json:"success_rate"`
	AvgResponseMS float64 `json:"avg_response_ms"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Pending       int     `json:"pending"`
}

// Stats returns the current counters. SuccessRate is a percentage of all
// requests; the average covers the last 100 successful lookups.
func (g *Gateway) Stats() Stats {
	st := Stats{
		TotalRequests: g.total.Load(),
		Successful:    g.successful.Load(),
		Failed:        g.failed.Load(),
		AvgResponseMS: float64(g.averageResponse()) / float64(time.Millisecond),
		UptimeSeconds: time.Since(g.start).Seconds(),
	}
	if st.TotalRequests > 0 {
		st.SuccessRate = float64(st.Successful) / float64(st.TotalRequests) * 100
	}
	g.mu.Lock()
	st.Pending = len(g.pending)
	g.mu.Unlock()
	return st
}

func clampSize(n int) int {
	return min(max(n, 1), iconcache.MaxIconSize)
}
