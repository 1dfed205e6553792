package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meigma/iconcache"
)

const (
	// DefaultCleanupDays is the max_age_days used when a cleanup request omits it.
	DefaultCleanupDays = 7
	// DefaultCleanupMB is the max_size_mb used when a cleanup request omits it.
	DefaultCleanupMB = 500

	maxBodyBytes = 1 << 20
)

// Admin is the cache administration surface served by NewRouter.
// *iconcache.Service implements it.
type Admin interface {
	Clear(memoryOnly bool) error
	CleanupDays(maxAgeDays, maxSizeMB int) (int, error)
	Preload(paths []string, sizes []int)
	Stats() iconcache.Stats
}

type router struct {
	gw          *Gateway
	admin       Admin
	logger      *slog.Logger
	gatherer    prometheus.Gatherer
	cleanupDays int
	cleanupMB   int
}

// RouterOption configures NewRouter.
type RouterOption func(*router)

// WithAccessLog logs one line per request to logger.
func WithAccessLog(logger *slog.Logger) RouterOption {
	return func(r *router) {
		r.logger = logger
	}
}

// WithGatherer serves g in the Prometheus text format at /metrics.
func WithGatherer(g prometheus.Gatherer) RouterOption {
	return func(r *router) {
		r.gatherer = g
	}
}

// WithCleanupDefaults sets the limits used by cleanup requests that omit them.
func WithCleanupDefaults(maxAgeDays, maxSizeMB int) RouterOption {
	return func(r *router) {
		r.cleanupDays = maxAgeDays
		r.cleanupMB = maxSizeMB
	}
}

// NewRouter returns the HTTP surface of gw and admin:
//
//	GET  /icon/*          icon for the trailing identifier, as PNG
//	GET  /icon?path=      icon for an unencoded path, as PNG
//	GET  /stats           gateway and cache statistics
//	POST /cache/clear     ?memory_only=bool
//	POST /cache/cleanup   ?max_age_days=&max_size_mb=
//	POST /cache/preload   {"paths":[...],"sizes":[...]}
//	GET  /healthz
//	GET  /metrics         with WithGatherer
//
// Icon endpoints accept size, w, h, hint_w and hint_h query parameters.
func NewRouter(gw *Gateway, admin Admin, opts ...RouterOption) http.Handler {
	rt := &router{
		gw:          gw,
		admin:       admin,
		cleanupDays: DefaultCleanupDays,
		cleanupMB:   DefaultCleanupMB,
	}
	for _, opt := range opts {
		opt(rt)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if rt.logger != nil {
		r.Use(accessLog(rt.logger))
	}

	r.Get("/icon", rt.iconByQuery)
	r.Get("/icon/*", rt.iconByID)
	r.Get("/healthz", healthHandler)
	if rt.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
		r.Get("/stats", rt.stats)
		r.Post("/cache/clear", rt.clear)
		r.Post("/cache/cleanup", rt.cleanup)
		r.Post("/cache/preload", rt.preload)
	})
	return r
}

func (rt *router) iconByID(w http.ResponseWriter, r *http.Request) {
	rt.serveIcon(w, r, chi.URLParam(r, "*"))
}

func (rt *router) iconByQuery(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}
	rt.serveIcon(w, r, url.PathEscape(p))
}

func (rt *router) serveIcon(w http.ResponseWriter, r *http.Request, id string) {
	requested, hinted, err := parseSizes(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b := rt.gw.Request(r.Context(), id, requested, hinted)
	data, err := b.PNG()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode icon")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set(HeaderIconKind, b.Kind().String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HeaderIconKind carries the bitmap.Kind of a served icon.
const HeaderIconKind = "X-Icon-Kind"

func parseSizes(q url.Values) (Size, Size, error) {
	var requested, hinted Size
	size, err := queryInt(q, "size", 0)
	if err != nil {
		return requested, hinted, err
	}
	requested = Square(size)
	if requested.Width, err = queryInt(q, "w", requested.Width); err != nil {
		return requested, hinted, err
	}
	if requested.Height, err = queryInt(q, "h", requested.Height); err != nil {
		return requested, hinted, err
	}
	if hinted.Width, err = queryInt(q, "hint_w", 0); err != nil {
		return requested, hinted, err
	}
	if hinted.Height, err = queryInt(q, "hint_h", 0); err != nil {
		return requested, hinted, err
	}
	return requested, hinted, nil
}

func queryInt(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Gateway Stats           `json:"gateway"`
	Cache   iconcache.Stats `json:"cache"`
}

func (rt *router) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{Gateway: rt.gw.Stats(), Cache: rt.admin.Stats()})
}

// ClearResponse is the body of POST /cache/clear.
type ClearResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (rt *router) clear(w http.ResponseWriter, r *http.Request) {
	memoryOnly := false
	if v := r.URL.Query().Get("memory_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid memory_only")
			return
		}
		memoryOnly = b
	}
	if err := rt.admin.Clear(memoryOnly); err != nil {
		writeJSON(w, http.StatusInternalServerError, ClearResponse{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{OK: true})
}

// CleanupResponse is the body of POST /cache/cleanup.
type CleanupResponse struct {
	Removed int    `json:"removed"`
	Error   string `json:"error,omitempty"`
}

func (rt *router) cleanup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := queryInt(q, "max_age_days", rt.cleanupDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mb, err := queryInt(q, "max_size_mb", rt.cleanupMB)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	removed, err := rt.admin.CleanupDays(days, mb)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, CleanupResponse{Removed: removed, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, CleanupResponse{Removed: removed})
}

// PreloadRequest is the body of POST /cache/preload.
type PreloadRequest struct {
	Paths []string `json:"paths"`
	Sizes []int    `json:"sizes,omitempty"`
}

// PreloadResponse acknowledges a preload request.
type PreloadResponse struct {
	Queued int `json:"queued"`
}

func (rt *router) preload(w http.ResponseWriter, r *http.Request) {
	var req PreloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rt.admin.Preload(req.Paths, req.Sizes)
	writeJSON(w, http.StatusAccepted, PreloadResponse{Queued: len(req.Paths)})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON")
	}
	if dec.More() {
		return errors.New("multiple JSON values")
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			logger.Info("http.access",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int("bytes", rec.size),
				slog.String("remote", r.RemoteAddr))
		})
	}
}
