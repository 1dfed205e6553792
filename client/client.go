// Package client talks to an iconcached daemon over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/meigma/iconcache/bitmap"
	"github.com/meigma/iconcache/gateway"
)

// maxIconBytes bounds the PNG body read for one icon.
const maxIconBytes = 16 << 20

// Client issues requests against a daemon's base URL.
type Client struct {
	base    string
	client  *http.Client
	headers http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers http.Header) Option {
	return func(cl *Client) {
		if headers == nil {
			return
		}
		cl.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(cl *Client) {
		if cl.headers == nil {
			cl.headers = make(http.Header)
		}
		cl.headers.Set(key, value)
	}
}

// New creates a Client for the daemon at baseURL, e.g. "http://127.0.0.1:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	return c
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("iconcached: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("iconcached: %s: %s", http.StatusText(e.Status), e.Message)
}

// Icon fetches the icon for path at size. The daemon always answers with an
// image; placeholders are reported through the bitmap's Kind.
func (c *Client) Icon(ctx context.Context, path string, size int) (*bitmap.Bitmap, error) {
	q := url.Values{}
	q.Set("path", path)
	q.Set("size", strconv.Itoa(size))
	resp, err := c.do(ctx, http.MethodGet, "/icon?"+q.Encode(), nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	b, err := bitmap.Decode(io.LimitReader(resp.Body, maxIconBytes))
	if err != nil {
		return nil, fmt.Errorf("decode icon: %w", err)
	}
	if kind, ok := parseKind(resp.Header.Get(gateway.HeaderIconKind)); ok {
		b = b.WithKind(kind, "")
	}
	return b, nil
}

// Stats fetches gateway and cache statistics.
func (c *Client) Stats(ctx context.Context) (gateway.StatsResponse, error) {
	var st gateway.StatsResponse
	err := c.doJSON(ctx, http.MethodGet, "/stats", nil, http.StatusOK, &st)
	return st, err
}

// Clear empties the memory tier and, unless memoryOnly, the disk tier.
func (c *Client) Clear(ctx context.Context, memoryOnly bool) error {
	var cr gateway.ClearResponse
	return c.doJSON(ctx, http.MethodPost, "/cache/clear?memory_only="+strconv.FormatBool(memoryOnly), nil, http.StatusOK, &cr)
}

// Cleanup removes disk entries older than maxAgeDays and trims the tier to
// maxSizeMB. It returns the number of files removed.
func (c *Client) Cleanup(ctx context.Context, maxAgeDays, maxSizeMB int) (int, error) {
	q := url.Values{}
	q.Set("max_age_days", strconv.Itoa(maxAgeDays))
	q.Set("max_size_mb", strconv.Itoa(maxSizeMB))
	var cr gateway.CleanupResponse
	err := c.doJSON(ctx, http.MethodPost, "/cache/cleanup?"+q.Encode(), nil, http.StatusOK, &cr)
	return cr.Removed, err
}

// Preload queues background lookups on the daemon.
func (c *Client) Preload(ctx context.Context, paths []string, sizes []int) error {
	body, err := json.Marshal(gateway.PreloadRequest{Paths: paths, Sizes: sizes})
	if err != nil {
		return err
	}
	var pr gateway.PreloadResponse
	return c.doJSON(ctx, http.MethodPost, "/cache/preload", body, http.StatusAccepted, &pr)
}

// Health returns nil when the daemon answers its health check.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, ref string, body []byte, want int, dst any) error {
	resp, err := c.do(ctx, method, ref, body, want)
	if err != nil {
		return err
	}
	defer drain(resp)
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", ref, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, ref string, body []byte, want int) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+ref, rd)
	if err != nil {
		return nil, err
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != want {
		defer drain(resp)
		return nil, statusError(resp)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
	return &StatusError{Status: resp.StatusCode, Message: body.Error}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func parseKind(s string) (bitmap.Kind, bool) {
	for _, k := range []bitmap.Kind{
		bitmap.KindExtracted, bitmap.KindFileType, bitmap.KindLoading,
		bitmap.KindError, bitmap.KindDefault,
	} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
