// Package fetcher performs the HTTP GETs the sync protocol is built on.
//
// A Fetcher issues exactly one request per call, attaches basic auth when
// credentials are given and treats every status other than 200 as a failure.
// It never retries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/internal/future"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 16 << 20
	DefaultUserAgent   = "weavesync/1.0"
)

// Credentials are sent as HTTP basic auth.
type Credentials struct {
	Username string
	Password string
}

// Fetcher retrieves the body of a single URL.
type Fetcher interface {
	// Fetch returns the full response body. creds may be nil for an
	// unauthenticated request.
	Fetch(ctx context.Context, rawURL string, creds *Credentials) ([]byte, error)
}

// Func adapts an ordinary function to the Fetcher interface.
type Func func(ctx context.Context, rawURL string, creds *Credentials) ([]byte, error)

func (f Func) Fetch(ctx context.Context, rawURL string, creds *Credentials) ([]byte, error) {
	return f(ctx, rawURL, creds)
}

// StatusError reports a response with a status other than 200 OK.
type StatusError struct {
	StatusCode int
	// URL is the request URL with any userinfo removed.
	URL string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: GET %s: %d %s", errdefs.ErrFetch, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return errdefs.ErrFetch
}

// Unauthorized reports whether the server rejected the credentials.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsUnauthorized reports whether err carries a StatusError for rejected
// credentials.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Unauthorized()
}

// HTTP is the net/http implementation of Fetcher. It is safe for concurrent
// use.
type HTTP struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
	logger      *slog.Logger
}

var _ Fetcher = (*HTTP)(nil)

// New returns an HTTP fetcher configured by opts.
func New(opts ...Option) *HTTP {
	h := &HTTP{
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		userAgent:   DefaultUserAgent,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = &http.Client{Timeout: h.timeout}
	}
	return h
}

func (h *HTTP) Fetch(ctx context.Context, rawURL string, creds *Credentials) ([]byte, error) {
	safeURL := Redact(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", errdefs.ErrFetch, safeURL, err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "application/json")
	if creds != nil {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("fetch failed", "url", safeURL, "error", err)
		return nil, fmt.Errorf("%w: GET %s: %w", errdefs.ErrFetch, safeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		h.logger.Debug("fetch rejected", "url", safeURL, "status", resp.StatusCode)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: safeURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", errdefs.ErrFetch, safeURL, err)
	}
	if int64(len(body)) > h.maxBodySize {
		return nil, fmt.Errorf("%w: response from %s exceeds %d bytes", errdefs.ErrAllocation, safeURL, h.maxBodySize)
	}

	h.logger.Debug("fetched", "url", safeURL, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}

// FetchAsync runs f.Fetch on its own goroutine. The returned future resolves
// exactly once with the body or the error.
func FetchAsync(ctx context.Context, f Fetcher, rawURL string, creds *Credentials) *future.Future[[]byte] {
	return future.Go(func() ([]byte, error) {
		return f.Fetch(ctx, rawURL, creds)
	})
}

// Redact returns rawURL with any userinfo removed. Unparseable input is
// replaced entirely.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	return u.String()
}
