package fetcher

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures an HTTP fetcher.
type Option func(*HTTP)

// WithHTTPClient sets the client used for requests. The client's own Timeout
// takes precedence over WithTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
// Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTP) {
		h.timeout = d
	}
}

// WithMaxBodySize caps the size of a response body. Larger bodies fail with
// errdefs.ErrAllocation. Default: 16 MiB.
func WithMaxBodySize(n int64) Option {
	return func(h *HTTP) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(h *HTTP) {
		if ua != "" {
			h.userAgent = ua
		}
	}
}

// WithLogger sets the logger for request tracing. Credentials are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}
