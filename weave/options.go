package weave

import (
	"log/slog"

	"github.com/jmcleod/weavesync/fetcher"
	"github.com/jmcleod/weavesync/storage"
)

// DefaultConcurrency bounds FetchObjects when WithConcurrency is not given.
const DefaultConcurrency = 4

type options struct {
	fetcher     fetcher.Fetcher
	logger      *slog.Logger
	repo        storage.Repository
	concurrency int
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fetcher == nil {
		o.fetcher = fetcher.New(fetcher.WithLogger(o.logger))
	}
	return o
}

// Option configures Open and NewBootstrap.
type Option func(*options)

// WithFetcher sets the transport. Default: fetcher.New().
func WithFetcher(f fetcher.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRepository enables the collection snapshot cache. Only raw records,
// still sealed, are written to repo.
func WithRepository(repo storage.Repository) Option {
	return func(o *options) {
		o.repo = repo
	}
}

// WithConcurrency sets how many objects FetchObjects requests at once.
// Default: 4.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// FetchOption configures a single object or collection fetch.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	raw bool
}

// Raw returns payloads as served, without verifying or decrypting them.
func Raw() FetchOption {
	return func(o *fetchOptions) {
		o.raw = true
	}
}

func newFetchOptions(opts []FetchOption) fetchOptions {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
