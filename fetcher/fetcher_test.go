package fetcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmcleod/weavesync/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_BasicAuth(t *testing.T) {
	var gotUser, gotPass, gotUA string
	var gotAuth bool
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotAuth = r.BasicAuth()
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte("hello"))
	})

	f := New(WithUserAgent("test-agent"))
	body, err := f.Fetch(t.Context(), srv.URL, &Credentials{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.True(t, gotAuth)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "s3cret", gotPass)
	assert.Equal(t, "test-agent", gotUA)

	_, err = f.Fetch(t.Context(), srv.URL, nil)
	require.NoError(t, err)
	assert.False(t, gotAuth)
}

func TestFetch_Status(t *testing.T) {
	tests := []struct {
		status       int
		unauthorized bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusNotFound, false},
		{http.StatusNoContent, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := New().Fetch(t.Context(), srv.URL+"/x", nil)
			require.ErrorIs(t, err, errdefs.ErrFetch)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.unauthorized, se.Unauthorized())
			assert.Equal(t, tt.unauthorized, IsUnauthorized(err))
		})
	}
}

func TestFetch_MaxBodySize(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 101))
	})

	_, err := New(WithMaxBodySize(100)).Fetch(t.Context(), srv.URL, nil)
	require.ErrorIs(t, err, errdefs.ErrAllocation)

	body, err := New(WithMaxBodySize(101)).Fetch(t.Context(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, body, 101)
}

func TestFetch_Canceled(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := New().Fetch(ctx, srv.URL, nil)
	require.ErrorIs(t, err, errdefs.ErrFetch)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := New().Fetch(t.Context(), "://nope", nil)
	require.ErrorIs(t, err, errdefs.ErrFetch)
}

func TestFetch_NeverLogsCredentials(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	target := strings.Replace(srv.URL, "http://", "http://bob:hunter2@", 1)

	_, err := New(WithLogger(logger)).Fetch(t.Context(), target, &Credentials{Username: "bob", Password: "hunter2"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.NotContains(t, buf.String(), "hunter2")
	assert.NotEmpty(t, buf.String())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://example.com/a?b=c", Redact("https://user:pw@example.com/a?b=c"))
	assert.Equal(t, "https://example.com/", Redact("https://example.com/"))
	assert.Equal(t, "<invalid url>", Redact("http://[::1"))
}

func TestFetchAsync(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})

	fut := FetchAsync(t.Context(), New(), srv.URL+"/async", nil)
	body, err := fut.Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "/async", string(body))

	errBoom := errors.New("boom")
	failing := Func(func(context.Context, string, *Credentials) ([]byte, error) { return nil, errBoom })
	_, err = FetchAsync(t.Context(), failing, "http://unused", nil).Await(t.Context())
	require.ErrorIs(t, err, errBoom)
}
