// Package errdefs declares the error kinds shared by every layer of the
// sync client. Callers classify failures with errors.Is against the
// sentinels below; detail is attached by wrapping with fmt.Errorf("%w: ...").
package errdefs

import "errors"

var (
	// ErrAllocation indicates resource exhaustion, such as a response body
	// larger than the configured limit.
	ErrAllocation = errors.New("allocation error")
	// ErrFormat indicates malformed sync key, base32, base64 or hex text.
	ErrFormat = errors.New("format error")
	// ErrProtocol indicates a server document with missing or mistyped fields.
	ErrProtocol = errors.New("protocol error")
	// ErrVersion indicates the server storage version is not supported.
	ErrVersion = errors.New("version error")
	// ErrHMACMismatch indicates a record failed authentication. Either the
	// sync key is wrong or the record was tampered with.
	ErrHMACMismatch = errors.New("hmac mismatch")
	// ErrFetch indicates a transport failure or a non-200 response.
	ErrFetch = errors.New("fetch error")
	// ErrInvalidProvider indicates an unsupported provider variant.
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrSessionClosed indicates the session has been closed and its key
	// material destroyed.
	ErrSessionClosed = errors.New("session closed")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrHMACMismatch, "hmac"},
	{ErrVersion, "version"},
	{ErrProtocol, "protocol"},
	{ErrFormat, "format"},
	{ErrFetch, "fetch"},
	{ErrAllocation, "allocation"},
	{ErrInvalidProvider, "provider"},
	{ErrSessionClosed, "closed"},
}

// Kind returns a short name for the error kind carried by err, or "unknown".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}
