package weave

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jmcleod/weavesync/errdefs"
)

// Provider selects the sync service and carries its parameters. Mozilla is
// the only implementation.
type Provider interface {
	provider() string
}

// Mozilla is a Weave (Firefox Sync 1.1) account.
type Mozilla struct {
	// Server is the base URL of the user/registration API.
	Server string
	// Account is the account name as the user typed it.
	Account string
	// Password authenticates storage requests.
	Password string
	// SyncKey is the 16-byte sync key in friendly or canonical base32 form.
	SyncKey string
}

func (Mozilla) provider() string { return "mozilla" }

// validate checks the parameters and returns the server URL with exactly one
// trailing slash.
func (m Mozilla) validate() (string, error) {
	if m.Server == "" {
		return "", fmt.Errorf("%w: mozilla: server must not be empty", errdefs.ErrInvalidProvider)
	}
	u, err := url.Parse(m.Server)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: mozilla: server %q is not an http(s) URL", errdefs.ErrInvalidProvider, m.Server)
	}
	if m.Account == "" {
		return "", fmt.Errorf("%w: mozilla: account must not be empty", errdefs.ErrInvalidProvider)
	}
	if m.SyncKey == "" {
		return "", fmt.Errorf("%w: mozilla: sync key must not be empty", errdefs.ErrInvalidProvider)
	}
	return strings.TrimRight(m.Server, "/") + "/", nil
}

func resolveProvider(p Provider) (Mozilla, string, error) {
	switch v := p.(type) {
	case Mozilla:
		server, err := v.validate()
		return v, server, err
	case *Mozilla:
		if v == nil {
			break
		}
		server, err := v.validate()
		return *v, server, err
	}
	return Mozilla{}, "", fmt.Errorf("%w: %T", errdefs.ErrInvalidProvider, p)
}
