package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmcleod/weavesync/config"
	"github.com/jmcleod/weavesync/fetcher"
	"github.com/jmcleod/weavesync/internal/keyring"
	"github.com/jmcleod/weavesync/internal/prompt"
	boltstore "github.com/jmcleod/weavesync/storage/bbolt"
	"github.com/jmcleod/weavesync/weave"
)

// newPrompter is replaced in tests.
var newPrompter = prompt.New

// resolveSecrets fills in the password and sync key from the keyring and, on
// a terminal, from interactive prompts.
func resolveSecrets(c *config.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.HasSecrets() {
		return nil
	}

	stored, err := keyring.Load(c.Account)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
	case err != nil:
		logger.Warn("keyring unavailable", "error", err)
	default:
		if c.Password == "" {
			c.Password = stored.Password
		}
		if c.SyncKey == "" {
			c.SyncKey = stored.SyncKey
		}
	}
	if c.HasSecrets() {
		return nil
	}

	return promptSecrets(c)
}

// promptSecrets asks for whichever of password and sync key is still empty.
func promptSecrets(c *config.Config) error {
	p := newPrompter()
	var err error
	if c.Password == "" {
		if c.Password, err = p.Secret("Password: "); err != nil {
			return fmt.Errorf("%w: %s: %w", config.ErrMissing, config.KeyPassword, err)
		}
	}
	if c.SyncKey == "" {
		if c.SyncKey, err = p.Secret("Sync key: "); err != nil {
			return fmt.Errorf("%w: %s: %w", config.ErrMissing, config.KeySyncKey, err)
		}
	}
	return nil
}

func newFetcher(c *config.Config) fetcher.Fetcher {
	return fetcher.New(
		fetcher.WithTimeout(c.Timeout),
		fetcher.WithMaxBodySize(c.MaxBodySize),
		fetcher.WithLogger(logger),
	)
}

func provider(c *config.Config) weave.Mozilla {
	return weave.Mozilla{
		Server:   c.Server,
		Account:  c.Account,
		Password: c.Password,
		SyncKey:  c.SyncKey,
	}
}

func openCache(path string) (*boltstore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return boltstore.NewRepositoryFromFile(path, nil)
}

// openSession bootstraps a session from the loaded config. The returned
// function closes the session and the cache.
func openSession(ctx context.Context, withCache bool) (*weave.Session, func(), error) {
	if err := resolveSecrets(cfg); err != nil {
		return nil, nil, err
	}

	opts := []weave.Option{
		weave.WithFetcher(newFetcher(cfg)),
		weave.WithLogger(logger),
	}
	var cache *boltstore.Store
	if withCache {
		var err error
		if cache, err = openCache(cfg.CachePath); err != nil {
			return nil, nil, err
		}
		opts = append(opts, weave.WithRepository(cache))
	}

	session, err := weave.Open(ctx, provider(cfg), opts...)
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, nil, err
	}
	return session, func() {
		session.Close()
		if cache != nil {
			if err := cache.Close(); err != nil {
				logger.Warn("closing cache", "error", err)
			}
		}
	}, nil
}
