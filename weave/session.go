package weave

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmcleod/weavesync/crypto"
	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/fetcher"
	"github.com/jmcleod/weavesync/identity"
	"github.com/jmcleod/weavesync/storage"
)

// Session is a bootstrapped connection to one user's storage node. It owns
// the sync and default key bundles. Callers must call Close when done
// (e.g. defer session.Close()) to wipe the key material.
//
// A Session is safe for concurrent use.
type Session struct {
	id       string
	account  identity.Account
	password string
	node     string
	base     string
	fetcher  fetcher.Fetcher
	repo     storage.Repository
	logger   *slog.Logger

	concurrency int

	mu            sync.RWMutex
	closed        bool
	syncBundle    *crypto.KeyBundle
	defaultBundle *crypto.KeyBundle
	collections   []storage.Collection
	meta          *Meta
}

// ID returns the random identifier attached to this session's log lines.
func (s *Session) ID() string {
	return s.id
}

// Account returns the account identity the session was opened for.
func (s *Session) Account() identity.Account {
	return s.account
}

// Node returns the storage node URL resolved during bootstrap.
func (s *Session) Node() string {
	return s.node
}

// StorageVersion returns the meta/global storage version.
func (s *Session) StorageVersion() int {
	return StorageVersion
}

// SyncID returns the global syncID from meta/global.
func (s *Session) SyncID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return ""
	}
	return s.meta.SyncID
}

// Engines returns the engine metadata sorted by name.
func (s *Session) Engines() []EngineMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return nil
	}
	return append([]EngineMeta(nil), s.meta.Engines...)
}

// Engine returns the metadata of a single engine.
func (s *Session) Engine(name string) (EngineMeta, bool) {
	for _, e := range s.Engines() {
		if e.Name == name {
			return e, true
		}
	}
	return EngineMeta{}, false
}

// Collections returns the collections known to the session, sorted by name.
func (s *Session) Collections() []storage.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]storage.Collection(nil), s.collections...)
}

// Collection returns a single collection entry.
func (s *Session) Collection(name string) (storage.Collection, bool) {
	for _, c := range s.Collections() {
		if c.Name == name {
			return c, true
		}
	}
	return storage.Collection{}, false
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close wipes the key bundles and drops cached metadata. It is safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.defaultBundle.Destroy()
	s.defaultBundle = nil
	s.meta = nil
	s.collections = nil
	s.syncBundle.Destroy()
	s.syncBundle = nil
	s.password = ""
	s.logger.Debug("session closed")
}

func (s *Session) credentials() (*fetcher.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errdefs.ErrSessionClosed
	}
	return &fetcher.Credentials{Username: s.account.Username(), Password: s.password}, nil
}

// withDefaultBundle runs fn with the default key bundle while holding the
// session open.
func (s *Session) withDefaultBundle(fn func(kb *crypto.KeyBundle) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errdefs.ErrSessionClosed
	}
	return fn(s.defaultBundle)
}

func (s *Session) setCollections(collections []storage.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: refreshing collections", errdefs.ErrSessionClosed)
	}
	s.collections = collections
	return nil
}
