// Package weavetest provides an in-process Weave storage server for tests.
//
// The server answers node discovery, info/collections and storage reads for
// a single account. Records are sealed with crypto.SealEnvelope exactly as a
// real client would upload them, and every request is recorded so tests can
// assert on ordering and authentication.
package weavetest

import (
	"encoding/json"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/jmcleod/weavesync/crypto"
	"github.com/jmcleod/weavesync/identity"
	"github.com/jmcleod/weavesync/internal/util"
	"github.com/jmcleod/weavesync/internal/uuid"
	"github.com/jmcleod/weavesync/storage"
)

const (
	DefaultAccount  = "johndoe@example.com"
	DefaultPassword = "correct horse battery staple"
)

// firstTimestamp is the modified time of the first record written; each
// write advances the clock by 10ms.
const firstTimestamp = 1700000000.0

// Request is one request received by the server.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	// User is the basic-auth username, empty when none was sent.
	User string
}

type collection struct {
	modified float64
	order    []string
	records  map[string]*storage.Record
}

// Server is a fake Weave server. Its zero value is not usable; call New.
type Server struct {
	srv *httptest.Server

	account  identity.Account
	password string
	syncKey  []byte

	mu            sync.Mutex
	clock         float64
	syncBundle    *crypto.KeyBundle
	defaultBundle *crypto.KeyBundle
	node          *string
	infoOverride  *string
	collections   map[string]*collection
	failures      map[string]int
	requests      []Request
}

// New starts a server for DefaultAccount with a random sync key, a random
// default key bundle, a valid meta/global and a crypto/keys record. The
// server is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	syncKey, err := identity.NewSyncKey()
	if err != nil {
		t.Fatalf("weavetest: generating sync key: %v", err)
	}
	s := &Server{
		account:     identity.NewAccount(DefaultAccount),
		password:    DefaultPassword,
		syncKey:     syncKey,
		clock:       firstTimestamp,
		collections: make(map[string]*collection),
		failures:    make(map[string]int),
	}
	s.syncBundle, err = crypto.DeriveKeyBundle(syncKey, s.account.Username())
	if err != nil {
		t.Fatalf("weavetest: deriving sync bundle: %v", err)
	}

	enc, err := util.RandomBytes(crypto.EncryptionKeySize)
	if err != nil {
		t.Fatalf("weavetest: %v", err)
	}
	mac, err := util.RandomBytes(crypto.HMACKeySize)
	if err != nil {
		t.Fatalf("weavetest: %v", err)
	}
	if err := s.SetDefaultKeys(enc, mac); err != nil {
		t.Fatalf("weavetest: %v", err)
	}

	s.SetMetaGlobal(map[string]any{
		"storageVersion": 5,
		"syncID":         uuid.New(),
		"engines": map[string]any{
			"bookmarks": map[string]any{"version": 2, "syncID": uuid.New()},
			"history":   map[string]any{"version": 1, "syncID": uuid.New()},
		},
	})

	s.srv = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// URL is the server base URL, usable as weave.Mozilla.Server.
func (s *Server) URL() string {
	return s.srv.URL + "/"
}

// Account returns the account name the server serves.
func (s *Server) Account() string {
	return s.account.Name()
}

// Username returns the protocol username of the account.
func (s *Server) Username() string {
	return s.account.Username()
}

// Password returns the password storage requests must carry.
func (s *Server) Password() string {
	return s.password
}

// SyncKey returns the account's sync key in friendly form.
func (s *Server) SyncKey() string {
	friendly, err := identity.EncodeFriendly(s.syncKey)
	if err != nil {
		panic(err)
	}
	return friendly
}

// Close shuts the server down and wipes its key bundles.
func (s *Server) Close() {
	s.srv.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncBundle.Destroy()
	s.defaultBundle.Destroy()
}

// SetDefaultKeys replaces the default key bundle and reseals crypto/keys
// under the sync bundle. Existing records are not resealed.
func (s *Server) SetDefaultKeys(enc, mac []byte) error {
	doc := map[string]any{
		"id":         "keys",
		"collection": "crypto",
		"default":    []string{util.Base64Encode(enc), util.Base64Encode(mac)},
	}
	plainText, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	kb, err := crypto.KeyBundleFromBase64Pair(util.Base64Encode(enc), util.Base64Encode(mac))
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.defaultBundle
	s.defaultBundle = kb
	syncBundle := s.syncBundle
	s.mu.Unlock()
	old.Destroy()

	return s.putSealed("crypto", "keys", plainText, syncBundle)
}

// SetCryptoKeysPlaintext seals an arbitrary crypto/keys document under the
// sync bundle.
func (s *Server) SetCryptoKeysPlaintext(plainText []byte) error {
	s.mu.Lock()
	kb := s.syncBundle
	s.mu.Unlock()
	return s.putSealed("crypto", "keys", plainText, kb)
}

// SetMetaGlobal stores doc as the cleartext meta/global payload.
func (s *Server) SetMetaGlobal(doc any) {
	b, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	s.PutRaw("meta", "global", string(b))
}

// PutObject marshals payload to JSON, seals it under the default key bundle
// and stores it as collection/id.
func (s *Server) PutObject(collection, id string, payload any) error {
	plainText, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	kb := s.defaultBundle
	s.mu.Unlock()
	return s.putSealed(collection, id, plainText, kb)
}

// PutRaw stores payload verbatim as collection/id.
func (s *Server) PutRaw(collection, id, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(collection, &storage.Record{ID: id, Payload: payload})
}

func (s *Server) putSealed(collection, id string, plainText []byte, kb *crypto.KeyBundle) error {
	env, err := crypto.SealEnvelope(plainText, kb)
	if err != nil {
		return err
	}
	payload, err := env.Marshal()
	if err != nil {
		return err
	}
	s.PutRaw(collection, id, string(payload))
	return nil
}

func (s *Server) putLocked(name string, rec *storage.Record) {
	s.clock += 0.01
	rec.Modified = s.clock

	c, ok := s.collections[name]
	if !ok {
		c = &collection{records: make(map[string]*storage.Record)}
		s.collections[name] = c
	}
	if _, exists := c.records[rec.ID]; !exists {
		c.order = append(c.order, rec.ID)
	}
	c.records[rec.ID] = rec
	c.modified = s.clock
}

// CollectionModified returns the last-modified time of a collection.
func (s *Server) CollectionModified(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c.modified
	}
	return 0
}

// SetNode overrides the node discovery body. By default the server names
// itself as the storage node.
func (s *Server) SetNode(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.node = &body
}

// SetInfoCollections overrides the info/collections body.
func (s *Server) SetInfoCollections(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infoOverride = &body
}

// Fail makes every request to path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Requests returns the requests received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Paths returns the path of every request received so far.
func (s *Server) Paths() []string {
	reqs := s.Requests()
	paths := make([]string, len(reqs))
	for i, r := range reqs {
		paths[i] = r.Path
	}
	return paths
}

// ResetRequests forgets the recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) infoCollections() map[string]float64 {
	info := make(map[string]float64, len(s.collections))
	for name, c := range s.collections {
		info[name] = c.modified
	}
	return info
}

func (s *Server) sortedRecords(c *collection) []*storage.Record {
	recs := make([]*storage.Record, 0, len(c.order))
	for _, id := range c.order {
		recs = append(recs, c.records[id])
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].SortIndex > recs[j].SortIndex })
	return recs
}
