// Package weave bootstraps an authenticated, decrypting session against a
// Weave storage server and reads collections through it.
//
// A session is built by a strictly ordered sequence of stages:
//
//	INIT -> IDENTITY_RESOLVED -> NODE_DISCOVERED -> COLLECTIONS_LISTED
//	     -> META_LOADED -> KEYS_LOADED -> READY
//
// Each stage depends on the output of the previous one. A stage either
// commits all of its output or none of it. The first failure releases
// everything acquired so far, in reverse order, and is reported as a
// *StageError naming the stage that could not be reached.
package weave

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jmcleod/weavesync/crypto"
	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/fetcher"
	"github.com/jmcleod/weavesync/identity"
	"github.com/jmcleod/weavesync/internal/future"
	"github.com/jmcleod/weavesync/internal/util"
	"github.com/jmcleod/weavesync/internal/uuid"
	"github.com/jmcleod/weavesync/storage"
)

const (
	apiVersion     = "1.1"
	userAPIVersion = "1.0"
)

// Bootstrap drives the stage sequence one Step at a time. It is not safe for
// concurrent use.
type Bootstrap struct {
	opts      *options
	logger    *slog.Logger
	sessionID string

	provider Mozilla
	server   string

	state  Stage
	err    error
	closed bool

	// Stage outputs, in acquisition order.
	account       identity.Account
	syncBundle    *crypto.KeyBundle
	node          string
	base          string
	collections   []storage.Collection
	meta          *Meta
	defaultBundle *crypto.KeyBundle
}

// NewBootstrap returns a Bootstrap in StageInit. An unsupported or incomplete
// provider fails immediately with errdefs.ErrInvalidProvider.
func NewBootstrap(p Provider, opts ...Option) (*Bootstrap, error) {
	o := newOptions(opts)
	sessionID := uuid.New()
	b := &Bootstrap{
		opts:      o,
		sessionID: sessionID,
		logger:    o.logger.With("session_id", sessionID),
		state:     StageInit,
	}

	m, server, err := resolveProvider(p)
	if err != nil {
		b.state = StageFailed
		b.err = &StageError{Stage: StageInit, Err: err}
		return nil, b.err
	}
	b.provider = m
	b.server = server
	return b, nil
}

// State returns the current stage.
func (b *Bootstrap) State() Stage {
	return b.state
}

// Err returns the failure that moved the bootstrap to StageFailed, if any.
func (b *Bootstrap) Err() error {
	return b.err
}

// Step advances exactly one stage. On failure all acquired resources are
// released and the bootstrap becomes StageFailed. A context that is already
// done returns its error and leaves the bootstrap unchanged. Stepping a ready
// or failed bootstrap is an error.
func (b *Bootstrap) Step(ctx context.Context) error {
	if b.state == StageFailed {
		return b.err
	}
	if b.state >= StageReady {
		return fmt.Errorf("bootstrap already %s", b.state)
	}
	if b.closed {
		return errdefs.ErrSessionClosed
	}
	next := b.state + 1

	// Abandoning at a stage boundary keeps everything acquired so far; the
	// caller may retry the step or Close.
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	switch next {
	case StageIdentityResolved:
		err = b.resolveIdentity()
	case StageNodeDiscovered:
		err = b.discoverNode(ctx)
	case StageCollectionsListed:
		err = b.listCollections(ctx)
	case StageMetaLoaded:
		err = b.loadMeta(ctx)
	case StageKeysLoaded:
		err = b.loadKeys(ctx)
	case StageReady:
	}
	if err != nil {
		return b.fail(next, err)
	}

	b.state = next
	b.logger.Debug("bootstrap stage reached", "stage", next.String())
	return nil
}

// Run steps until READY and hands the acquired resources to a new Session.
func (b *Bootstrap) Run(ctx context.Context) (*Session, error) {
	for b.state < StageReady {
		if err := b.Step(ctx); err != nil {
			return nil, err
		}
	}
	if b.state != StageReady {
		return nil, b.err
	}
	return b.session(), nil
}

// Close releases everything acquired so far. Later steps fail with
// ErrSessionClosed. It is a no-op once the resources have been handed to a
// Session.
func (b *Bootstrap) Close() {
	b.teardown()
	b.closed = true
}

func (b *Bootstrap) fail(stage Stage, err error) error {
	b.teardown()
	b.state = StageFailed
	b.err = &StageError{Stage: stage, Err: err}
	b.logger.Warn("bootstrap failed", "stage", stage.String(), "kind", errdefs.Kind(err), "error", err)
	return b.err
}

// teardown releases stage outputs in reverse acquisition order.
func (b *Bootstrap) teardown() {
	if b.defaultBundle != nil {
		b.defaultBundle.Destroy()
		b.defaultBundle = nil
	}
	b.meta = nil
	b.collections = nil
	b.base = ""
	b.node = ""
	if b.syncBundle != nil {
		b.syncBundle.Destroy()
		b.syncBundle = nil
	}
}

func (b *Bootstrap) credentials() *fetcher.Credentials {
	return &fetcher.Credentials{Username: b.account.Username(), Password: b.provider.Password}
}

func (b *Bootstrap) resolveIdentity() error {
	account := identity.NewAccount(b.provider.Account)
	kb, err := crypto.DeriveKeyBundleFromFriendly(b.provider.SyncKey, account.Username())
	if err != nil {
		return err
	}
	b.account = account
	b.syncBundle = kb
	return nil
}

func (b *Bootstrap) discoverNode(ctx context.Context) error {
	nodeURL := b.server + "user/" + userAPIVersion + "/" + url.PathEscape(b.account.Username()) + "/node/weave"
	body, err := b.opts.fetcher.Fetch(ctx, nodeURL, nil)
	if err != nil {
		return err
	}

	node := strings.TrimSpace(string(body))
	if node == "" || node == "null" {
		return fmt.Errorf("%w: no storage node assigned", errdefs.ErrFetch)
	}
	u, err := url.Parse(node)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: storage node %q is not an http(s) URL", errdefs.ErrProtocol, node)
	}

	b.node = node
	b.base = joinPath(node, apiVersion, url.PathEscape(b.account.Username()))
	return nil
}

func (b *Bootstrap) listCollections(ctx context.Context) error {
	body, err := b.opts.fetcher.Fetch(ctx, b.base+"/info/collections", b.credentials())
	if err != nil {
		return err
	}
	collections, err := storage.ParseCollections(body)
	if err != nil {
		return err
	}
	b.collections = collections
	return nil
}

func (b *Bootstrap) loadMeta(ctx context.Context) error {
	rec, err := fetchRecord(ctx, b.opts.fetcher, objectURL(b.base, "meta", "global"), b.credentials())
	if err != nil {
		return err
	}
	meta, err := parseMeta([]byte(rec.Payload))
	if err != nil {
		return err
	}
	b.meta = meta
	return nil
}

func (b *Bootstrap) loadKeys(ctx context.Context) error {
	rec, err := fetchRecord(ctx, b.opts.fetcher, objectURL(b.base, "crypto", "keys"), b.credentials())
	if err != nil {
		return err
	}
	plainText, err := crypto.DecryptEnvelope([]byte(rec.Payload), b.syncBundle)
	if err != nil {
		return err
	}
	defer util.WipeBytes(plainText)

	var keys struct {
		Default []string `json:"default"`
	}
	if err := util.DecodeFirst(plainText, &keys); err != nil {
		return fmt.Errorf("%w: crypto/keys: %s", errdefs.ErrProtocol, util.DescribeJSONError(err))
	}
	if len(keys.Default) != 2 {
		return fmt.Errorf("%w: crypto/keys default must hold 2 keys, got %d", errdefs.ErrProtocol, len(keys.Default))
	}
	kb, err := crypto.KeyBundleFromBase64Pair(keys.Default[0], keys.Default[1])
	if err != nil {
		return err
	}
	b.defaultBundle = kb
	return nil
}

// session moves the stage outputs into a Session. The bootstrap keeps no
// reference to the key bundles afterwards.
func (b *Bootstrap) session() *Session {
	s := &Session{
		id:            b.sessionID,
		account:       b.account,
		password:      b.provider.Password,
		node:          b.node,
		base:          b.base,
		syncBundle:    b.syncBundle,
		defaultBundle: b.defaultBundle,
		collections:   b.collections,
		meta:          b.meta,
		fetcher:       b.opts.fetcher,
		repo:          b.opts.repo,
		concurrency:   b.opts.concurrency,
		logger:        b.logger,
	}
	b.syncBundle = nil
	b.defaultBundle = nil
	b.logger.Info("session ready", "username", s.account.Username(), "collections", len(s.collections), "engines", len(s.meta.Engines))
	return s
}

// Open runs the whole bootstrap for p and returns a ready Session. The caller
// must Close it.
func Open(ctx context.Context, p Provider, opts ...Option) (*Session, error) {
	b, err := NewBootstrap(p, opts...)
	if err != nil {
		return nil, err
	}
	s, err := b.Run(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}

// OpenAsync runs Open on its own goroutine.
func OpenAsync(ctx context.Context, p Provider, opts ...Option) *future.Future[*Session] {
	return future.Go(func() (*Session, error) {
		return Open(ctx, p, opts...)
	})
}

// joinPath joins URL parts with exactly one '/' between them, whether or not
// a part already ends or starts with one.
func joinPath(parts ...string) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			p = strings.TrimLeft(p, "/")
			if !strings.HasSuffix(sb.String(), "/") {
				sb.WriteByte('/')
			}
		}
		sb.WriteString(p)
	}
	return strings.TrimRight(sb.String(), "/")
}

func objectURL(base, collection, id string) string {
	return base + "/storage/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

func collectionURL(base, collection string) string {
	return base + "/storage/" + url.PathEscape(collection) + "?full=1"
}

func fetchRecord(ctx context.Context, f fetcher.Fetcher, rawURL string, creds *fetcher.Credentials) (*storage.Record, error) {
	body, err := f.Fetch(ctx, rawURL, creds)
	if err != nil {
		return nil, err
	}
	return storage.ParseRecord(body)
}
