package weave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/jmcleod/weavesync/crypto"
	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/storage"
)

// FetchObject retrieves collection/id and decrypts its payload with the
// default key bundle. With Raw the payload is returned as served.
func (s *Session) FetchObject(ctx context.Context, collection, id string, opts ...FetchOption) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := validateName(id, "object ID"); err != nil {
		return nil, err
	}
	creds, err := s.credentials()
	if err != nil {
		return nil, err
	}

	rec, err := fetchRecord(ctx, s.fetcher, objectURL(s.base, collection, id), creds)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
	}
	obj, err := s.open(rec, newFetchOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
	}
	return obj, nil
}

// FetchCollection retrieves every object of collection in one request and
// decrypts them. The result is a single point-in-time snapshot.
//
// With a repository configured, the raw snapshot is cached together with the
// collection's last-modified time from info/collections and served from the
// cache while that time is unchanged.
func (s *Session) FetchCollection(ctx context.Context, collection string, opts ...FetchOption) ([]*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	creds, err := s.credentials()
	if err != nil {
		return nil, err
	}
	o := newFetchOptions(opts)

	username := s.account.Username()
	info, known := s.Collection(collection)
	if s.repo != nil && known {
		snap, err := storage.LoadSnapshot(s.repo, username, collection)
		switch {
		case err == nil && snap.Modified == info.Modified:
			s.logger.Debug("collection served from cache", "collection", collection, "objects", len(snap.Records))
			return s.openAll(collection, snap.Records, o)
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			s.logger.Warn("reading collection cache", "collection", collection, "error", err)
		}
	}

	body, err := s.fetcher.Fetch(ctx, collectionURL(s.base, collection), creds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", collection, err)
	}
	records, err := storage.ParseRecords(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", collection, err)
	}
	objects, err := s.openAll(collection, records, o)
	if err != nil {
		return nil, err
	}

	if s.repo != nil && known {
		s.saveSnapshot(username, &storage.Snapshot{Collection: collection, Modified: info.Modified, Records: records})
	}
	return objects, nil
}

// saveSnapshot caches snap unless its records cannot be keyed one to one.
// Failures only cost a later refetch.
func (s *Session) saveSnapshot(username string, snap *storage.Snapshot) {
	if _, err := storage.SnapshotIDs(snap.Records); err != nil {
		s.logger.Debug("collection not cached", "collection", snap.Collection, "error", err)
		return
	}
	if err := storage.SaveSnapshot(s.repo, username, snap); err != nil {
		s.logger.Warn("writing collection cache", "collection", snap.Collection, "error", err)
	}
}

// FetchObjects retrieves several objects of one collection concurrently.
// Results are in the order of ids. The first failure cancels the remaining
// requests and is returned.
func (s *Session) FetchObjects(ctx context.Context, collection string, ids []string, opts ...FetchOption) ([]*storage.Object, error) {
	objects := make([]*storage.Object, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			obj, err := s.FetchObject(gctx, collection, id, opts...)
			if err != nil {
				return err
			}
			objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return objects, nil
}

// RefreshCollections re-reads info/collections and replaces the session's
// collection set. The old set is kept if the request fails.
func (s *Session) RefreshCollections(ctx context.Context) ([]storage.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	creds, err := s.credentials()
	if err != nil {
		return nil, err
	}
	body, err := s.fetcher.Fetch(ctx, s.base+"/info/collections", creds)
	if err != nil {
		return nil, err
	}
	collections, err := storage.ParseCollections(body)
	if err != nil {
		return nil, err
	}
	if err := s.setCollections(collections); err != nil {
		return nil, err
	}
	return append([]storage.Collection(nil), collections...), nil
}

func (s *Session) openAll(collection string, records []*storage.Record, o fetchOptions) ([]*storage.Object, error) {
	objects := make([]*storage.Object, 0, len(records))
	for _, rec := range records {
		obj, err := s.open(rec, o)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, rec.ID, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// open turns a raw record into an Object, verifying and decrypting the
// payload unless o.raw is set.
func (s *Session) open(rec *storage.Record, o fetchOptions) (*storage.Object, error) {
	obj := &storage.Object{
		ID:        rec.ID,
		Modified:  rec.Modified,
		SortIndex: rec.SortIndex,
		TTL:       rec.TTL,
	}
	if o.raw {
		if s.Closed() {
			return nil, errdefs.ErrSessionClosed
		}
		obj.Payload = []byte(rec.Payload)
		return obj, nil
	}

	err := s.withDefaultBundle(func(kb *crypto.KeyBundle) error {
		plainText, err := crypto.DecryptEnvelope([]byte(rec.Payload), kb)
		if err != nil {
			return err
		}
		obj.Payload = plainText
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// validateCollection also rejects ':', which separates collection and id in
// cache keys.
func validateCollection(name string) error {
	if err := validateName(name, "collection"); err != nil {
		return err
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w: collection %q contains a reserved character", errdefs.ErrFormat, name)
	}
	return nil
}

func validateName(name, label string) error {
	if name == "" {
		return fmt.Errorf("%w: %s must not be empty", errdefs.ErrFormat, label)
	}
	if strings.ContainsAny(name, "/?#") {
		return fmt.Errorf("%w: %s %q contains a reserved character", errdefs.ErrFormat, label, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s contains control character", errdefs.ErrFormat, label)
		}
	}
	return nil
}
