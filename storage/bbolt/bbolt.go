// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmcleod/weavesync/storage"
	"go.etcd.io/bbolt"
)

// ErrUserNotFound is returned when no bucket exists for a username.
var ErrUserNotFound = errors.New("user not found")

// Store implements storage.Repository backed by a BBolt database. Each
// username gets its own bucket; keys are "collection:id".
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func makeKey(collection, id string) []byte {
	return []byte(collection + ":" + id)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + ":")
}

func (s *Store) Put(username, collection, id string, record *storage.Record) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(username))
		if err != nil {
			return err
		}
		return putInBucket(b, collection, id, record)
	})
}

func (s *Store) Get(username, collection, id string) (*storage.Record, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	var record storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(username))
		if b == nil {
			return fmt.Errorf("%s/%s: %w", collection, id, storage.ErrNotFound)
		}
		data := b.Get(makeKey(collection, id))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", collection, id, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) Delete(username, collection, id string) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(username))
		if b == nil {
			return fmt.Errorf("%s/%s: %w", collection, id, storage.ErrNotFound)
		}
		return deleteInBucket(b, collection, id)
	})
}

func (s *Store) List(username, collection string) ([]string, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(username))
		if b == nil {
			return nil
		}
		ids = listBucket(b, collection)
		return nil
	})
	return ids, err
}

// ListUsers returns the usernames that have cached records.
func (s *Store) ListUsers() ([]string, error) {
	var users []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			users = append(users, string(name))
			return nil
		})
	})
	return users, err
}

// DeleteUser drops every cached record of username.
func (s *Store) DeleteUser(username string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(username)); err != nil {
			if errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("%s: %w", username, ErrUserNotFound)
			}
			return err
		}
		return nil
	})
}

func putInBucket(b *bbolt.Bucket, collection, id string, record *storage.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return b.Put(makeKey(collection, id), data)
}

func deleteInBucket(b *bbolt.Bucket, collection, id string) error {
	key := makeKey(collection, id)
	if b.Get(key) == nil {
		return fmt.Errorf("%s/%s: %w", collection, id, storage.ErrNotFound)
	}
	return b.Delete(key)
}

func listBucket(b *bbolt.Bucket, collection string) []string {
	var ids []string
	prefix := collectionPrefix(collection)
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		ids = append(ids, string(k[len(prefix):]))
	}
	return ids
}

type boltBatchTx struct {
	bucket *bbolt.Bucket
}

func (tx *boltBatchTx) Put(collection, id string, record *storage.Record) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	return putInBucket(tx.bucket, collection, id, record)
}

func (tx *boltBatchTx) Delete(collection, id string) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	return deleteInBucket(tx.bucket, collection, id)
}

func (tx *boltBatchTx) List(collection string) ([]string, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	return listBucket(tx.bucket, collection), nil
}

func (s *Store) Batch(username string, fn func(tx storage.BatchTx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(username))
		if err != nil {
			return err
		}
		return fn(&boltBatchTx{bucket: b})
	})
}
