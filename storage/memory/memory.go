// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/jmcleod/weavesync/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for tests and for a cache that only lives as long as the process.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string]*storage.Record
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string]*storage.Record)}
}

func makeKey(collection, id string) string {
	return collection + ":" + id
}

func (r *Repository) Put(username, collection, id string, record *storage.Record) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putLocked(username, collection, id, record)
}

func (r *Repository) putLocked(username, collection, id string, record *storage.Record) error {
	if _, ok := r.data[username]; !ok {
		r.data[username] = make(map[string]*storage.Record)
	}
	r.data[username][makeKey(collection, id)] = record.Clone()
	return nil
}

func (r *Repository) Get(username, collection, id string) (*storage.Record, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[username][makeKey(collection, id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *Repository) List(username, collection string) ([]string, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked(username, collection), nil
}

func (r *Repository) listLocked(username, collection string) []string {
	var ids []string
	prefix := collection + ":"
	for k := range r.data[username] {
		if id, ok := strings.CutPrefix(k, prefix); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Repository) Delete(username, collection, id string) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(username, collection, id)
}

func (r *Repository) deleteLocked(username, collection, id string) error {
	k := makeKey(collection, id)
	userData, ok := r.data[username]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := userData[k]; !ok {
		return storage.ErrNotFound
	}
	delete(userData, k)
	return nil
}

// Batch executes fn within a batch transaction. On error, all writes are rolled back.
func (r *Repository) Batch(username string, fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.snapshotUser(username)

	tx := &memoryBatchTx{repo: r, username: username}
	if err := fn(tx); err != nil {
		r.restoreUser(username, snapshot)
		return err
	}
	return nil
}

func (r *Repository) snapshotUser(username string) map[string]*storage.Record {
	original, ok := r.data[username]
	if !ok {
		return nil
	}
	cp := make(map[string]*storage.Record, len(original))
	for k, v := range original {
		cp[k] = v.Clone()
	}
	return cp
}

func (r *Repository) restoreUser(username string, snapshot map[string]*storage.Record) {
	if snapshot == nil {
		delete(r.data, username)
	} else {
		r.data[username] = snapshot
	}
}

type memoryBatchTx struct {
	repo     *Repository
	username string
}

func (tx *memoryBatchTx) Put(collection, id string, record *storage.Record) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	return tx.repo.putLocked(tx.username, collection, id, record)
}

func (tx *memoryBatchTx) Delete(collection, id string) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	return tx.repo.deleteLocked(tx.username, collection, id)
}

func (tx *memoryBatchTx) List(collection string) ([]string, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	return tx.repo.listLocked(tx.username, collection), nil
}
