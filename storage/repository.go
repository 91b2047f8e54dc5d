// Package storage holds the record model of the sync protocol and the
// repository abstraction used to cache collection snapshots.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a cached record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidCollection is returned for a collection name that cannot be
// stored. Backends key records as "collection:id", so a name must be
// non-empty and free of ':'.
var ErrInvalidCollection = errors.New("invalid collection name")

// ValidateCollection reports whether collection can be used as a key prefix.
func ValidateCollection(collection string) error {
	if collection == "" || strings.Contains(collection, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	return nil
}

// BatchTx provides writes within an atomic transaction.
// The username is scoped to the batch, so methods don't require it.
type BatchTx interface {
	Put(collection string, id string, record *Record) error
	Delete(collection string, id string) error
	List(collection string) ([]string, error)
}

// Repository stores raw server records per user. Records keep their payload
// exactly as served, so an encrypted payload stays encrypted at rest.
type Repository interface {
	Put(username string, collection string, id string, record *Record) error
	Get(username string, collection string, id string) (*Record, error)
	List(username string, collection string) ([]string, error)
	Delete(username string, collection string, id string) error
	Batch(username string, fn func(tx BatchTx) error) error
}
