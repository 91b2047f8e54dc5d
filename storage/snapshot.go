package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// snapshotCollection holds one stamp record per cached collection. Server
// collection names never start with an underscore.
const snapshotCollection = "_snapshot"

// ErrInvalidSnapshot is returned when a snapshot cannot be stored without
// losing records: every record needs a distinct, non-empty ID.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is a point-in-time copy of a collection as served.
type Snapshot struct {
	Collection string
	Modified   float64
	Records    []*Record
}

// SaveSnapshot replaces the cached copy of snap.Collection for username.
// The previous records of the collection are removed in the same batch.
func SaveSnapshot(repo Repository, username string, snap *Snapshot) error {
	if snap.Collection == "" || snap.Collection == snapshotCollection {
		return fmt.Errorf("invalid snapshot collection %q", snap.Collection)
	}
	if err := ValidateCollection(snap.Collection); err != nil {
		return err
	}
	ids, err := SnapshotIDs(snap.Records)
	if err != nil {
		return err
	}
	order, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	stamp := &Record{ID: snap.Collection, Payload: string(order), Modified: snap.Modified}

	return repo.Batch(username, func(tx BatchTx) error {
		existing, err := tx.List(snap.Collection)
		if err != nil {
			return err
		}
		for _, id := range existing {
			if err := tx.Delete(snap.Collection, id); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		for _, rec := range snap.Records {
			if err := tx.Put(snap.Collection, rec.ID, rec); err != nil {
				return err
			}
		}
		return tx.Put(snapshotCollection, snap.Collection, stamp)
	})
}

// SnapshotIDs returns the record IDs in order. It fails with
// ErrInvalidSnapshot when an ID is empty or repeated.
func SnapshotIDs(records []*Record) ([]string, error) {
	ids := make([]string, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: record %d has no id", ErrInvalidSnapshot, i)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidSnapshot, rec.ID)
		}
		seen[rec.ID] = struct{}{}
		ids[i] = rec.ID
	}
	return ids, nil
}

// LoadSnapshot returns the cached copy of collection for username with its
// records in the order they were saved. It returns ErrNotFound when nothing
// is cached.
func LoadSnapshot(repo Repository, username, collection string) (*Snapshot, error) {
	stamp, err := repo.Get(username, snapshotCollection, collection)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(stamp.Payload), &ids); err != nil {
		return nil, fmt.Errorf("corrupt snapshot stamp for %q: %w", collection, err)
	}

	snap := &Snapshot{Collection: collection, Modified: stamp.Modified, Records: make([]*Record, 0, len(ids))}
	for _, id := range ids {
		rec, err := repo.Get(username, collection, id)
		if err != nil {
			return nil, fmt.Errorf("snapshot of %q: %w", collection, err)
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}
