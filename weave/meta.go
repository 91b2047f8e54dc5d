package weave

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/internal/util"
)

// StorageVersion is the only meta/global storage version this client speaks.
const StorageVersion = 5

// EngineMeta is one entry of the meta/global engines map.
type EngineMeta struct {
	Name    string
	Version int
	SyncID  string
}

// Meta is the decoded meta/global record.
type Meta struct {
	StorageVersion int
	SyncID         string
	// Engines is sorted by name.
	Engines []EngineMeta
}

// parseMeta decodes the cleartext meta/global payload. The storage version is
// checked before anything else is trusted.
func parseMeta(payload []byte) (*Meta, error) {
	var doc struct {
		StorageVersion json.RawMessage            `json:"storageVersion"`
		SyncID         *string                    `json:"syncID"`
		Engines        map[string]json.RawMessage `json:"engines"`
	}
	// A mistyped member still leaves the others populated, so the version
	// can be checked before the rest of the document is judged.
	decodeErr := util.DecodeFirst(payload, &doc)
	if decodeErr != nil && doc.StorageVersion == nil {
		return nil, fmt.Errorf("%w: meta/global: %s", errdefs.ErrProtocol, util.DescribeJSONError(decodeErr))
	}

	var version int
	if doc.StorageVersion == nil || json.Unmarshal(doc.StorageVersion, &version) != nil {
		return nil, fmt.Errorf("%w: meta/global storageVersion %s is not an integer", errdefs.ErrVersion, rawOrMissing(doc.StorageVersion))
	}
	if version != StorageVersion {
		return nil, fmt.Errorf("%w: server storage version %d, client supports %d", errdefs.ErrVersion, version, StorageVersion)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: meta/global: %s", errdefs.ErrProtocol, util.DescribeJSONError(decodeErr))
	}
	if doc.SyncID == nil {
		return nil, fmt.Errorf("%w: meta/global has no syncID", errdefs.ErrProtocol)
	}

	meta := &Meta{StorageVersion: version, SyncID: *doc.SyncID, Engines: make([]EngineMeta, 0, len(doc.Engines))}
	for name, raw := range doc.Engines {
		var e struct {
			Version *int    `json:"version"`
			SyncID  *string `json:"syncID"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: engine %q: %s", errdefs.ErrProtocol, name, util.DescribeJSONError(err))
		}
		if e.Version == nil || e.SyncID == nil {
			return nil, fmt.Errorf("%w: engine %q needs version and syncID", errdefs.ErrProtocol, name)
		}
		meta.Engines = append(meta.Engines, EngineMeta{Name: name, Version: *e.Version, SyncID: *e.SyncID})
	}
	sort.Slice(meta.Engines, func(i, j int) bool { return meta.Engines[i].Name < meta.Engines[j].Name })
	return meta, nil
}

func rawOrMissing(raw json.RawMessage) string {
	if raw == nil {
		return "(missing)"
	}
	return string(raw)
}
