package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/internal/util"
)

// Record is a storage object as the server returns it. Payload is the
// verbatim payload text, normally an encrypted envelope.
type Record struct {
	ID        string  `json:"id"`
	Payload   string  `json:"payload"`
	Modified  float64 `json:"modified"`
	SortIndex int64   `json:"sortindex,omitempty"`
	TTL       int64   `json:"ttl,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// ParseRecord decodes a single storage object. payload is required and must
// be a string; the other members are optional but must have the right type.
func ParseRecord(b []byte) (*Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("%w: storage object: %s", errdefs.ErrProtocol, util.DescribeJSONError(err))
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: storage object is null", errdefs.ErrProtocol)
	}
	return recordFromFields(fields)
}

// ParseRecords decodes the array returned by a full collection fetch.
func ParseRecords(b []byte) ([]*Record, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("%w: collection: %s", errdefs.ErrProtocol, util.DescribeJSONError(err))
	}
	records := make([]*Record, 0, len(items))
	for i, fields := range items {
		if fields == nil {
			return nil, fmt.Errorf("%w: collection member %d is null", errdefs.ErrProtocol, i)
		}
		rec, err := recordFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordFromFields(fields map[string]json.RawMessage) (*Record, error) {
	var rec Record
	raw, ok := fields["payload"]
	if !ok || isNull(raw) {
		return nil, fmt.Errorf("%w: storage object has no payload", errdefs.ErrProtocol)
	}
	if err := json.Unmarshal(raw, &rec.Payload); err != nil {
		return nil, fieldError("payload", err)
	}

	optional := []struct {
		name string
		dst  any
	}{
		{"id", &rec.ID},
		{"modified", &rec.Modified},
		{"sortindex", &rec.SortIndex},
		{"ttl", &rec.TTL},
	}
	for _, f := range optional {
		raw, ok := fields[f.name]
		if !ok || isNull(raw) {
			continue
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return nil, fieldError(f.name, err)
		}
	}
	return &rec, nil
}

func fieldError(name string, err error) error {
	return fmt.Errorf("%w: storage object field %q: %s", errdefs.ErrProtocol, name, util.DescribeJSONError(err))
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Collection is one entry of info/collections.
type Collection struct {
	Name     string
	Modified float64
}

// Time returns the last-modified timestamp as a time.Time.
func (c Collection) Time() time.Time {
	return timestamp(c.Modified)
}

// ParseCollections decodes info/collections, an object mapping collection
// names to last-modified timestamps. An empty object is rejected. The result
// is sorted by name.
func ParseCollections(b []byte) ([]Collection, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: info/collections: %s", errdefs.ErrProtocol, util.DescribeJSONError(err))
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: info/collections is empty", errdefs.ErrProtocol)
	}

	collections := make([]Collection, 0, len(m))
	for name, raw := range m {
		var modified float64
		if isNull(raw) {
			return nil, fmt.Errorf("%w: collection %q has no timestamp", errdefs.ErrProtocol, name)
		}
		if err := json.Unmarshal(raw, &modified); err != nil {
			return nil, fmt.Errorf("%w: collection %q: %s", errdefs.ErrProtocol, name, util.DescribeJSONError(err))
		}
		collections = append(collections, Collection{Name: name, Modified: modified})
	}
	sort.Slice(collections, func(i, j int) bool { return collections[i].Name < collections[j].Name })
	return collections, nil
}

// Object is a storage object with its payload recovered. Payload holds the
// decrypted bytes including any trailing block padding, or the raw payload
// text when the object was fetched without decryption.
type Object struct {
	ID        string
	Payload   []byte
	Modified  float64
	SortIndex int64
	TTL       int64
}

// Time returns the last-modified timestamp as a time.Time.
func (o *Object) Time() time.Time {
	return timestamp(o.Modified)
}

// Plaintext returns the payload with PKCS#7 padding removed when present.
func (o *Object) Plaintext() []byte {
	return util.UnpadPKCS7(o.Payload)
}

// Decode unmarshals the first JSON value of the payload into v. Anything
// after that value is ignored.
func (o *Object) Decode(v any) error {
	if err := util.DecodeFirst(o.Payload, v); err != nil {
		return fmt.Errorf("%w: payload of %q: %s", errdefs.ErrProtocol, o.ID, util.DescribeJSONError(err))
	}
	return nil
}

func timestamp(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
