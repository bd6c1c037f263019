package storage

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/dsblank/object-ql/objectql"
)

// Collections maps a collection name to its records in file order.
type Collections map[string][]*objectql.Record

// ParseRecords reads a record file: a mapping from collection name to a
// list of records. Each record's "handle" entry becomes its handle and
// the rest its fields.
//
//	person:
//	  - handle: h1
//	    gramps_id: I0001
//	    note_list: [n1]
func ParseRecords(data []byte) (Collections, error) {
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}

	out := make(Collections, len(raw))
	for collection, items := range raw {
		records := make([]*objectql.Record, 0, len(items))
		for i, item := range items {
			decoded := DecodeValue(item)
			if r, ok := decoded.(*objectql.Record); ok {
				// an explicit _class marker
				records = append(records, r)
				continue
			}
			fields := decoded.(map[string]any)
			handle, _ := fields["handle"].(string)
			if _, present := fields["handle"]; present && handle == "" {
				return nil, fmt.Errorf("%s record %d: handle must be a string", collection, i)
			}
			delete(fields, "handle")
			records = append(records, objectql.NewRecord(ClassName(collection), handle, fields))
		}
		out[collection] = records
	}
	return out, nil
}

// LoadRecords reads a record file from disk.
func LoadRecords(path string) (Collections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	collections, err := ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return collections, nil
}

// Names returns the collection names in sorted order.
func (c Collections) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of records.
func (c Collections) Count() int {
	n := 0
	for _, records := range c {
		n += len(records)
	}
	return n
}

// WriteTo stores every collection in s.
func (c Collections) WriteTo(ctx context.Context, s Store) error {
	for _, name := range c.Names() {
		if err := s.Put(ctx, name, c[name]...); err != nil {
			return err
		}
	}
	return nil
}
