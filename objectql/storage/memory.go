package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/dsblank/object-ql/objectql"
)

// Memory keeps records in memory. It is safe for concurrent use. A scan
// sees the collection as it was when the scan started.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]any
	handles     map[string]map[string]int // kind -> handle -> position
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]any),
		handles:     make(map[string]map[string]int),
	}
}

// NewMemoryFrom creates an in-memory store holding collections.
func NewMemoryFrom(collections Collections) *Memory {
	m := NewMemory()
	for _, name := range collections.Names() {
		m.add(name, collections[name])
	}
	return m
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, collection string, records ...*objectql.Record) error {
	m.add(collection, records)
	return nil
}

func (m *Memory) add(collection string, records []*objectql.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.handles[collection]
	if index == nil {
		index = make(map[string]int)
		m.handles[collection] = index
	}
	current := m.collections[collection]
	copied := false
	for _, r := range records {
		if r.Handle != "" {
			if pos, ok := index[r.Handle]; ok {
				// running scans hold the old array
				if !copied {
					current = slices.Clone(current)
					copied = true
				}
				current[pos] = r
				continue
			}
			index[r.Handle] = len(current)
		}
		current = append(current, r)
	}
	m.collections[collection] = current
}

// Scan implements objectql.Source. Unknown collections are empty.
func (m *Memory) Scan(ctx context.Context, collection string) (objectql.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	records := m.collections[collection]
	m.mu.RUnlock()
	return objectql.NewSliceIterator(records[:len(records):len(records)]), nil
}

// Resolve implements objectql.Resolver.
func (m *Memory) Resolve(_ context.Context, kind, handle string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos, ok := m.handles[kind][handle]; ok {
		return m.collections[kind][pos], nil
	}
	return nil, &objectql.HandleError{Kind: kind, Handle: handle}
}

// Len returns the number of records in collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
