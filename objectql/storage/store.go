package storage

import (
	"context"
	"fmt"

	"github.com/dsblank/object-ql/objectql"
)

// Store is a writable record source.
type Store interface {
	objectql.Source
	objectql.Resolver
	// Put adds records to a collection. A record whose handle is already
	// stored replaces the stored one and keeps its position.
	Put(ctx context.Context, collection string, records ...*objectql.Record) error
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	MemoryBackend Backend = "memory"
	BadgerBackend Backend = "badger"
	SQLiteBackend Backend = "sqlite"
)

// Open opens a store of the given backend at path. The memory backend
// ignores path.
func Open(backend Backend, path string, schema objectql.Schema) (Store, error) {
	switch backend {
	case MemoryBackend, "":
		return NewMemory(), nil
	case BadgerBackend:
		return NewBadgerStore(path)
	case SQLiteBackend:
		return NewSQLiteStore(path, schema)
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}
