package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/dsblank/object-ql/objectql"
)

// Key layout. Records are keyed by collection and insertion sequence so
// a prefix scan returns them in the order they were first stored.
//
//	r/<collection>/<seq>     -> encoded record
//	h/<collection>/<handle>  -> seq
//	n/<collection>           -> next seq
const (
	recordPrefix = 'r'
	handlePrefix = 'h'
	seqPrefix    = 'n'
	separator    = 0
)

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a BadgerDB store at path. An empty path opens an
// in-memory database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logs

	opts.DetectConflicts = false  // single writer
	opts.ValueThreshold = 1 << 10 // 1KB - store small records in LSM tree

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func collectionKey(prefix byte, collection string, extra int) []byte {
	key := make([]byte, 0, 2+len(collection)+extra)
	key = append(key, prefix, separator)
	return append(key, collection...)
}

func recordKey(collection string, seq uint64) []byte {
	key := collectionKey(recordPrefix, collection, 9)
	key = append(key, separator)
	return binary.BigEndian.AppendUint64(key, seq)
}

func recordScanPrefix(collection string) []byte {
	return append(collectionKey(recordPrefix, collection, 1), separator)
}

func handleIndexKey(collection, handle string) []byte {
	key := collectionKey(handlePrefix, collection, 1+len(handle))
	key = append(key, separator)
	return append(key, handle...)
}

func seqKey(collection string) []byte {
	return collectionKey(seqPrefix, collection, 0)
}

// readSeq reads a stored sequence number. found is false when key is
// absent.
func readSeq(txn *badger.Txn, key []byte) (seq uint64, found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence under %q", key)
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err == nil, err
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, collection string, records ...*objectql.Record) error {
	return s.db.Update(func(txn *badger.Txn) error {
		next, _, err := readSeq(txn, seqKey(collection))
		if err != nil {
			return err
		}

		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := EncodeRecord(r)
			if err != nil {
				return err
			}

			seq, found := next, false
			if r.Handle != "" {
				if seq, found, err = readSeq(txn, handleIndexKey(collection, r.Handle)); err != nil {
					return err
				}
				if !found {
					seq = next
				}
			}
			if !found {
				next++
			}

			if err := txn.Set(recordKey(collection, seq), value); err != nil {
				return fmt.Errorf("failed to write %s %q: %w", collection, r.Handle, err)
			}
			if r.Handle != "" && !found {
				if err := txn.Set(handleIndexKey(collection, r.Handle), binary.BigEndian.AppendUint64(nil, seq)); err != nil {
					return fmt.Errorf("failed to index %s %q: %w", collection, r.Handle, err)
				}
			}
		}
		return txn.Set(seqKey(collection), binary.BigEndian.AppendUint64(nil, next))
	})
}

// Scan implements objectql.Source.
func (s *BadgerStore) Scan(ctx context.Context, collection string) (objectql.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := s.db.NewTransaction(false)

	prefix := recordScanPrefix(collection)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchSize = 100

	return &BadgerIterator{
		txn:    txn,
		it:     txn.NewIterator(opts),
		prefix: prefix,
	}, nil
}

// Resolve implements objectql.Resolver.
func (s *BadgerStore) Resolve(_ context.Context, kind, handle string) (any, error) {
	var result *objectql.Record
	err := s.db.View(func(txn *badger.Txn) error {
		seq, found, err := readSeq(txn, handleIndexKey(kind, handle))
		if err != nil {
			return err
		}
		if !found {
			return &objectql.HandleError{Kind: kind, Handle: handle}
		}
		item, err := txn.Get(recordKey(kind, seq))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			result, err = DecodeRecord(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// BadgerIterator walks one collection of a BadgerStore inside a read-only
// transaction.
type BadgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
	closed  bool
	record  *objectql.Record
	err     error
}

// Next advances the iterator
func (i *BadgerIterator) Next() bool {
	if i.err != nil {
		return false
	}
	if !i.started {
		i.it.Seek(i.prefix)
		i.started = true
	} else {
		i.it.Next()
	}
	if !i.it.ValidForPrefix(i.prefix) {
		i.record = nil
		return false
	}

	i.err = i.it.Item().Value(func(val []byte) error {
		r, err := DecodeRecord(val)
		i.record = r
		return err
	})
	return i.err == nil
}

// Record returns the current record
func (i *BadgerIterator) Record() any {
	if i.record == nil {
		return nil
	}
	return i.record
}

func (i *BadgerIterator) Err() error { return i.err }

// Close closes the iterator
func (i *BadgerIterator) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.it.Close()
	i.txn.Discard()
	return nil
}
