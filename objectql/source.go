package objectql

import "context"

// Iterator walks the records of one collection in the source's native
// order.
type Iterator interface {
	Next() bool
	Record() any
	Err() error
	Close() error
}

// Source provides named record collections.
type Source interface {
	Scan(ctx context.Context, collection string) (Iterator, error)
}

// Resolver is implemented by sources that can resolve a handle of a given
// record kind. A missing handle is reported as a *HandleError.
type Resolver interface {
	Resolve(ctx context.Context, kind, handle string) (any, error)
}

// SliceIterator iterates over an in-memory slice.
type SliceIterator struct {
	records []any
	pos     int
}

// NewSliceIterator returns an iterator over records.
func NewSliceIterator(records []any) *SliceIterator {
	return &SliceIterator{records: records, pos: -1}
}

func (it *SliceIterator) Next() bool {
	if it.pos+1 >= len(it.records) {
		it.pos = len(it.records)
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Record() any {
	if it.pos < 0 || it.pos >= len(it.records) {
		return nil
	}
	return it.records[it.pos]
}

func (it *SliceIterator) Err() error   { return nil }
func (it *SliceIterator) Close() error { return nil }
