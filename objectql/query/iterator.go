package query

import (
	"context"
	"fmt"
	"time"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/annotations"
)

// Result pairs a record with its outcome.
type Result struct {
	Record any
	Outcome
}

// walker scans the query's collections one after the other, opening each
// only when the previous one is exhausted.
type walker struct {
	q     *Query
	ctx   context.Context
	start time.Time

	table     int
	cur       objectql.Iterator
	scanStart time.Time
	scanned   int

	result Result
	err    error
	done   bool

	records, matched, failed int
}

func (w *walker) next() bool {
	if w.done {
		return false
	}
	for {
		if err := w.ctx.Err(); err != nil {
			return w.finish(err)
		}
		if w.cur == nil {
			if w.table >= len(w.q.tables) {
				return w.finish(nil)
			}
			name := w.q.tables[w.table]
			w.table++
			it, err := w.q.opts.Source.Scan(w.ctx, name)
			if err != nil {
				return w.finish(fmt.Errorf("scan %s: %w", name, err))
			}
			w.cur, w.scanStart, w.scanned = it, time.Now(), 0
		}

		if w.cur.Next() {
			record := w.cur.Record()
			out := w.q.MatchContext(w.ctx, record)
			w.records++
			w.scanned++
			if out.Matched {
				w.matched++
			}
			if out.Err != nil {
				w.failed++
			}
			w.result = Result{Record: record, Outcome: out}
			return true
		}

		err := w.cur.Err()
		if cerr := w.cur.Close(); err == nil {
			err = cerr
		}
		w.cur = nil
		if err != nil {
			return w.finish(fmt.Errorf("scan %s: %w", w.q.tables[w.table-1], err))
		}
		if c := w.q.collector; c.Enabled() {
			c.AddTiming(annotations.CollectionScanned, w.scanStart, map[string]any{
				"collection":    w.q.tables[w.table-1],
				"records.count": w.scanned,
			})
		}
	}
}

func (w *walker) finish(err error) bool {
	w.done = true
	w.err = err
	if w.cur != nil {
		w.cur.Close()
		w.cur = nil
	}
	c := w.q.collector
	if !c.Enabled() {
		return false
	}
	if err != nil {
		c.AddTiming(annotations.ErrorBackend, w.start, map[string]any{"error": err})
	}
	c.AddTiming(annotations.IterateComplete, w.start, map[string]any{
		"records.count": w.records,
		"matched.count": w.matched,
		"failed.count":  w.failed,
	})
	return false
}

func (w *walker) close() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.cur != nil {
		err := w.cur.Close()
		w.cur = nil
		return err
	}
	return nil
}

// Iterator yields the matching records of a traversal.
type Iterator struct {
	w *walker
}

// Next advances to the next matching record.
func (it *Iterator) Next() bool {
	for it.w.next() {
		if it.w.result.Matched {
			return true
		}
	}
	return false
}

// Record returns the current record.
func (it *Iterator) Record() any { return it.w.result.Record }

// Err returns the error that stopped the traversal, if any. Errors of
// individual evaluations are not reported here.
func (it *Iterator) Err() error { return it.w.err }

// Close releases the underlying collection iterator.
func (it *Iterator) Close() error { return it.w.close() }

// All drains the iterator.
func (it *Iterator) All() ([]any, error) {
	defer it.Close()
	var records []any
	for it.Next() {
		records = append(records, it.Record())
	}
	return records, it.Err()
}

// ResultIterator yields one Result per record of a traversal.
type ResultIterator struct {
	w *walker
}

// Next advances to the next record.
func (it *ResultIterator) Next() bool { return it.w.next() }

// Result returns the current record and its outcome.
func (it *ResultIterator) Result() Result { return it.w.result }

// Err returns the error that stopped the traversal, if any.
func (it *ResultIterator) Err() error { return it.w.err }

// Close releases the underlying collection iterator.
func (it *ResultIterator) Close() error { return it.w.close() }

// All drains the iterator.
func (it *ResultIterator) All() ([]Result, error) {
	defer it.Close()
	var results []Result
	for it.Next() {
		results = append(results, it.Result())
	}
	return results, it.Err()
}
