package query

import (
	"context"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/parser"
	"github.com/dsblank/object-ql/objectql/syntax"
)

// Parse checks text and returns its canonical form with the row rewrites
// applied: {'date'}.year > 2021 becomes get_attr(row['date'], 'year') > 2021.
func Parse(text string) (string, error) {
	return parser.Normalize(text, RowOptions().Parser)
}

// Match compiles text and matches it against record. src may be nil; when
// it resolves handles the lookup functions are available.
func Match(text string, record any, src objectql.Source) (bool, error) {
	q, err := New(text, ObjectOptions().WithSource(src))
	if err != nil {
		return false, err
	}
	return q.Match(record), nil
}

// Iterate compiles text and returns the records of src that match.
func Iterate(ctx context.Context, text string, src objectql.Source) (*Iterator, error) {
	q, err := New(text, ObjectOptions().WithSource(src))
	if err != nil {
		return nil, err
	}
	return q.Iterate(ctx)
}

// Apply compiles text and returns one Result per record of src.
func Apply(ctx context.Context, text string, src objectql.Source) (*ResultIterator, error) {
	q, err := New(text, ObjectOptions().WithSource(src))
	if err != nil {
		return nil, err
	}
	return q.Apply(ctx)
}

// Tables returns the collections of the default schema text ranges over.
func Tables(text string) ([]string, error) {
	tree, err := syntax.Parse(text)
	if err != nil {
		return nil, err
	}
	if err := parser.Restrict(tree); err != nil {
		return nil, err
	}
	return parser.Tables(tree, objectql.DefaultSchema), nil
}
