package query

import (
	"time"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/annotations"
	"github.com/dsblank/object-ql/objectql/eval"
	"github.com/dsblank/object-ql/objectql/parser"
)

// Options configures a Query. Start from one of the variant constructors
// and set the fields that differ.
type Options struct {
	// Parser selects the rewrites applied after restriction.
	Parser parser.Options

	// Names the record is bound under, besides the "_" placeholder.
	Names []string
	// BindKind also binds the record under its lower-cased kind.
	BindKind bool
	// Mapper converts the record and every lookup result before binding.
	Mapper objectql.Mapper

	// Schema lists the collections and lookup kinds.
	Schema objectql.Schema
	// Source is needed by Iterate and Apply. When it implements
	// objectql.Resolver the get_<kind> lookups are bound as well.
	Source objectql.Source
	// Resolver overrides the resolver taken from Source.
	Resolver objectql.Resolver

	// Timeout bounds each evaluation. Zero means eval.DefaultTimeout.
	Timeout time.Duration
	// Extras are added to every environment last.
	Extras map[string]any
	// Handler receives annotation events. Nil disables them.
	Handler annotations.Handler
}

// ObjectOptions evaluates queries against records as they are: attributes
// are read directly and the record is bound under its kind and as obj.
func ObjectOptions() Options {
	return Options{
		Names:    []string{"obj"},
		BindKind: true,
		Schema:   objectql.DefaultSchema,
		Timeout:  eval.DefaultTimeout,
	}
}

// RowOptions evaluates queries against the mapping form of a record. The
// {'field'} shorthand reads row['field'] and attribute reads are guarded.
func RowOptions() Options {
	return Options{
		Parser: parser.Options{
			LiteralSets:       true,
			GuardedAttributes: true,
			RowName:           parser.DefaultRowName,
		},
		Names:   []string{parser.DefaultRowName},
		Mapper:  objectql.ToMapping,
		Schema:  objectql.DefaultSchema,
		Timeout: eval.DefaultTimeout,
	}
}

// PythonOptions evaluates queries against records as they are, with
// guarded attribute reads so a missing attribute reads as NotFound rather
// than failing the record.
func PythonOptions() Options {
	return Options{
		Parser:   parser.Options{GuardedAttributes: true},
		Names:    []string{"obj"},
		BindKind: true,
		Schema:   objectql.DefaultSchema,
		Timeout:  eval.DefaultTimeout,
	}
}

// WithSource returns a copy of o reading from src.
func (o Options) WithSource(src objectql.Source) Options {
	o.Source = src
	return o
}

func (o Options) resolver() objectql.Resolver {
	if o.Resolver != nil {
		return o.Resolver
	}
	if r, ok := o.Source.(objectql.Resolver); ok {
		return r
	}
	return nil
}
