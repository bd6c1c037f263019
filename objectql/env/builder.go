// Package env builds the bindings a query is evaluated against: the
// registered constant groups, one lookup function per record kind, the
// guarded accessor and the record under test.
package env

import (
	"context"
	"fmt"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/eval"
)

// Placeholder is the name the record under test is always bound to. Lookup
// functions called without an argument resolve against it.
const Placeholder = "_"

// GuardName is the name of the guarded accessor.
const GuardName = "get_attr"

// Builder assembles environments. A Builder is immutable once configured
// and may be shared between goroutines.
type Builder struct {
	// Resolver backs the get_<kind> lookups. Nil means no lookups.
	Resolver objectql.Resolver
	// Schema supplies the lookup kinds.
	Schema objectql.Schema
	// Names are the fixed names the record is bound under, besides
	// Placeholder.
	Names []string
	// BindKind also binds the record under its lower-cased kind.
	BindKind bool
	// Mapper, when set, converts the record and every lookup result
	// before it is bound.
	Mapper objectql.Mapper
	// Guarded binds the guarded accessor.
	Guarded bool
	// Extras are applied last and may shadow anything above.
	Extras map[string]any
}

// Build returns a fresh environment for one evaluation of record.
func (b *Builder) Build(ctx context.Context, record any) map[string]any {
	env := make(map[string]any)
	addConstants(env)

	if b.Resolver != nil {
		for _, kind := range b.Schema.LookupKinds {
			env["get_"+kind] = b.lookup(ctx, kind, env)
		}
	}
	if b.Guarded {
		env[GuardName] = objectql.Function(getAttr)
	}

	subject := record
	if b.Mapper != nil {
		subject = b.Mapper(record)
	}
	if b.BindKind {
		env[KindOf(record)] = subject
	}
	for _, name := range b.Names {
		env[name] = subject
	}
	env[Placeholder] = subject

	for name, v := range b.Extras {
		env[name] = v
	}
	return env
}

// KindOf returns the name a record is bound under: its Kind when it has
// one, otherwise the name of its value type (list, dict, str, ...).
func KindOf(record any) string {
	if k, ok := record.(objectql.Kinded); ok {
		return k.Kind()
	}
	return eval.TypeName(eval.Normalize(record))
}

func getAttr(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 2 || len(kwargs) > 0 {
		return nil, fmt.Errorf("%w: %s() takes exactly 2 arguments", eval.ErrType, GuardName)
	}
	name, ok := args[1].(string)
	if !ok {
		return objectql.NotFound, nil
	}
	return eval.GetAttr(args[0], name), nil
}
