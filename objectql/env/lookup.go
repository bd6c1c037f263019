package env

import (
	"context"

	"github.com/dsblank/object-ql/objectql"
)

// lookup returns get_<kind>. The function reads env when it is called, not
// when it is built, so the argument-less form sees whatever is bound to
// Placeholder at that moment.
func (b *Builder) lookup(ctx context.Context, kind string, env map[string]any) objectql.Function {
	return func(args []any, kwargs map[string]any) (any, error) {
		var arg any
		if len(args) > 0 {
			arg = args[0]
		} else if v, ok := kwargs["obj"]; ok {
			arg = v
		}
		if arg == nil {
			arg = env[Placeholder]
		}

		handle, ok := HandleOf(arg)
		if !ok {
			return nil, nil
		}
		record, err := b.Resolver.Resolve(ctx, kind, handle)
		if err != nil {
			return nil, err
		}
		if b.Mapper != nil {
			record = b.Mapper(record)
		}
		return record, nil
	}
}

// HandleOf extracts the handle a lookup argument refers to: a string is a
// handle itself; a mapping supplies its "handle" or "ref" entry; an object
// its ref or handle attribute.
func HandleOf(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case map[string]any:
		for _, key := range []string{"handle", "ref"} {
			if h, ok := x[key].(string); ok {
				return h, true
			}
		}
	case objectql.Object:
		for _, name := range []string{"ref", "handle"} {
			if h, ok := x.Attr(name); ok {
				if s, ok := h.(string); ok {
					return s, true
				}
			}
		}
	}
	return "", false
}
