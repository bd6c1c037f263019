package parser

import (
	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/syntax"
)

// FreeNames returns the identifiers the expression reads but never binds,
// in order of first appearance.
func FreeNames(e syntax.Expr) []string {
	var used []string
	seen := make(map[string]bool)
	bound := make(map[string]bool)

	syntax.Inspect(e, func(n syntax.Expr) bool {
		name, ok := n.(*syntax.Name)
		if !ok {
			return true
		}
		if name.Ctx == syntax.Store {
			bound[name.ID] = true
		} else if !seen[name.ID] {
			seen[name.ID] = true
			used = append(used, name.ID)
		}
		return true
	})

	free := used[:0]
	for _, id := range used {
		if !bound[id] {
			free = append(free, id)
		}
	}
	return free
}

// Tables returns the collections of schema the expression refers to by
// name, in schema order. A query that names none of them ranges over every
// collection.
func Tables(e syntax.Expr, schema objectql.Schema) []string {
	free := make(map[string]bool)
	for _, id := range FreeNames(e) {
		free[id] = true
	}

	var tables []string
	for _, name := range schema.Names() {
		if free[name] {
			tables = append(tables, name)
		}
	}
	if len(tables) == 0 {
		return schema.Names()
	}
	return tables
}
