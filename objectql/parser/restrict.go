package parser

import (
	"strings"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/syntax"
)

// deniedNames can never appear as identifiers in a query.
var deniedNames = map[string]bool{
	"eval":    true,
	"exec":    true,
	"input":   true,
	"getattr": true,
	"setattr": true,
	"vars":    true,
	"print":   true,
	"globals": true,
	"locals":  true,
	"delattr": true,
	"raise":   true,
}

// Placeholder is the one underscore-prefixed identifier queries may use.
const Placeholder = "_"

// Restrict walks the whole tree and returns a *objectql.ValidationError
// for the first identifier, attribute or keyword argument that reaches
// outside the sandbox. The tree is not modified.
func Restrict(e syntax.Expr) error {
	var err error
	syntax.Inspect(e, func(n syntax.Expr) bool {
		if err != nil {
			return false
		}
		err = checkNode(n)
		return err == nil
	})
	return err
}

func checkNode(n syntax.Expr) error {
	switch n := n.(type) {
	case *syntax.Name:
		if n.ID != Placeholder && (deniedNames[n.ID] || isPrivate(n.ID)) {
			return denied(n.ID, n.At)
		}
	case *syntax.Attribute:
		if isPrivate(n.Attr) {
			return denied(n.Attr, n.At)
		}
	case *syntax.Call:
		for _, kw := range n.Keywords {
			if isPrivate(kw.Name) {
				return denied(kw.Name, kw.At)
			}
		}
	}
	return nil
}

func isPrivate(name string) bool {
	return strings.HasPrefix(name, "_")
}

func denied(name string, at syntax.Position) *objectql.ValidationError {
	return &objectql.ValidationError{Name: name, Offset: at.Offset + 1}
}
