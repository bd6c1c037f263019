// Package parser turns query text into a checked syntax tree: it parses,
// rejects anything outside the sandbox and applies the configured
// rewrites. No tree leaves this package without passing Restrict.
package parser

import (
	"github.com/dsblank/object-ql/objectql/syntax"
)

// Parse parses text, restricts it and applies the rewrites selected by
// opts. Errors are *objectql.ParseError or *objectql.ValidationError.
func Parse(text string, opts Options) (syntax.Expr, error) {
	tree, err := syntax.Parse(text)
	if err != nil {
		return nil, err
	}
	if err := Restrict(tree); err != nil {
		return nil, err
	}
	return Transform(tree, opts), nil
}

// Normalize parses text the way Parse does and returns the canonical
// text of the resulting tree.
func Normalize(text string, opts Options) (string, error) {
	tree, err := Parse(text, opts)
	if err != nil {
		return "", err
	}
	return syntax.Format(tree), nil
}
