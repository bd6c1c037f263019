package parser

import (
	"github.com/dsblank/object-ql/objectql/syntax"
)

const (
	// DefaultRowName is the name the implicit record is read from by the
	// {'field'} shorthand.
	DefaultRowName = "row"
	// GuardName is the helper attribute reads are routed through when
	// guarded attributes are enabled.
	GuardName = "get_attr"
)

// Options selects the rewrites Parse applies after restriction.
type Options struct {
	// LiteralSets turns {'field'} into row['field'].
	LiteralSets bool
	// GuardedAttributes turns X.attr into get_attr(X, 'attr').
	GuardedAttributes bool
	// RowName overrides DefaultRowName.
	RowName string
}

func (o Options) rowName() string {
	if o.RowName == "" {
		return DefaultRowName
	}
	return o.RowName
}

// Transform returns a rewritten copy of e. The input tree is untouched.
func Transform(e syntax.Expr, opts Options) syntax.Expr {
	if !opts.LiteralSets && !opts.GuardedAttributes {
		return e
	}
	row := opts.rowName()

	return syntax.Rewrite(e, func(n syntax.Expr) syntax.Expr {
		switch n := n.(type) {
		case *syntax.Set:
			if field, ok := literalField(n); ok && opts.LiteralSets {
				return &syntax.Subscript{
					At:    n.At,
					X:     &syntax.Name{At: n.At, ID: row},
					Index: &syntax.Constant{At: n.At, Value: field},
				}
			}
		case *syntax.Attribute:
			if opts.GuardedAttributes {
				return &syntax.Call{
					At:   n.At,
					Func: &syntax.Name{At: n.At, ID: GuardName},
					Args: []syntax.Expr{n.X, &syntax.Constant{At: n.At, Value: n.Attr}},
				}
			}
		}
		return n
	})
}

// literalField reports the field name of a {'field'} placeholder.
func literalField(s *syntax.Set) (string, bool) {
	if len(s.Elts) != 1 {
		return "", false
	}
	c, ok := s.Elts[0].(*syntax.Constant)
	if !ok {
		return "", false
	}
	field, ok := c.Value.(string)
	return field, ok
}
