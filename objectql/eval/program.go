// Package eval compiles a checked syntax tree into a reusable program and
// evaluates it against a set of bindings under a deadline.
//
// A program is a tree of closures built once per query. Evaluation state
// (deadline, recursion depth, bindings) lives in a per-call state value,
// so one program can be evaluated by any number of goroutines at once.
package eval

import (
	"context"
	"fmt"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/syntax"
)

const (
	// MaxSequenceLength caps every list, tuple, set, dict and string the
	// evaluator builds.
	MaxSequenceLength = 1_000_000
	// MaxDepth caps the nesting of node evaluations, lambda calls
	// included.
	MaxDepth = 1000
)

// Program is a compiled query. It holds no mutable state.
type Program struct {
	root evalFunc
}

type evalFunc func(s *state, sc *scope) (any, error)

// state is everything one evaluation owns.
type state struct {
	ctx     context.Context
	globals map[string]any
	depth   int
}

func (s *state) enter() error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}
	s.depth++
	if s.depth > MaxDepth {
		s.depth--
		return errorf(ErrLimit, "maximum recursion depth exceeded")
	}
	return nil
}

func (s *state) leave() { s.depth-- }

// tick is checked once per loop step.
func (s *state) tick() error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return nil
	}
}

// scope holds names bound by comprehensions and lambda parameters.
type scope struct {
	parent *scope
	vars   map[string]any
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: make(map[string]any)}
}

func (s *state) lookup(sc *scope, name string) (any, error) {
	for cur := sc; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, nil
		}
	}
	if v, ok := s.globals[name]; ok {
		return Normalize(v), nil
	}
	if b, ok := builtins[name]; ok {
		return b, nil
	}
	return nil, errorf(ErrName, "name '%s' is not defined", name)
}

// Run evaluates the program with no deadline beyond ctx's own.
func (p *Program) Run(ctx context.Context, globals map[string]any) (any, error) {
	s := &state{ctx: ctx, globals: globals}
	return p.root(s, nil)
}

// Compile turns a syntax tree into a Program. Node shapes the evaluator
// does not support are reported as *objectql.ParseError.
func Compile(e syntax.Expr) (*Program, error) {
	root, err := compile(e)
	if err != nil {
		return nil, err
	}
	return &Program{root: root}, nil
}

func unsupportedNode(e syntax.Expr, what string) error {
	pos := e.Pos()
	return &objectql.ParseError{
		Msg:    what,
		Offset: pos.Offset + 1,
		Line:   pos.Line,
		Column: pos.Column,
	}
}

func compile(e syntax.Expr) (evalFunc, error) {
	if e == nil {
		return nil, &objectql.ParseError{Msg: "missing expression"}
	}
	fn, err := compileNode(e)
	if err != nil {
		return nil, err
	}
	return func(s *state, sc *scope) (any, error) {
		if err := s.enter(); err != nil {
			return nil, err
		}
		defer s.leave()
		return fn(s, sc)
	}, nil
}

func compileAll(exprs []syntax.Expr) ([]evalFunc, error) {
	out := make([]evalFunc, len(exprs))
	for i, e := range exprs {
		fn, err := compile(e)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

func evalAll(s *state, sc *scope, fns []evalFunc) ([]any, error) {
	out := make([]any, len(fns))
	for i, fn := range fns {
		v, err := fn(s, sc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func compileNode(e syntax.Expr) (evalFunc, error) {
	switch n := e.(type) {
	case *syntax.Name:
		if n.Ctx != syntax.Load {
			return nil, unsupportedNode(n, "cannot read a binding target")
		}
		name := n.ID
		return func(s *state, sc *scope) (any, error) {
			return s.lookup(sc, name)
		}, nil

	case *syntax.Constant:
		switch n.Value.(type) {
		case nil, bool, int64, float64, string:
		default:
			return nil, unsupportedNode(n, fmt.Sprintf("unsupported constant %T", n.Value))
		}
		value := n.Value
		return func(*state, *scope) (any, error) { return value, nil }, nil

	case *syntax.Attribute:
		x, err := compile(n.X)
		if err != nil {
			return nil, err
		}
		name := n.Attr
		return func(s *state, sc *scope) (any, error) {
			target, err := x(s, sc)
			if err != nil {
				return nil, err
			}
			return attribute(target, name)
		}, nil

	case *syntax.Subscript:
		return compileSubscript(n)

	case *syntax.Slice:
		return nil, unsupportedNode(n, "slice outside of a subscript")

	case *syntax.Call:
		return compileCall(n)

	case *syntax.BinOp:
		x, err := compile(n.X)
		if err != nil {
			return nil, err
		}
		y, err := compile(n.Y)
		if err != nil {
			return nil, err
		}
		op := n.Op
		return func(s *state, sc *scope) (any, error) {
			a, err := x(s, sc)
			if err != nil {
				return nil, err
			}
			b, err := y(s, sc)
			if err != nil {
				return nil, err
			}
			return binary(op, a, b)
		}, nil

	case *syntax.UnaryOp:
		x, err := compile(n.X)
		if err != nil {
			return nil, err
		}
		op := n.Op
		return func(s *state, sc *scope) (any, error) {
			v, err := x(s, sc)
			if err != nil {
				return nil, err
			}
			return unary(op, v)
		}, nil

	case *syntax.BoolOp:
		values, err := compileAll(n.Values)
		if err != nil {
			return nil, err
		}
		isAnd := n.Op == syntax.And
		return func(s *state, sc *scope) (any, error) {
			var v any
			for _, fn := range values {
				var err error
				if v, err = fn(s, sc); err != nil {
					return nil, err
				}
				if Truth(v) != isAnd {
					return v, nil
				}
			}
			return v, nil
		}, nil

	case *syntax.Compare:
		return compileCompare(n)

	case *syntax.IfExp:
		test, err := compile(n.Test)
		if err != nil {
			return nil, err
		}
		body, err := compile(n.Body)
		if err != nil {
			return nil, err
		}
		orElse, err := compile(n.Else)
		if err != nil {
			return nil, err
		}
		return func(s *state, sc *scope) (any, error) {
			t, err := test(s, sc)
			if err != nil {
				return nil, err
			}
			if Truth(t) {
				return body(s, sc)
			}
			return orElse(s, sc)
		}, nil

	case *syntax.Lambda:
		return compileLambda(n)

	case *syntax.List:
		elts, err := compileAll(n.Elts)
		if err != nil {
			return nil, err
		}
		return func(s *state, sc *scope) (any, error) {
			return evalAll(s, sc, elts)
		}, nil

	case *syntax.Tuple:
		elts, err := compileAll(n.Elts)
		if err != nil {
			return nil, err
		}
		return func(s *state, sc *scope) (any, error) {
			values, err := evalAll(s, sc, elts)
			if err != nil {
				return nil, err
			}
			return Tuple(values), nil
		}, nil

	case *syntax.Set:
		elts, err := compileAll(n.Elts)
		if err != nil {
			return nil, err
		}
		return func(s *state, sc *scope) (any, error) {
			values, err := evalAll(s, sc, elts)
			if err != nil {
				return nil, err
			}
			return NewSet(values...)
		}, nil

	case *syntax.Dict:
		keys, err := compileAll(n.Keys)
		if err != nil {
			return nil, err
		}
		values, err := compileAll(n.Values)
		if err != nil {
			return nil, err
		}
		return func(s *state, sc *scope) (any, error) {
			out := make(map[string]any, len(keys))
			for i := range keys {
				k, err := keys[i](s, sc)
				if err != nil {
					return nil, err
				}
				v, err := values[i](s, sc)
				if err != nil {
					return nil, err
				}
				if err := setItem(out, k, v); err != nil {
					return nil, err
				}
			}
			return out, nil
		}, nil

	case *syntax.ListComp:
		return compileComprehension(n.Generators, []syntax.Expr{n.Elt}, func(values [][]any) (any, error) {
			return values[0], nil
		})

	case *syntax.GeneratorExp:
		return compileComprehension(n.Generators, []syntax.Expr{n.Elt}, func(values [][]any) (any, error) {
			return values[0], nil
		})

	case *syntax.SetComp:
		return compileComprehension(n.Generators, []syntax.Expr{n.Elt}, func(values [][]any) (any, error) {
			return NewSet(values[0]...)
		})

	case *syntax.DictComp:
		return compileComprehension(n.Generators, []syntax.Expr{n.Key, n.Value}, func(values [][]any) (any, error) {
			out := make(map[string]any, len(values[0]))
			for i, k := range values[0] {
				if err := setItem(out, k, values[1][i]); err != nil {
					return nil, err
				}
			}
			return out, nil
		})
	}

	return nil, unsupportedNode(e, fmt.Sprintf("unsupported expression %T", e))
}

// setItem stores a dict entry. Dict keys are strings.
func setItem(m map[string]any, key, value any) error {
	k, ok := key.(string)
	if !ok {
		if _, err := hashKey(key); err != nil {
			return err
		}
		return errorf(ErrType, "dict keys must be str, not %s", TypeName(key))
	}
	if _, exists := m[k]; !exists && len(m) >= MaxSequenceLength {
		return errorf(ErrLimit, "dict larger than %d", MaxSequenceLength)
	}
	m[k] = value
	return nil
}

func compileSubscript(n *syntax.Subscript) (evalFunc, error) {
	x, err := compile(n.X)
	if err != nil {
		return nil, err
	}
	key, err := compileIndex(n.Index)
	if err != nil {
		return nil, err
	}
	return func(s *state, sc *scope) (any, error) {
		container, err := x(s, sc)
		if err != nil {
			return nil, err
		}
		k, err := key(s, sc)
		if err != nil {
			return nil, err
		}
		return index(container, k)
	}, nil
}

func compileIndex(e syntax.Expr) (evalFunc, error) {
	sl, ok := e.(*syntax.Slice)
	if !ok {
		return compile(e)
	}
	bound := func(b syntax.Expr) (evalFunc, error) {
		if b == nil {
			return func(*state, *scope) (any, error) { return nil, nil }, nil
		}
		return compile(b)
	}
	lower, err := bound(sl.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := bound(sl.Upper)
	if err != nil {
		return nil, err
	}
	step, err := bound(sl.Step)
	if err != nil {
		return nil, err
	}
	return func(s *state, sc *scope) (any, error) {
		parts, err := evalAll(s, sc, []evalFunc{lower, upper, step})
		if err != nil {
			return nil, err
		}
		return &sliceValue{lower: parts[0], upper: parts[1], step: parts[2]}, nil
	}, nil
}

func compileCompare(n *syntax.Compare) (evalFunc, error) {
	left, err := compile(n.Left)
	if err != nil {
		return nil, err
	}
	rights, err := compileAll(n.Comparators)
	if err != nil {
		return nil, err
	}
	ops := n.Ops
	return func(s *state, sc *scope) (any, error) {
		a, err := left(s, sc)
		if err != nil {
			return nil, err
		}
		for i, op := range ops {
			b, err := rights[i](s, sc)
			if err != nil {
				return nil, err
			}
			ok, err := compareOp(op, a, b)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
			a = b
		}
		return true, nil
	}, nil
}

func compareOp(op syntax.CmpOp, a, b any) (bool, error) {
	switch op {
	case syntax.Eq:
		return Equal(a, b), nil
	case syntax.NotEq:
		return !Equal(a, b), nil
	case syntax.Is:
		return Is(a, b), nil
	case syntax.IsNot:
		return !Is(a, b), nil
	case syntax.In:
		return contains(b, a)
	case syntax.NotIn:
		in, err := contains(b, a)
		return !in, err
	}

	c, err := Compare(a, b)
	if err != nil {
		return false, errorf(ErrType, "'%s' not supported between instances of '%s' and '%s'", op, TypeName(a), TypeName(b))
	}
	switch op {
	case syntax.Lt:
		return c < 0, nil
	case syntax.LtE:
		return c <= 0, nil
	case syntax.Gt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func compileCall(n *syntax.Call) (evalFunc, error) {
	fn, err := compile(n.Func)
	if err != nil {
		return nil, err
	}
	args, err := compileAll(n.Args)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(n.Keywords))
	kwValues := make([]evalFunc, len(n.Keywords))
	for i, kw := range n.Keywords {
		names[i] = kw.Name
		if kwValues[i], err = compile(kw.Value); err != nil {
			return nil, err
		}
	}

	return func(s *state, sc *scope) (any, error) {
		callee, err := fn(s, sc)
		if err != nil {
			return nil, err
		}
		argValues, err := evalAll(s, sc, args)
		if err != nil {
			return nil, err
		}
		var kwargs map[string]any
		if len(names) > 0 {
			kwargs = make(map[string]any, len(names))
			for i, name := range names {
				if kwargs[name], err = kwValues[i](s, sc); err != nil {
					return nil, err
				}
			}
		}
		return s.call(callee, argValues, kwargs)
	}, nil
}

// call invokes any callable value.
func (s *state) call(fn any, args []any, kwargs map[string]any) (any, error) {
	switch f := fn.(type) {
	case *builtin:
		return f.fn(s, args, kwargs)
	case *boundMethod:
		return f.fn(s, f.recv, args, kwargs)
	case *closure:
		return f.call(s, args, kwargs)
	case objectql.Function:
		v, err := f(args, kwargs)
		return Normalize(v), err
	}
	return nil, errorf(ErrType, "'%s' object is not callable", TypeName(fn))
}

// closure is an evaluated lambda.
type closure struct {
	params []string
	body   evalFunc
	scope  *scope
}

func compileLambda(n *syntax.Lambda) (evalFunc, error) {
	body, err := compile(n.Body)
	if err != nil {
		return nil, err
	}
	params := make([]string, len(n.Params))
	for i, p := range n.Params {
		params[i] = p.ID
	}
	return func(s *state, sc *scope) (any, error) {
		return &closure{params: params, body: body, scope: sc}, nil
	}, nil
}

func (c *closure) call(s *state, args []any, kwargs map[string]any) (any, error) {
	if len(args) > len(c.params) {
		return nil, errorf(ErrType, "<lambda>() takes %d positional arguments but %d were given", len(c.params), len(args))
	}
	sc := newScope(c.scope)
	for i, arg := range args {
		sc.vars[c.params[i]] = arg
	}
	for name, v := range kwargs {
		bound := false
		for i, p := range c.params {
			if p != name {
				continue
			}
			if i < len(args) {
				return nil, errorf(ErrType, "<lambda>() got multiple values for argument '%s'", name)
			}
			sc.vars[name] = v
			bound = true
		}
		if !bound {
			return nil, errorf(ErrType, "<lambda>() got an unexpected keyword argument '%s'", name)
		}
	}
	for _, p := range c.params {
		if _, ok := sc.vars[p]; !ok {
			return nil, errorf(ErrType, "<lambda>() missing required argument: '%s'", p)
		}
	}
	return c.body(s, sc)
}

// generator is one compiled "for target in iter if ..." clause.
type generator struct {
	bind func(sc *scope, v any) error
	iter evalFunc
	ifs  []evalFunc
}

func compileComprehension(gens []*syntax.Comprehension, elts []syntax.Expr, build func([][]any) (any, error)) (evalFunc, error) {
	compiled := make([]generator, len(gens))
	for i, g := range gens {
		bind, err := compileTarget(g.Target)
		if err != nil {
			return nil, err
		}
		iter, err := compile(g.Iter)
		if err != nil {
			return nil, err
		}
		ifs, err := compileAll(g.Ifs)
		if err != nil {
			return nil, err
		}
		compiled[i] = generator{bind: bind, iter: iter, ifs: ifs}
	}
	values, err := compileAll(elts)
	if err != nil {
		return nil, err
	}

	return func(s *state, sc *scope) (any, error) {
		inner := newScope(sc)
		results := make([][]any, len(values))
		count := 0

		var run func(level int) error
		run = func(level int) error {
			if level == len(compiled) {
				if count >= MaxSequenceLength {
					return errorf(ErrLimit, "comprehension longer than %d", MaxSequenceLength)
				}
				count++
				for i, fn := range values {
					v, err := fn(s, inner)
					if err != nil {
						return err
					}
					results[i] = append(results[i], v)
				}
				return nil
			}

			g := compiled[level]
			// the outermost iterable is evaluated in the enclosing scope
			iterScope := inner
			if level == 0 {
				iterScope = sc
			}
			source, err := g.iter(s, iterScope)
			if err != nil {
				return err
			}
			items, err := iterate(source)
			if err != nil {
				return err
			}

		next:
			for _, item := range items {
				if err := s.tick(); err != nil {
					return err
				}
				if err := g.bind(inner, item); err != nil {
					return err
				}
				for _, cond := range g.ifs {
					ok, err := cond(s, inner)
					if err != nil {
						return err
					}
					if !Truth(ok) {
						continue next
					}
				}
				if err := run(level + 1); err != nil {
					return err
				}
			}
			return nil
		}

		if err := run(0); err != nil {
			return nil, err
		}
		for i := range results {
			if results[i] == nil {
				results[i] = []any{}
			}
		}
		return build(results)
	}, nil
}

// compileTarget builds the binder for a comprehension target: a name, or
// a tuple or list of targets unpacked from the item.
func compileTarget(e syntax.Expr) (func(*scope, any) error, error) {
	switch t := e.(type) {
	case *syntax.Name:
		name := t.ID
		return func(sc *scope, v any) error {
			sc.vars[name] = v
			return nil
		}, nil
	case *syntax.Tuple:
		return compileUnpack(t.Elts)
	case *syntax.List:
		return compileUnpack(t.Elts)
	}
	return nil, unsupportedNode(e, "invalid comprehension target")
}

func compileUnpack(elts []syntax.Expr) (func(*scope, any) error, error) {
	binders := make([]func(*scope, any) error, len(elts))
	for i, elt := range elts {
		b, err := compileTarget(elt)
		if err != nil {
			return nil, err
		}
		binders[i] = b
	}
	return func(sc *scope, v any) error {
		items, err := iterate(v)
		if err != nil {
			return errorf(ErrType, "cannot unpack non-iterable %s object", TypeName(v))
		}
		if len(items) < len(binders) {
			return errorf(ErrValue, "not enough values to unpack (expected %d, got %d)", len(binders), len(items))
		}
		if len(items) > len(binders) {
			return errorf(ErrValue, "too many values to unpack (expected %d)", len(binders))
		}
		for i, b := range binders {
			if err := b(sc, items[i]); err != nil {
				return err
			}
		}
		return nil
	}, nil
}
