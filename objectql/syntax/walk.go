package syntax

// Inspect traverses the tree in depth-first order, calling f for every node
// (comprehension targets, iterables and conditions included). When f
// returns false the children of that node are skipped.
func Inspect(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	for _, child := range Children(e) {
		Inspect(child, f)
	}
}

// Children returns the direct sub-expressions of e in source order.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *Attribute:
		return []Expr{n.X}
	case *Subscript:
		return []Expr{n.X, n.Index}
	case *Slice:
		return nonNil(n.Lower, n.Upper, n.Step)
	case *Call:
		children := append([]Expr{n.Func}, n.Args...)
		for _, kw := range n.Keywords {
			children = append(children, kw.Value)
		}
		return children
	case *BinOp:
		return []Expr{n.X, n.Y}
	case *UnaryOp:
		return []Expr{n.X}
	case *BoolOp:
		return n.Values
	case *Compare:
		return append([]Expr{n.Left}, n.Comparators...)
	case *IfExp:
		return []Expr{n.Body, n.Test, n.Else}
	case *Lambda:
		children := make([]Expr, 0, len(n.Params)+1)
		for _, param := range n.Params {
			children = append(children, param)
		}
		return append(children, n.Body)
	case *List:
		return n.Elts
	case *Tuple:
		return n.Elts
	case *Set:
		return n.Elts
	case *Dict:
		children := make([]Expr, 0, 2*len(n.Keys))
		for i := range n.Keys {
			children = append(children, n.Keys[i], n.Values[i])
		}
		return children
	case *ListComp:
		return append([]Expr{n.Elt}, generatorChildren(n.Generators)...)
	case *SetComp:
		return append([]Expr{n.Elt}, generatorChildren(n.Generators)...)
	case *GeneratorExp:
		return append([]Expr{n.Elt}, generatorChildren(n.Generators)...)
	case *DictComp:
		return append([]Expr{n.Key, n.Value}, generatorChildren(n.Generators)...)
	}
	return nil
}

func generatorChildren(gens []*Comprehension) []Expr {
	var children []Expr
	for _, g := range gens {
		children = append(children, g.Target, g.Iter)
		children = append(children, g.Ifs...)
	}
	return children
}

func nonNil(exprs ...Expr) []Expr {
	var out []Expr
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Rewrite returns a copy of the tree in which every node has been replaced
// by f applied to the node with its children already rewritten. The input
// tree is left untouched.
func Rewrite(e Expr, f func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}

	rw := func(x Expr) Expr { return Rewrite(x, f) }

	var out Expr
	switch n := e.(type) {
	case *Name:
		c := *n
		out = &c
	case *Constant:
		c := *n
		out = &c
	case *Attribute:
		out = &Attribute{At: n.At, X: rw(n.X), Attr: n.Attr}
	case *Subscript:
		out = &Subscript{At: n.At, X: rw(n.X), Index: rw(n.Index)}
	case *Slice:
		out = &Slice{At: n.At, Lower: rw(n.Lower), Upper: rw(n.Upper), Step: rw(n.Step)}
	case *Call:
		call := &Call{At: n.At, Func: rw(n.Func), Args: rewriteAll(n.Args, f)}
		for _, kw := range n.Keywords {
			call.Keywords = append(call.Keywords, &Keyword{At: kw.At, Name: kw.Name, Value: rw(kw.Value)})
		}
		out = call
	case *BinOp:
		out = &BinOp{At: n.At, X: rw(n.X), Op: n.Op, Y: rw(n.Y)}
	case *UnaryOp:
		out = &UnaryOp{At: n.At, Op: n.Op, X: rw(n.X)}
	case *BoolOp:
		out = &BoolOp{At: n.At, Op: n.Op, Values: rewriteAll(n.Values, f)}
	case *Compare:
		out = &Compare{
			At:          n.At,
			Left:        rw(n.Left),
			Ops:         append([]CmpOp(nil), n.Ops...),
			Comparators: rewriteAll(n.Comparators, f),
		}
	case *IfExp:
		out = &IfExp{At: n.At, Test: rw(n.Test), Body: rw(n.Body), Else: rw(n.Else)}
	case *Lambda:
		lambda := &Lambda{At: n.At, Body: rw(n.Body)}
		for _, param := range n.Params {
			c := *param
			lambda.Params = append(lambda.Params, &c)
		}
		out = lambda
	case *List:
		out = &List{At: n.At, Elts: rewriteAll(n.Elts, f)}
	case *Tuple:
		out = &Tuple{At: n.At, Elts: rewriteAll(n.Elts, f)}
	case *Set:
		out = &Set{At: n.At, Elts: rewriteAll(n.Elts, f)}
	case *Dict:
		out = &Dict{At: n.At, Keys: rewriteAll(n.Keys, f), Values: rewriteAll(n.Values, f)}
	case *ListComp:
		out = &ListComp{At: n.At, Elt: rw(n.Elt), Generators: rewriteGenerators(n.Generators, f)}
	case *SetComp:
		out = &SetComp{At: n.At, Elt: rw(n.Elt), Generators: rewriteGenerators(n.Generators, f)}
	case *GeneratorExp:
		out = &GeneratorExp{At: n.At, Elt: rw(n.Elt), Generators: rewriteGenerators(n.Generators, f)}
	case *DictComp:
		out = &DictComp{At: n.At, Key: rw(n.Key), Value: rw(n.Value), Generators: rewriteGenerators(n.Generators, f)}
	default:
		out = e
	}
	return f(out)
}

func rewriteAll(exprs []Expr, f func(Expr) Expr) []Expr {
	if exprs == nil {
		return nil
	}
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = Rewrite(e, f)
	}
	return out
}

func rewriteGenerators(gens []*Comprehension, f func(Expr) Expr) []*Comprehension {
	out := make([]*Comprehension, len(gens))
	for i, g := range gens {
		out[i] = &Comprehension{
			Target: g.Target,
			Iter:   Rewrite(g.Iter, f),
			Ifs:    rewriteAll(g.Ifs, f),
		}
	}
	return out
}
