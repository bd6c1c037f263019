package syntax

// Expr is a node of the query syntax tree.
type Expr interface {
	Pos() Position
	exprNode()
}

// ExprContext says whether a Name is read or bound.
type ExprContext int

const (
	Load ExprContext = iota
	Store
)

// Name is an identifier. Names bound by comprehensions and lambda
// parameters carry the Store context.
type Name struct {
	At  Position
	ID  string
	Ctx ExprContext
}

// Constant is a literal: nil, bool, int64, float64 or string.
type Constant struct {
	At    Position
	Value any
}

// Attribute is X.Attr.
type Attribute struct {
	At   Position
	X    Expr
	Attr string
}

// Subscript is X[Index]. Index may be a *Slice or a *Tuple containing
// slices.
type Subscript struct {
	At    Position
	X     Expr
	Index Expr
}

// Slice is lower:upper:step inside a subscript; any part may be nil.
type Slice struct {
	At    Position
	Lower Expr
	Upper Expr
	Step  Expr
}

// Keyword is a name=value call argument.
type Keyword struct {
	At    Position
	Name  string
	Value Expr
}

// Call is Func(Args..., Keywords...).
type Call struct {
	At       Position
	Func     Expr
	Args     []Expr
	Keywords []*Keyword
}

// BinaryOp is a binary arithmetic or bitwise operator.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mult
	Div
	FloorDiv
	Mod
	Pow
	LShift
	RShift
	BitOr
	BitXor
	BitAnd
)

var binaryOpStrings = [...]string{"+", "-", "*", "/", "//", "%", "**", "<<", ">>", "|", "^", "&"}

func (op BinaryOp) String() string { return binaryOpStrings[op] }

// BinOp is X Op Y.
type BinOp struct {
	At Position
	X  Expr
	Op BinaryOp
	Y  Expr
}

// UnaryOperator is a prefix operator.
type UnaryOperator int

const (
	Not UnaryOperator = iota
	UAdd
	USub
	Invert
)

var unaryOpStrings = [...]string{"not", "+", "-", "~"}

func (op UnaryOperator) String() string { return unaryOpStrings[op] }

// UnaryOp is Op X.
type UnaryOp struct {
	At Position
	Op UnaryOperator
	X  Expr
}

// BoolOperator is and/or.
type BoolOperator int

const (
	And BoolOperator = iota
	Or
)

func (op BoolOperator) String() string {
	if op == And {
		return "and"
	}
	return "or"
}

// BoolOp is Values[0] Op Values[1] Op ...; always at least two values.
type BoolOp struct {
	At     Position
	Op     BoolOperator
	Values []Expr
}

// CmpOp is a comparison operator.
type CmpOp int

const (
	Eq CmpOp = iota
	NotEq
	Lt
	LtE
	Gt
	GtE
	Is
	IsNot
	In
	NotIn
)

var cmpOpStrings = [...]string{"==", "!=", "<", "<=", ">", ">=", "is", "is not", "in", "not in"}

func (op CmpOp) String() string { return cmpOpStrings[op] }

// Compare is a comparison chain: Left Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	At          Position
	Left        Expr
	Ops         []CmpOp
	Comparators []Expr
}

// IfExp is Body if Test else Else.
type IfExp struct {
	At   Position
	Test Expr
	Body Expr
	Else Expr
}

// Lambda is lambda Params: Body.
type Lambda struct {
	At     Position
	Params []*Name
	Body   Expr
}

// List is [Elts...].
type List struct {
	At   Position
	Elts []Expr
}

// Tuple is (Elts...).
type Tuple struct {
	At   Position
	Elts []Expr
}

// Set is {Elts...}; never empty.
type Set struct {
	At   Position
	Elts []Expr
}

// Dict is {Keys[i]: Values[i], ...}.
type Dict struct {
	At     Position
	Keys   []Expr
	Values []Expr
}

// Comprehension is one "for Target in Iter if Ifs..." clause.
type Comprehension struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// ListComp is [Elt for ...].
type ListComp struct {
	At         Position
	Elt        Expr
	Generators []*Comprehension
}

// SetComp is {Elt for ...}.
type SetComp struct {
	At         Position
	Elt        Expr
	Generators []*Comprehension
}

// GeneratorExp is (Elt for ...).
type GeneratorExp struct {
	At         Position
	Elt        Expr
	Generators []*Comprehension
}

// DictComp is {Key: Value for ...}.
type DictComp struct {
	At         Position
	Key        Expr
	Value      Expr
	Generators []*Comprehension
}

func (n *Name) Pos() Position         { return n.At }
func (n *Constant) Pos() Position     { return n.At }
func (n *Attribute) Pos() Position    { return n.At }
func (n *Subscript) Pos() Position    { return n.At }
func (n *Slice) Pos() Position        { return n.At }
func (n *Call) Pos() Position         { return n.At }
func (n *BinOp) Pos() Position        { return n.At }
func (n *UnaryOp) Pos() Position      { return n.At }
func (n *BoolOp) Pos() Position       { return n.At }
func (n *Compare) Pos() Position      { return n.At }
func (n *IfExp) Pos() Position        { return n.At }
func (n *Lambda) Pos() Position       { return n.At }
func (n *List) Pos() Position         { return n.At }
func (n *Tuple) Pos() Position        { return n.At }
func (n *Set) Pos() Position          { return n.At }
func (n *Dict) Pos() Position         { return n.At }
func (n *ListComp) Pos() Position     { return n.At }
func (n *SetComp) Pos() Position      { return n.At }
func (n *GeneratorExp) Pos() Position { return n.At }
func (n *DictComp) Pos() Position     { return n.At }

func (*Name) exprNode()         {}
func (*Constant) exprNode()     {}
func (*Attribute) exprNode()    {}
func (*Subscript) exprNode()    {}
func (*Slice) exprNode()        {}
func (*Call) exprNode()         {}
func (*BinOp) exprNode()        {}
func (*UnaryOp) exprNode()      {}
func (*BoolOp) exprNode()       {}
func (*Compare) exprNode()      {}
func (*IfExp) exprNode()        {}
func (*Lambda) exprNode()       {}
func (*List) exprNode()         {}
func (*Tuple) exprNode()        {}
func (*Set) exprNode()          {}
func (*Dict) exprNode()         {}
func (*ListComp) exprNode()     {}
func (*SetComp) exprNode()      {}
func (*GeneratorExp) exprNode() {}
func (*DictComp) exprNode()     {}
