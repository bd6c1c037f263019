package syntax

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// precedence levels of the host grammar, loosest first. Parentheses are
// written only where a child binds looser than its context requires.
type precedence int

const (
	precNamedExpr precedence = iota
	precTuple
	precYield
	precTest
	precOr
	precAnd
	precNot
	precCmp
	precExpr
	precBXor
	precBAnd
	precShift
	precArith
	precTerm
	precFactor
	precPower
	precAwait
	precAtom
)

const precBOr = precExpr

var binaryPrecedence = map[BinaryOp]precedence{
	Add:      precArith,
	Sub:      precArith,
	Mult:     precTerm,
	Div:      precTerm,
	FloorDiv: precTerm,
	Mod:      precTerm,
	Pow:      precPower,
	LShift:   precShift,
	RShift:   precShift,
	BitOr:    precBOr,
	BitXor:   precBXor,
	BitAnd:   precBAnd,
}

// Format renders a syntax tree back to query text. The output is
// deterministic and re-parses to an equivalent tree.
func Format(e Expr) string {
	f := &formatter{}
	f.expr(e, precTest)
	return f.sb.String()
}

type formatter struct {
	sb strings.Builder
}

func (f *formatter) write(s string) {
	f.sb.WriteString(s)
}

// open writes "(" when a node of precedence own appears in a context that
// requires ctx, and returns the matching closer.
func (f *formatter) open(ctx, own precedence) string {
	if ctx > own {
		f.write("(")
		return ")"
	}
	return ""
}

func (f *formatter) exprs(elts []Expr, sep string) {
	for i, e := range elts {
		if i > 0 {
			f.write(sep)
		}
		f.expr(e, precTest)
	}
}

// items writes a tuple body: a lone element keeps its trailing comma.
func (f *formatter) items(elts []Expr) {
	if len(elts) == 1 {
		f.expr(elts[0], precTest)
		f.write(",")
		return
	}
	f.exprs(elts, ", ")
}

func (f *formatter) expr(e Expr, ctx precedence) {
	switch n := e.(type) {
	case *Name:
		f.write(n.ID)

	case *Constant:
		f.write(FormatConstant(n.Value))

	case *Attribute:
		f.expr(n.X, precAtom)
		if c, ok := n.X.(*Constant); ok {
			if _, isInt := c.Value.(int64); isInt {
				f.write(" ")
			}
		}
		f.write(".")
		f.write(n.Attr)

	case *Subscript:
		f.expr(n.X, precAtom)
		f.write("[")
		if t, ok := n.Index.(*Tuple); ok && len(t.Elts) > 0 {
			f.items(t.Elts)
		} else {
			f.expr(n.Index, precTest)
		}
		f.write("]")

	case *Slice:
		if n.Lower != nil {
			f.expr(n.Lower, precTest)
		}
		f.write(":")
		if n.Upper != nil {
			f.expr(n.Upper, precTest)
		}
		if n.Step != nil {
			f.write(":")
			f.expr(n.Step, precTest)
		}

	case *Call:
		f.expr(n.Func, precAtom)
		f.write("(")
		first := true
		for _, arg := range n.Args {
			if !first {
				f.write(", ")
			}
			first = false
			f.expr(arg, precTest)
		}
		for _, kw := range n.Keywords {
			if !first {
				f.write(", ")
			}
			first = false
			f.write(kw.Name)
			f.write("=")
			f.expr(kw.Value, precTest)
		}
		f.write(")")

	case *BinOp:
		own := binaryPrecedence[n.Op]
		closer := f.open(ctx, own)
		left, right := own, own+1
		if n.Op == Pow {
			left, right = own+1, own
		}
		f.expr(n.X, left)
		f.write(" " + n.Op.String() + " ")
		f.expr(n.Y, right)
		f.write(closer)

	case *UnaryOp:
		own := precFactor
		if n.Op == Not {
			own = precNot
		}
		closer := f.open(ctx, own)
		f.write(n.Op.String())
		if own != precFactor {
			f.write(" ")
		}
		f.expr(n.X, own)
		f.write(closer)

	case *BoolOp:
		own := precAnd
		if n.Op == Or {
			own = precOr
		}
		closer := f.open(ctx, own)
		level := own
		for i, v := range n.Values {
			if i > 0 {
				f.write(" " + n.Op.String() + " ")
			}
			level++
			f.expr(v, level)
		}
		f.write(closer)

	case *Compare:
		closer := f.open(ctx, precCmp)
		f.expr(n.Left, precCmp+1)
		for i, op := range n.Ops {
			f.write(" " + op.String() + " ")
			f.expr(n.Comparators[i], precCmp+1)
		}
		f.write(closer)

	case *IfExp:
		closer := f.open(ctx, precTest)
		f.expr(n.Body, precTest+1)
		f.write(" if ")
		f.expr(n.Test, precTest+1)
		f.write(" else ")
		f.expr(n.Else, precTest)
		f.write(closer)

	case *Lambda:
		closer := f.open(ctx, precTest)
		f.write("lambda")
		for i, param := range n.Params {
			if i == 0 {
				f.write(" ")
			} else {
				f.write(", ")
			}
			f.write(param.ID)
		}
		f.write(": ")
		f.expr(n.Body, precTest)
		f.write(closer)

	case *List:
		f.write("[")
		f.exprs(n.Elts, ", ")
		f.write("]")

	case *Tuple:
		closer := ""
		if len(n.Elts) == 0 || ctx > precTuple {
			f.write("(")
			closer = ")"
		}
		f.items(n.Elts)
		f.write(closer)

	case *Set:
		if len(n.Elts) == 0 {
			f.write("{*()}")
			return
		}
		f.write("{")
		f.exprs(n.Elts, ", ")
		f.write("}")

	case *Dict:
		f.write("{")
		for i := range n.Keys {
			if i > 0 {
				f.write(", ")
			}
			f.expr(n.Keys[i], precTest)
			f.write(": ")
			f.expr(n.Values[i], precTest)
		}
		f.write("}")

	case *ListComp:
		f.write("[")
		f.expr(n.Elt, precTest)
		f.generators(n.Generators)
		f.write("]")

	case *SetComp:
		f.write("{")
		f.expr(n.Elt, precTest)
		f.generators(n.Generators)
		f.write("}")

	case *GeneratorExp:
		f.write("(")
		f.expr(n.Elt, precTest)
		f.generators(n.Generators)
		f.write(")")

	case *DictComp:
		f.write("{")
		f.expr(n.Key, precTest)
		f.write(": ")
		f.expr(n.Value, precTest)
		f.generators(n.Generators)
		f.write("}")

	default:
		f.write(fmt.Sprintf("<%T>", e))
	}
}

func (f *formatter) generators(gens []*Comprehension) {
	for _, g := range gens {
		f.write(" for ")
		f.expr(g.Target, precTuple)
		f.write(" in ")
		f.expr(g.Iter, precTest+1)
		for _, cond := range g.Ifs {
			f.write(" if ")
			f.expr(cond, precTest+1)
		}
	}
}

// FormatConstant renders a literal value the way the host language's repr
// does.
func FormatConstant(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return FormatFloat(val)
	case string:
		return QuoteString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatFloat renders f with the shortest round-tripping digits, switching
// to exponent notation outside [1e-4, 1e16).
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1e309"
	case math.IsInf(f, -1):
		return "-1e309"
	case math.IsNaN(f):
		return "nan"
	}

	if f != 0 {
		exp := int(math.Floor(math.Log10(math.Abs(f))))
		sci := strconv.FormatFloat(f, 'e', -1, 64)
		if i := strings.IndexByte(sci, 'e'); i >= 0 {
			if e, err := strconv.Atoi(sci[i+1:]); err == nil {
				exp = e
			}
		}
		if exp < -4 || exp >= 16 {
			return sci
		}
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// QuoteString quotes s with single quotes, or double quotes when s
// contains a single quote but no double quote.
func QuoteString(s string) string {
	quote := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var sb strings.Builder
	sb.WriteRune(quote)
	for _, ch := range s {
		switch {
		case ch == quote || ch == '\\':
			sb.WriteRune('\\')
			sb.WriteRune(ch)
		case ch == '\t':
			sb.WriteString(`\t`)
		case ch == '\n':
			sb.WriteString(`\n`)
		case ch == '\r':
			sb.WriteString(`\r`)
		case ch < ' ' || ch == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, ch)
		case ch < 0x80 || unicode.IsPrint(ch):
			sb.WriteRune(ch)
		case ch <= 0xff:
			fmt.Fprintf(&sb, `\x%02x`, ch)
		case ch <= 0xffff:
			fmt.Fprintf(&sb, `\u%04x`, ch)
		default:
			fmt.Fprintf(&sb, `\U%08x`, ch)
		}
	}
	sb.WriteRune(quote)
	return sb.String()
}
