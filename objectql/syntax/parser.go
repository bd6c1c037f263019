package syntax

import (
	"strconv"
	"strings"

	"github.com/dsblank/object-ql/objectql"
)

// MaxNesting caps how deeply a query may nest. Bracketed and prefixed
// sub-expressions count one level each, and every operator, call,
// attribute or subscript in a left-associative chain counts one more.
const MaxNesting = 200

// Parser builds a syntax tree from query text
type Parser struct {
	lexer *Lexer
	text  string
	depth int
}

// NewParser creates a new parser for the given input
func NewParser(input string) *Parser {
	return &Parser{
		lexer: NewLexer(input),
		text:  input,
	}
}

// Parse parses a single expression. Every failure is a *objectql.ParseError.
func Parse(input string) (Expr, error) {
	return NewParser(input).Parse()
}

// Parse parses the whole input as one expression.
func (p *Parser) Parse() (Expr, error) {
	if err := p.lexer.Lex(); err != nil {
		return nil, err
	}

	if p.peek().Type == TokenEOF {
		return nil, p.errorAt(p.peek(), "empty query")
	}

	expr, err := p.parseTestList()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	switch {
	case tok.Type == TokenEOF:
		return expr, nil
	case tok.is("="):
		return nil, p.errorAt(tok, "assignment is not supported")
	case tok.is(";"):
		return nil, p.errorAt(tok, "statements are not supported")
	default:
		return nil, p.unexpected(tok)
	}
}

func (p *Parser) peek() Token {
	return p.lexer.PeekToken()
}

func (p *Parser) next() Token {
	return p.lexer.NextToken()
}

func (p *Parser) accept(value string) bool {
	if p.peek().is(value) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(value string) (Token, error) {
	tok := p.peek()
	if !tok.is(value) {
		if tok.Type == TokenEOF {
			return tok, p.errorAt(tok, "expected '"+value+"' but query ended")
		}
		return tok, p.errorAt(tok, "expected '"+value+"'")
	}
	return p.next(), nil
}

func (p *Parser) errorAt(tok Token, msg string) *objectql.ParseError {
	return &objectql.ParseError{
		Text:   p.text,
		Msg:    msg,
		Offset: tok.Pos.Offset + 1,
		Line:   tok.Pos.Line,
		Column: tok.Pos.Column,
	}
}

// enter descends one nesting level. Callers restore the depth when they
// return; once a parse fails the parser is not reused.
func (p *Parser) enter() error {
	p.depth++
	if p.depth > MaxNesting {
		return p.errorAt(p.peek(), "query is nested too deeply")
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

// restore returns a func resetting the depth to its current value, for
// loops that enter once per chained operator.
func (p *Parser) restore() func() {
	depth := p.depth
	return func() { p.depth = depth }
}

func (p *Parser) unexpected(tok Token) *objectql.ParseError {
	switch {
	case tok.Type == TokenEOF:
		return p.errorAt(tok, "unexpected end of query")
	case tok.is(":="):
		return p.errorAt(tok, "assignment expressions are not supported")
	case tok.is("*") || tok.is("**"):
		return p.errorAt(tok, "starred expressions are not supported")
	case tok.Type == TokenKeyword:
		return p.errorAt(tok, "invalid syntax near '"+tok.Value+"'")
	}
	return p.errorAt(tok, "invalid syntax")
}

// startsExpr reports whether tok can begin an expression.
func startsExpr(tok Token) bool {
	switch tok.Type {
	case TokenName, TokenInt, TokenFloat, TokenString:
		return true
	case TokenKeyword:
		switch tok.Value {
		case "not", "lambda", "True", "False", "None":
			return true
		}
	case TokenOp:
		switch tok.Value {
		case "(", "[", "{", "-", "+", "~":
			return true
		}
	}
	return false
}

// parseTestList parses expr (',' expr)* [','], producing a tuple when a
// comma is present.
func (p *Parser) parseTestList() (Expr, error) {
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if !p.peek().is(",") {
		return first, nil
	}

	elts := []Expr{first}
	for p.accept(",") {
		if !startsExpr(p.peek()) {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Tuple{At: first.Pos(), Elts: elts}, nil
}

func (p *Parser) parseTest() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if p.peek().is("lambda") {
		return p.parseLambda()
	}

	body, err := p.parseOrTest()
	if err != nil {
		return nil, err
	}

	if p.peek().is(":=") {
		return nil, p.unexpected(p.peek())
	}

	if !p.accept("if") {
		return body, nil
	}
	test, err := p.parseOrTest()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("else"); err != nil {
		return nil, err
	}
	orElse, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	return &IfExp{At: body.Pos(), Test: test, Body: body, Else: orElse}, nil
}

func (p *Parser) parseLambda() (Expr, error) {
	start := p.next()

	var params []*Name
	seen := make(map[string]bool)
	for !p.peek().is(":") {
		tok := p.peek()
		if tok.is("*") || tok.is("**") {
			return nil, p.errorAt(tok, "variadic lambda parameters are not supported")
		}
		if tok.Type != TokenName {
			return nil, p.unexpected(tok)
		}
		p.next()
		if seen[tok.Value] {
			return nil, p.errorAt(tok, "duplicate argument '"+tok.Value+"' in lambda")
		}
		seen[tok.Value] = true
		params = append(params, &Name{At: tok.Pos, ID: tok.Value, Ctx: Store})

		if p.peek().is("=") {
			return nil, p.errorAt(p.peek(), "default parameter values are not supported")
		}
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}

	body, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	return &Lambda{At: start.Pos, Params: params, Body: body}, nil
}

func (p *Parser) parseOrTest() (Expr, error) {
	return p.parseBoolOp(Or, "or", p.parseAndTest)
}

func (p *Parser) parseAndTest() (Expr, error) {
	return p.parseBoolOp(And, "and", p.parseNotTest)
}

func (p *Parser) parseBoolOp(op BoolOperator, keyword string, operand func() (Expr, error)) (Expr, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	if !p.peek().is(keyword) {
		return first, nil
	}

	values := []Expr{first}
	for p.accept(keyword) {
		v, err := operand()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &BoolOp{At: first.Pos(), Op: op, Values: values}, nil
}

func (p *Parser) parseNotTest() (Expr, error) {
	if tok := p.peek(); tok.is("not") {
		p.next()
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		operand, err := p.parseNotTest()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{At: tok.Pos, Op: Not, X: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}

	var ops []CmpOp
	var comparators []Expr
	for {
		op, ok := p.compOp()
		if !ok {
			break
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comparators = append(comparators, right)
	}

	if len(ops) == 0 {
		return left, nil
	}
	return &Compare{At: left.Pos(), Left: left, Ops: ops, Comparators: comparators}, nil
}

// compOp consumes a comparison operator if one is next.
func (p *Parser) compOp() (CmpOp, bool) {
	tok := p.peek()
	var op CmpOp
	switch {
	case tok.is("=="):
		op = Eq
	case tok.is("!="):
		op = NotEq
	case tok.is("<"):
		op = Lt
	case tok.is("<="):
		op = LtE
	case tok.is(">"):
		op = Gt
	case tok.is(">="):
		op = GtE
	case tok.is("in"):
		op = In
	case tok.is("not") && p.lexer.PeekTokenAt(1).is("in"):
		p.next()
		op = NotIn
	case tok.is("is"):
		op = Is
		if p.lexer.PeekTokenAt(1).is("not") {
			p.next()
			op = IsNot
		}
	default:
		return 0, false
	}
	p.next()
	return op, true
}

// binaryLevels lists the left-associative binary operator levels from
// loosest to tightest binding.
var binaryLevels = []map[string]BinaryOp{
	{"|": BitOr},
	{"^": BitXor},
	{"&": BitAnd},
	{"<<": LShift, ">>": RShift},
	{"+": Add, "-": Sub},
	{"*": Mult, "/": Div, "//": FloorDiv, "%": Mod},
}

func (p *Parser) parseBitOr() (Expr, error) {
	return p.parseBinaryLevel(0)
}

func (p *Parser) parseBinaryLevel(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.parseFactor()
	}

	left, err := p.parseBinaryLevel(level + 1)
	if err != nil {
		return nil, err
	}
	defer p.restore()()
	for {
		tok := p.peek()
		if tok.Type != TokenOp {
			return left, nil
		}
		if tok.Value == "@" {
			return nil, p.errorAt(tok, "matrix multiplication is not supported")
		}
		op, ok := binaryLevels[level][tok.Value]
		if !ok {
			return left, nil
		}
		p.next()
		if err := p.enter(); err != nil {
			return nil, err
		}
		right, err := p.parseBinaryLevel(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinOp{At: left.Pos(), X: left, Op: op, Y: right}
	}
}

func (p *Parser) parseFactor() (Expr, error) {
	tok := p.peek()
	var op UnaryOperator
	switch {
	case tok.is("-"):
		op = USub
	case tok.is("+"):
		op = UAdd
	case tok.is("~"):
		op = Invert
	default:
		return p.parsePower()
	}
	p.next()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	operand, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &UnaryOp{At: tok.Pos, Op: op, X: operand}, nil
}

func (p *Parser) parsePower() (Expr, error) {
	base, err := p.parseAtomExpr()
	if err != nil {
		return nil, err
	}
	if !p.accept("**") {
		return base, nil
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	exp, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &BinOp{At: base.Pos(), X: base, Op: Pow, Y: exp}, nil
}

func (p *Parser) parseAtomExpr() (Expr, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	defer p.restore()()
	for {
		tok := p.peek()
		if tok.is(".") || tok.is("(") || tok.is("[") {
			if err := p.enter(); err != nil {
				return nil, err
			}
		}
		switch {
		case tok.is("."):
			p.next()
			name := p.peek()
			if name.Type != TokenName {
				return nil, p.unexpected(name)
			}
			p.next()
			expr = &Attribute{At: expr.Pos(), X: expr, Attr: name.Value}
		case tok.is("("):
			p.next()
			expr, err = p.parseCall(expr)
			if err != nil {
				return nil, err
			}
		case tok.is("["):
			p.next()
			index, err := p.parseSubscriptList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			expr = &Subscript{At: expr.Pos(), X: expr, Index: index}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCall(fn Expr) (Expr, error) {
	call := &Call{At: fn.Pos(), Func: fn}

	for !p.peek().is(")") {
		tok := p.peek()
		if tok.is("*") || tok.is("**") {
			return nil, p.errorAt(tok, "starred arguments are not supported")
		}

		if tok.Type == TokenName && p.lexer.PeekTokenAt(1).is("=") {
			p.next()
			p.next()
			value, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			for _, kw := range call.Keywords {
				if kw.Name == tok.Value {
					return nil, p.errorAt(tok, "keyword argument repeated: "+tok.Value)
				}
			}
			call.Keywords = append(call.Keywords, &Keyword{At: tok.Pos, Name: tok.Value, Value: value})
		} else {
			arg, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if p.peek().is("for") {
				gens, err := p.parseCompFor()
				if err != nil {
					return nil, err
				}
				arg = &GeneratorExp{At: arg.Pos(), Elt: arg, Generators: gens}
				if len(call.Args) > 0 || len(call.Keywords) > 0 || !p.peek().is(")") {
					return nil, p.errorAt(tok, "generator expression must be parenthesized")
				}
			}
			if len(call.Keywords) > 0 {
				return nil, p.errorAt(tok, "positional argument follows keyword argument")
			}
			call.Args = append(call.Args, arg)
		}

		if !p.accept(",") {
			break
		}
	}

	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) parseSubscriptList() (Expr, error) {
	first, err := p.parseSubscriptItem()
	if err != nil {
		return nil, err
	}
	if !p.peek().is(",") {
		return first, nil
	}

	elts := []Expr{first}
	for p.accept(",") {
		if p.peek().is("]") {
			break
		}
		item, err := p.parseSubscriptItem()
		if err != nil {
			return nil, err
		}
		elts = append(elts, item)
	}
	return &Tuple{At: first.Pos(), Elts: elts}, nil
}

func (p *Parser) parseSubscriptItem() (Expr, error) {
	start := p.peek()

	var lower Expr
	if !start.is(":") {
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		if !p.peek().is(":") {
			return e, nil
		}
		lower = e
	}
	p.next()

	slice := &Slice{At: start.Pos, Lower: lower}
	if tok := p.peek(); !tok.is(":") && !tok.is("]") && !tok.is(",") {
		upper, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		slice.Upper = upper
	}
	if p.accept(":") {
		if tok := p.peek(); !tok.is("]") && !tok.is(",") {
			step, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			slice.Step = step
		}
	}
	return slice, nil
}

func (p *Parser) parseAtom() (Expr, error) {
	tok := p.peek()

	switch tok.Type {
	case TokenName:
		p.next()
		return &Name{At: tok.Pos, ID: tok.Value, Ctx: Load}, nil
	case TokenInt:
		p.next()
		n, err := parseInt(tok.Value)
		if err != nil {
			return nil, p.errorAt(tok, err.Error())
		}
		return &Constant{At: tok.Pos, Value: n}, nil
	case TokenFloat:
		p.next()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil && !isRangeError(err) {
			return nil, p.errorAt(tok, "invalid float literal "+tok.Value)
		}
		return &Constant{At: tok.Pos, Value: f}, nil
	case TokenString:
		var sb strings.Builder
		for p.peek().Type == TokenString {
			sb.WriteString(p.next().Value)
		}
		return &Constant{At: tok.Pos, Value: sb.String()}, nil
	case TokenKeyword:
		switch tok.Value {
		case "True":
			p.next()
			return &Constant{At: tok.Pos, Value: true}, nil
		case "False":
			p.next()
			return &Constant{At: tok.Pos, Value: false}, nil
		case "None":
			p.next()
			return &Constant{At: tok.Pos, Value: nil}, nil
		}
	case TokenOp:
		switch tok.Value {
		case "(":
			p.next()
			return p.parseParen(tok)
		case "[":
			p.next()
			return p.parseListDisplay(tok)
		case "{":
			p.next()
			return p.parseBraceDisplay(tok)
		}
	}
	return nil, p.unexpected(tok)
}

func (p *Parser) parseParen(open Token) (Expr, error) {
	if p.accept(")") {
		return &Tuple{At: open.Pos}, nil
	}

	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}

	switch {
	case p.peek().is("for"):
		gens, err := p.parseCompFor()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return &GeneratorExp{At: open.Pos, Elt: first, Generators: gens}, nil
	case p.peek().is(","):
		elts, err := p.parseElements(first, ")")
		if err != nil {
			return nil, err
		}
		return &Tuple{At: open.Pos, Elts: elts}, nil
	}

	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return first, nil
}

func (p *Parser) parseListDisplay(open Token) (Expr, error) {
	if p.accept("]") {
		return &List{At: open.Pos}, nil
	}

	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.peek().is("for") {
		gens, err := p.parseCompFor()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		return &ListComp{At: open.Pos, Elt: first, Generators: gens}, nil
	}

	elts, err := p.parseElements(first, "]")
	if err != nil {
		return nil, err
	}
	return &List{At: open.Pos, Elts: elts}, nil
}

func (p *Parser) parseBraceDisplay(open Token) (Expr, error) {
	if p.accept("}") {
		return &Dict{At: open.Pos}, nil
	}
	if tok := p.peek(); tok.is("**") || tok.is("*") {
		return nil, p.errorAt(tok, "unpacking is not supported")
	}

	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}

	if !p.accept(":") {
		if p.peek().is("for") {
			gens, err := p.parseCompFor()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("}"); err != nil {
				return nil, err
			}
			return &SetComp{At: open.Pos, Elt: first, Generators: gens}, nil
		}
		elts, err := p.parseElements(first, "}")
		if err != nil {
			return nil, err
		}
		return &Set{At: open.Pos, Elts: elts}, nil
	}

	value, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.peek().is("for") {
		gens, err := p.parseCompFor()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("}"); err != nil {
			return nil, err
		}
		return &DictComp{At: open.Pos, Key: first, Value: value, Generators: gens}, nil
	}

	dict := &Dict{At: open.Pos, Keys: []Expr{first}, Values: []Expr{value}}
	for p.accept(",") {
		if p.peek().is("}") {
			break
		}
		k, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		dict.Keys = append(dict.Keys, k)
		dict.Values = append(dict.Values, v)
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	return dict, nil
}

// parseElements parses the remaining comma separated elements of a
// display whose first element is already parsed, and the closing token.
func (p *Parser) parseElements(first Expr, closing string) ([]Expr, error) {
	elts := []Expr{first}
	for p.accept(",") {
		if p.peek().is(closing) {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.expect(closing); err != nil {
		return nil, err
	}
	return elts, nil
}

func (p *Parser) parseCompFor() ([]*Comprehension, error) {
	var gens []*Comprehension
	for p.accept("for") {
		target, err := p.parseTargetList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("in"); err != nil {
			return nil, err
		}
		iter, err := p.parseOrTest()
		if err != nil {
			return nil, err
		}

		gen := &Comprehension{Target: target, Iter: iter}
		for p.accept("if") {
			cond, err := p.parseOrTest()
			if err != nil {
				return nil, err
			}
			gen.Ifs = append(gen.Ifs, cond)
		}
		gens = append(gens, gen)
	}
	if tok := p.peek(); tok.is("async") {
		return nil, p.errorAt(tok, "asynchronous comprehensions are not supported")
	}
	return gens, nil
}

// parseTargetList parses the loop variables of a comprehension. Only names,
// possibly nested in tuples or lists, can be bound.
func (p *Parser) parseTargetList() (Expr, error) {
	first, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	if !p.peek().is(",") {
		return first, nil
	}

	elts := []Expr{first}
	for p.accept(",") {
		if p.peek().is("in") {
			break
		}
		t, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		elts = append(elts, t)
	}
	return &Tuple{At: first.Pos(), Elts: elts}, nil
}

func (p *Parser) parseTarget() (Expr, error) {
	tok := p.peek()
	switch {
	case tok.Type == TokenName:
		p.next()
		if next := p.peek(); next.is(".") || next.is("[") {
			return nil, p.errorAt(next, "only names can be bound in a comprehension")
		}
		return &Name{At: tok.Pos, ID: tok.Value, Ctx: Store}, nil
	case tok.is("(") || tok.is("["):
		p.next()
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		closing := ")"
		if tok.Value == "[" {
			closing = "]"
		}
		var elts []Expr
		for !p.peek().is(closing) {
			t, err := p.parseTarget()
			if err != nil {
				return nil, err
			}
			elts = append(elts, t)
			if !p.accept(",") {
				break
			}
		}
		if _, err := p.expect(closing); err != nil {
			return nil, err
		}
		if closing == "]" {
			return &List{At: tok.Pos, Elts: elts}, nil
		}
		return &Tuple{At: tok.Pos, Elts: elts}, nil
	}
	if tok.Type == TokenEOF {
		return nil, p.unexpected(tok)
	}
	return nil, p.errorAt(tok, "only names can be bound in a comprehension")
}

func parseInt(lit string) (int64, error) {
	base := 10
	digits := lit
	if len(lit) > 1 && lit[0] == '0' {
		switch lit[1] {
		case 'x', 'X':
			base, digits = 16, lit[2:]
		case 'o', 'O':
			base, digits = 8, lit[2:]
		case 'b', 'B':
			base, digits = 2, lit[2:]
		default:
			if strings.Trim(lit, "0") != "" {
				return 0, errLeadingZeros
			}
		}
	}
	n, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		if isRangeError(err) {
			return 0, errIntTooLarge
		}
		return 0, err
	}
	return n, nil
}

func isRangeError(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}

type syntaxError string

func (e syntaxError) Error() string { return string(e) }

const (
	errLeadingZeros = syntaxError("leading zeros in decimal integer literals are not permitted")
	errIntTooLarge  = syntaxError("integer literal too large")
)
