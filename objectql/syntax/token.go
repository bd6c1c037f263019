package syntax

import "fmt"

// TokenType represents the type of a query token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenName
	TokenKeyword
	TokenInt
	TokenFloat
	TokenString
	TokenOp
)

// Token represents a lexical token in query text. Value holds the decoded
// text for strings and the literal spelling for everything else.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// String returns a string representation of the token
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return fmt.Sprintf("EOF[%d:%d]", t.Pos.Line, t.Pos.Column)
	case TokenName:
		return fmt.Sprintf("Name[%d:%d]:%s", t.Pos.Line, t.Pos.Column, t.Value)
	case TokenKeyword:
		return fmt.Sprintf("Keyword[%d:%d]:%s", t.Pos.Line, t.Pos.Column, t.Value)
	case TokenInt:
		return fmt.Sprintf("Int[%d:%d]:%s", t.Pos.Line, t.Pos.Column, t.Value)
	case TokenFloat:
		return fmt.Sprintf("Float[%d:%d]:%s", t.Pos.Line, t.Pos.Column, t.Value)
	case TokenString:
		return fmt.Sprintf("String[%d:%d]:%q", t.Pos.Line, t.Pos.Column, t.Value)
	case TokenOp:
		return fmt.Sprintf("Op[%d:%d]:%s", t.Pos.Line, t.Pos.Column, t.Value)
	default:
		return fmt.Sprintf("Unknown[%d:%d]:%s", t.Pos.Line, t.Pos.Column, t.Value)
	}
}

// is reports whether the token is the given operator or keyword.
func (t Token) is(value string) bool {
	return (t.Type == TokenOp || t.Type == TokenKeyword) && t.Value == value
}

// keywords are reserved words of the host grammar. Only a handful are
// meaningful inside an expression; the rest always produce a syntax error.
var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true,
	"import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// operators ordered longest first so the lexer can take the longest match.
var operators = []string{
	"**", "//", "==", "!=", "<=", ">=", "<<", ">>", ":=", "->",
	"+", "-", "*", "/", "%", "@", "<", ">", "(", ")", "[", "]",
	"{", "}", ",", ":", ".", "~", "&", "|", "^", "=", ";",
}
