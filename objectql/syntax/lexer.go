package syntax

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dsblank/object-ql/objectql"
)

// Position is the location of a token or node within the query text.
// Offset is the rune index (0-based), Line/Column are 1-based.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Lexer tokenizes query text
type Lexer struct {
	input   []rune
	text    string
	pos     int
	line    int
	col     int
	tokens  []Token
	current int
}

// NewLexer creates a new lexer for the given input
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: []rune(input),
		text:  input,
		line:  1,
		col:   1,
	}
}

// Lex tokenizes the entire input
func (l *Lexer) Lex() error {
	for {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.input) {
			break
		}

		start := l.position()
		ch := l.peek()

		switch {
		case isIdentStart(ch):
			word := l.readIdent()
			if isStringPrefix(word) && (l.peek() == '\'' || l.peek() == '"') {
				if err := l.checkPrefix(word, start); err != nil {
					return err
				}
				str, err := l.readString(start, strings.ContainsAny(word, "rR"))
				if err != nil {
					return err
				}
				l.emit(TokenString, str, start)
				continue
			}
			if keywords[word] {
				l.emit(TokenKeyword, word, start)
			} else {
				l.emit(TokenName, word, start)
			}
		case ch == '\'' || ch == '"':
			str, err := l.readString(start, false)
			if err != nil {
				return err
			}
			l.emit(TokenString, str, start)
		case unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peekAt(1))):
			typ, num, err := l.readNumber(start)
			if err != nil {
				return err
			}
			l.emit(typ, num, start)
		case ch == '\\' && (l.peekAt(1) == '\n' || l.peekAt(1) == '\r'):
			// explicit line continuation
			l.advance()
		default:
			op := l.readOperator()
			if op == "" {
				return l.errorAt(start, "invalid character '"+string(ch)+"'")
			}
			l.emit(TokenOp, op, start)
		}
	}

	l.emit(TokenEOF, "", l.position())
	return nil
}

// Tokens returns the tokens produced by Lex
func (l *Lexer) Tokens() []Token {
	return l.tokens
}

// PeekToken returns the current token without consuming it
func (l *Lexer) PeekToken() Token {
	if l.current >= len(l.tokens) {
		return l.tokens[len(l.tokens)-1]
	}
	return l.tokens[l.current]
}

// PeekTokenAt returns the token n positions ahead of the current one
func (l *Lexer) PeekTokenAt(n int) Token {
	if l.current+n >= len(l.tokens) {
		return l.tokens[len(l.tokens)-1]
	}
	return l.tokens[l.current+n]
}

// NextToken consumes and returns the current token
func (l *Lexer) NextToken() Token {
	tok := l.PeekToken()
	if l.current < len(l.tokens) {
		l.current++
	}
	return tok
}

func (l *Lexer) emit(typ TokenType, value string, pos Position) {
	l.tokens = append(l.tokens, Token{Type: typ, Value: value, Pos: pos})
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) errorAt(pos Position, msg string) *objectql.ParseError {
	return &objectql.ParseError{
		Text:   l.text,
		Msg:    msg,
		Offset: pos.Offset + 1,
		Line:   pos.Line,
		Column: pos.Column,
	}
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

func (l *Lexer) peekAt(n int) rune {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *Lexer) advance() rune {
	ch := l.input[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case ch == '#':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		case unicode.IsSpace(ch):
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) readIdent() string {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peek()) {
		l.advance()
	}
	return string(l.input[start:l.pos])
}

func (l *Lexer) readOperator() string {
	for _, op := range operators {
		n := len([]rune(op))
		if l.pos+n > len(l.input) {
			continue
		}
		if string(l.input[l.pos:l.pos+n]) == op {
			for range n {
				l.advance()
			}
			return op
		}
	}
	return ""
}

func (l *Lexer) checkPrefix(prefix string, start Position) error {
	lower := strings.ToLower(prefix)
	if strings.ContainsAny(lower, "f") {
		return l.errorAt(start, "f-strings are not supported")
	}
	if strings.ContainsAny(lower, "b") {
		return l.errorAt(start, "bytes literals are not supported")
	}
	return nil
}

// readString reads a quoted string literal and returns its decoded value.
func (l *Lexer) readString(start Position, raw bool) (string, error) {
	quote := l.advance()
	triple := false
	if l.peek() == quote && l.peekAt(1) == quote {
		l.advance()
		l.advance()
		triple = true
	}

	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			if triple {
				return "", l.errorAt(start, "unterminated triple-quoted string literal")
			}
			return "", l.errorAt(start, "unterminated string literal")
		}

		ch := l.peek()
		if ch == quote {
			if !triple {
				l.advance()
				return sb.String(), nil
			}
			if l.peekAt(1) == quote && l.peekAt(2) == quote {
				l.advance()
				l.advance()
				l.advance()
				return sb.String(), nil
			}
		}
		if ch == '\n' && !triple {
			return "", l.errorAt(start, "unterminated string literal")
		}

		if ch == '\\' {
			escPos := l.position()
			l.advance()
			if l.pos >= len(l.input) {
				return "", l.errorAt(start, "unterminated string literal")
			}
			if raw {
				sb.WriteRune('\\')
				sb.WriteRune(l.advance())
				continue
			}
			if err := l.readEscape(&sb, escPos); err != nil {
				return "", err
			}
			continue
		}

		sb.WriteRune(l.advance())
	}
}

func (l *Lexer) readEscape(sb *strings.Builder, escPos Position) error {
	ch := l.advance()
	switch ch {
	case '\n':
		// line continuation inside a string
	case '\\', '\'', '"':
		sb.WriteRune(ch)
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		digits := string(ch)
		for len(digits) < 3 && l.peek() >= '0' && l.peek() <= '7' {
			digits += string(l.advance())
		}
		n, _ := strconv.ParseUint(digits, 8, 32)
		sb.WriteRune(rune(n))
	case 'x', 'u', 'U':
		size := map[rune]int{'x': 2, 'u': 4, 'U': 8}[ch]
		var digits []rune
		for range size {
			if !isHexDigit(l.peek()) {
				return l.errorAt(escPos, "truncated \\"+string(ch)+" escape")
			}
			digits = append(digits, l.advance())
		}
		n, _ := strconv.ParseUint(string(digits), 16, 32)
		if n > unicode.MaxRune {
			return l.errorAt(escPos, "illegal Unicode character")
		}
		sb.WriteRune(rune(n))
	default:
		// unknown escapes are kept verbatim
		sb.WriteRune('\\')
		sb.WriteRune(ch)
	}
	return nil
}

// readNumber reads an integer or float literal. Underscore separators are
// dropped from the returned spelling.
func (l *Lexer) readNumber(start Position) (TokenType, string, error) {
	begin := l.pos

	if l.peek() == '0' {
		switch unicode.ToLower(l.peekAt(1)) {
		case 'x', 'o', 'b':
			l.advance()
			l.advance()
			for isIdentPart(l.peek()) {
				l.advance()
			}
			lit := strings.ReplaceAll(string(l.input[begin:l.pos]), "_", "")
			if _, err := strconv.ParseInt(lit, 0, 64); err != nil {
				return 0, "", l.errorAt(start, "invalid integer literal "+lit)
			}
			return TokenInt, lit, nil
		}
	}

	typ := TokenInt
	l.readDigits()
	if l.peek() == '.' {
		typ = TokenFloat
		l.advance()
		l.readDigits()
	}
	if ch := l.peek(); ch == 'e' || ch == 'E' {
		next := l.peekAt(1)
		if unicode.IsDigit(next) || ((next == '+' || next == '-') && unicode.IsDigit(l.peekAt(2))) {
			typ = TokenFloat
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			l.readDigits()
		}
	}
	if ch := l.peek(); ch == 'j' || ch == 'J' {
		return 0, "", l.errorAt(start, "complex literals are not supported")
	}
	if isIdentStart(l.peek()) {
		return 0, "", l.errorAt(l.position(), "invalid decimal literal")
	}

	return typ, strings.ReplaceAll(string(l.input[begin:l.pos]), "_", ""), nil
}

func (l *Lexer) readDigits() {
	for unicode.IsDigit(l.peek()) || (l.peek() == '_' && unicode.IsDigit(l.peekAt(1))) {
		l.advance()
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isStringPrefix(word string) bool {
	if len(word) > 2 {
		return false
	}
	for _, ch := range strings.ToLower(word) {
		if !strings.ContainsRune("rbuf", ch) {
			return false
		}
	}
	return true
}
