package syntax

import (
	"errors"
	"strings"
	"testing"

	"github.com/dsblank/object-ql/objectql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShapes(t *testing.T) {
	t.Run("attribute chain", func(t *testing.T) {
		e, err := Parse("name.surname.startswith('B')")
		require.NoError(t, err)

		call, ok := e.(*Call)
		require.True(t, ok)
		require.Len(t, call.Args, 1)
		assert.Equal(t, "B", call.Args[0].(*Constant).Value)

		attr := call.Func.(*Attribute)
		assert.Equal(t, "startswith", attr.Attr)
		assert.Equal(t, "surname", attr.X.(*Attribute).Attr)
		assert.Equal(t, "name", attr.X.(*Attribute).X.(*Name).ID)
	})

	t.Run("boolean operators flatten", func(t *testing.T) {
		e, err := Parse("a or b or c")
		require.NoError(t, err)
		b := e.(*BoolOp)
		assert.Equal(t, Or, b.Op)
		assert.Len(t, b.Values, 3)
	})

	t.Run("comparison chain", func(t *testing.T) {
		e, err := Parse("1 < x <= 3")
		require.NoError(t, err)
		c := e.(*Compare)
		assert.Equal(t, []CmpOp{Lt, LtE}, c.Ops)
		assert.Len(t, c.Comparators, 2)
	})

	t.Run("not in and is not", func(t *testing.T) {
		e, err := Parse("a not in b and c is not None")
		require.NoError(t, err)
		b := e.(*BoolOp)
		assert.Equal(t, NotIn, b.Values[0].(*Compare).Ops[0])
		assert.Equal(t, IsNot, b.Values[1].(*Compare).Ops[0])
	})

	t.Run("power is right associative", func(t *testing.T) {
		e, err := Parse("2 ** 3 ** 2")
		require.NoError(t, err)
		b := e.(*BinOp)
		assert.Equal(t, Pow, b.Op)
		assert.Equal(t, int64(2), b.X.(*Constant).Value)
		assert.Equal(t, Pow, b.Y.(*BinOp).Op)
	})

	t.Run("list comprehension binds store names", func(t *testing.T) {
		e, err := Parse("[x for x in obj if x]")
		require.NoError(t, err)
		lc := e.(*ListComp)
		require.Len(t, lc.Generators, 1)
		assert.Equal(t, Store, lc.Generators[0].Target.(*Name).Ctx)
		assert.Len(t, lc.Generators[0].Ifs, 1)
	})

	t.Run("bare generator argument", func(t *testing.T) {
		e, err := Parse("any(x > 1 for x in obj)")
		require.NoError(t, err)
		call := e.(*Call)
		_, ok := call.Args[0].(*GeneratorExp)
		assert.True(t, ok)
	})

	t.Run("set and dict displays", func(t *testing.T) {
		e, err := Parse("{'class'}")
		require.NoError(t, err)
		assert.IsType(t, &Set{}, e)

		e, err = Parse("{}")
		require.NoError(t, err)
		assert.IsType(t, &Dict{}, e)

		e, err = Parse("{k: v for k, v in d.items()}")
		require.NoError(t, err)
		dc := e.(*DictComp)
		assert.IsType(t, &Tuple{}, dc.Generators[0].Target)
	})

	t.Run("slices", func(t *testing.T) {
		e, err := Parse("x[1:2], x[::2], x[:]")
		require.NoError(t, err)
		tup := e.(*Tuple)
		require.Len(t, tup.Elts, 3)
		s := tup.Elts[1].(*Subscript).Index.(*Slice)
		assert.Nil(t, s.Lower)
		assert.Nil(t, s.Upper)
		assert.Equal(t, int64(2), s.Step.(*Constant).Value)
	})

	t.Run("keyword arguments and lambda", func(t *testing.T) {
		e, err := Parse("sorted(xs, key=lambda p: p.age, reverse=True)")
		require.NoError(t, err)
		call := e.(*Call)
		require.Len(t, call.Keywords, 2)
		lam := call.Keywords[0].Value.(*Lambda)
		assert.Equal(t, "p", lam.Params[0].ID)
	})

	t.Run("adjacent strings concatenate", func(t *testing.T) {
		e, err := Parse(`'ab' "cd"`)
		require.NoError(t, err)
		assert.Equal(t, "abcd", e.(*Constant).Value)
	})

	t.Run("numbers", func(t *testing.T) {
		for input, want := range map[string]any{
			"0x1f":   int64(31),
			"1_000":  int64(1000),
			"0":      int64(0),
			"1.5":    1.5,
			".5":     0.5,
			"1e3":    1000.0,
			"'\\x41'": "A",
		} {
			e, err := Parse(input)
			require.NoError(t, err, input)
			assert.Equal(t, want, e.(*Constant).Value, input)
		}
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{name: "dangling operator", input: "x ==", offset: 5},
		{name: "unclosed paren", input: "(a and b", offset: 9},
		{name: "assignment", input: "x = 1", offset: 3},
		{name: "walrus", input: "(x := 1)", offset: 4},
		{name: "statement keyword", input: "import os", offset: 1},
		{name: "unterminated string", input: "name == 'abc", offset: 9},
		{name: "bad character", input: "a $ b", offset: 3},
		{name: "starred argument", input: "f(*args)", offset: 3},
		{name: "attribute target", input: "[1 for x.y in z]", offset: 9},
		{name: "leading zeros", input: "007", offset: 1},
		{name: "empty", input: "   ", offset: 4},
		{name: "f-string", input: "f'{x}'", offset: 1},
		{name: "semicolon", input: "a; b", offset: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, objectql.ErrParse))

			var pe *objectql.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.input, pe.Text)
			assert.Equal(t, tt.offset, pe.Offset)
		})
	}
}

func TestParseNestingLimit(t *testing.T) {
	tooDeep := []struct {
		name  string
		input string
	}{
		{"parentheses", strings.Repeat("(", 100_000) + "1" + strings.Repeat(")", 100_000)},
		{"operator chain", "1" + strings.Repeat("+1", 300_000)},
		{"not chain", strings.Repeat("not ", MaxNesting+1) + "x"},
		{"unary chain", strings.Repeat("-", MaxNesting+1) + "1"},
		{"power chain", "2" + strings.Repeat(" ** 2", MaxNesting+1)},
		{"attribute chain", "x" + strings.Repeat(".y", MaxNesting+1)},
		{"call chain", "f" + strings.Repeat("()", MaxNesting+1)},
		{"lists", strings.Repeat("[", MaxNesting+1) + strings.Repeat("]", MaxNesting+1)},
		{"targets", "[1 for " + strings.Repeat("(", MaxNesting+1) + "a" + strings.Repeat(")", MaxNesting+1) + " in x]"},
	}
	for _, tt := range tooDeep {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var pe *objectql.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "query is nested too deeply", pe.Msg)
		})
	}

	fits := []string{
		strings.Repeat("(", 50) + "1" + strings.Repeat(")", 50),
		"1" + strings.Repeat(" + 1", 100),
		"x" + strings.Repeat(".y", 100),
		strings.Repeat("a or ", 1000) + "b",
		strings.Repeat("a < ", 1000) + "b",
		"[" + strings.Repeat("1, ", 1000) + "1]",
	}
	for _, input := range fits {
		_, err := Parse(input)
		assert.NoError(t, err, input[:20])
	}
}

func TestParseErrorLineColumn(t *testing.T) {
	_, err := Parse("a and\n  (b or")
	var pe *objectql.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, 8, pe.Column)
}

func TestLexerTokens(t *testing.T) {
	l := NewLexer("x.y >= 'z' # trailing comment")
	require.NoError(t, l.Lex())

	var types []TokenType
	for _, tok := range l.Tokens() {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{TokenName, TokenOp, TokenName, TokenOp, TokenString, TokenEOF}, types)
	assert.Equal(t, "String[1:8]:\"z\"", l.Tokens()[4].String())
}
