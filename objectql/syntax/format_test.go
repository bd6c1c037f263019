package syntax

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRoundTrip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "a==b", want: "a == b"},
		{input: "a or b and c", want: "a or (b and c)"},
		{input: "a and b or c", want: "a and b or c"},
		{input: "(a or b) and c", want: "(a or b) and c"},
		{input: "((((a))))", want: "a"},
		{input: "(1 + 2) * 3", want: "(1 + 2) * 3"},
		{input: "1 + 2 * 3", want: "1 + 2 * 3"},
		{input: "1 - (2 - 3)", want: "1 - (2 - 3)"},
		{input: "(1 - 2) - 3", want: "1 - 2 - 3"},
		{input: "2 ** -1", want: "2 ** (-1)"},
		{input: "(2 ** 3) ** 2", want: "(2 ** 3) ** 2"},
		{input: "-x ** 2", want: "-x ** 2"},
		{input: "not a == b", want: "not a == b"},
		{input: "(not a) == b", want: "(not a) == b"},
		{input: "a, b", want: "(a, b)"},
		{input: "(a,)", want: "(a,)"},
		{input: "()", want: "()"},
		{input: "x[1, 2]", want: "x[1, 2]"},
		{input: "x[1:2:3]", want: "x[1:2:3]"},
		{input: "any(x for x in y)", want: "any((x for x in y))"},
		{input: "[k for k, v in d.items() if v]", want: "[k for k, v in d.items() if v]"},
		{input: "{'a': 1, 'b': [1, 2]}", want: "{'a': 1, 'b': [1, 2]}"},
		{input: "{1, 2}", want: "{1, 2}"},
		{input: "a if b else c", want: "a if b else c"},
		{input: "(a if b else c) if d else e", want: "(a if b else c) if d else e"},
		{input: "lambda x, y: x + y", want: "lambda x, y: x + y"},
		{input: "f(lambda: 1)", want: "f(lambda: 1)"},
		{input: `"it's"`, want: `"it's"`},
		{input: `'say "hi"'`, want: `'say "hi"'`},
		{input: `'tab\there'`, want: `'tab\there'`},
		{input: "1.0", want: "1.0"},
		{input: "1e16", want: "1e+16"},
		{input: "0.0001", want: "0.0001"},
		{input: "0.00001", want: "1e-05"},
		{input: "(1).real", want: "1 .real"},
		{input: "x is not None", want: "x is not None"},
		{input: "sorted(x, reverse=True)", want: "sorted(x, reverse=True)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e, err := Parse(tt.input)
			require.NoError(t, err)
			got := Format(e)
			assert.Equal(t, tt.want, got)

			// formatting is idempotent
			again, err := Parse(got)
			require.NoError(t, err)
			assert.Equal(t, got, Format(again))
		})
	}
}

func TestFormatGolden(t *testing.T) {
	queries := []string{
		"person.gramps_id == 'person001'",
		"'handle001' in [get_person(ref).get_handle() for ref in person.get_person_ref_list()]",
		"any([get_note(ref).gramps_id == 'note003' for ref in person.get_note_list()])",
		"all([2 == x for x in obj]) and obj != []",
		"one.two == 'x' and one.three.four[0] == 'y' or one.five",
		"len(obj) == 1",
		"'a' in obj.lower()",
		"{'class'}=='person' and {'name'}=='John Doe' or 'only_id'",
	}

	var sb strings.Builder
	for _, q := range queries {
		e, err := Parse(q)
		require.NoError(t, err, q)
		sb.WriteString(Format(e))
		sb.WriteString("\n")
	}

	g := goldie.New(t)
	g.Assert(t, "format", []byte(sb.String()))
}

func TestRewriteLeavesInputUntouched(t *testing.T) {
	e, err := Parse("a.b + c")
	require.NoError(t, err)

	out := Rewrite(e, func(n Expr) Expr {
		if name, ok := n.(*Name); ok && name.ID == "c" {
			return &Constant{At: name.At, Value: int64(1)}
		}
		return n
	})

	assert.Equal(t, "a.b + c", Format(e))
	assert.Equal(t, "a.b + 1", Format(out))
}

func TestInspectVisitsComprehensionParts(t *testing.T) {
	e, err := Parse("[f(x) for x in xs if g(x)]")
	require.NoError(t, err)

	var names []string
	Inspect(e, func(n Expr) bool {
		if name, ok := n.(*Name); ok {
			names = append(names, name.ID)
		}
		return true
	})
	assert.Equal(t, []string{"f", "x", "x", "xs", "g", "x"}, names)
}
