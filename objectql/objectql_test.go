package objectql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttr(t *testing.T) {
	r := NewRecord("Person", "h1", map[string]any{
		"gramps_id": "I1",
		"note_list": []any{"n1"},
	})

	v, ok := r.Attr("gramps_id")
	assert.True(t, ok)
	assert.Equal(t, "I1", v)

	v, ok = r.Attr("handle")
	assert.True(t, ok)
	assert.Equal(t, "h1", v)

	getter, ok := r.Attr("get_note_list")
	require.True(t, ok)
	fn, ok := getter.(Function)
	require.True(t, ok)
	v, err := fn(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"n1"}, v)

	_, ok = r.Attr("get_handle")
	assert.True(t, ok)

	_, ok = r.Attr("missing")
	assert.False(t, ok)
	_, ok = r.Attr("get_missing")
	assert.False(t, ok)

	_, ok = NewObject("Name", nil).Attr("handle")
	assert.False(t, ok)
	assert.Equal(t, "person", r.Kind())
}

func TestRecordMapping(t *testing.T) {
	r := NewRecord("Person", "h1", map[string]any{
		"name":  NewObject("Name", map[string]any{"surname": "Blank"}),
		"refs":  []any{NewRecord("PersonRef", "", map[string]any{"ref": "h2"})},
		"extra": map[string]any{"inner": NewObject("Date", nil)},
	})

	want := map[string]any{
		"class":  "person",
		"handle": "h1",
		"name":   map[string]any{"class": "name", "surname": "Blank"},
		"refs":   []any{map[string]any{"class": "personref", "ref": "h2"}},
		"extra":  map[string]any{"inner": map[string]any{"class": "date"}},
	}
	assert.Equal(t, want, r.Mapping())
	assert.Equal(t, want, ToMapping(r))
	assert.Equal(t, "plain", ToMapping("plain"))
}

func TestSchema(t *testing.T) {
	s := DefaultSchema
	assert.Equal(t, "person", s.Names()[0])
	assert.Len(t, s.Names(), 9)
	assert.Equal(t, "people", s.Plural("person"))
	assert.Equal(t, "tag", s.Plural("tag"))

	_, ok := s.Collection("family")
	assert.True(t, ok)
	_, ok = s.Collection("tag")
	assert.False(t, ok)
	assert.Contains(t, s.LookupKinds, "tag")
}

func TestSliceIterator(t *testing.T) {
	it := NewSliceIterator([]any{"a", "b"})
	assert.Nil(t, it.Record())

	var got []any
	for it.Next() {
		got = append(got, it.Record())
	}
	assert.Equal(t, []any{"a", "b"}, got)
	assert.False(t, it.Next())
	assert.Nil(t, it.Record())
	assert.NoError(t, it.Err())
	assert.NoError(t, it.Close())
}

func TestErrors(t *testing.T) {
	var err error = &ValidationError{Name: "eval", Offset: 1}
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, `access denied to "eval"`, err.Error())

	err = &ParseError{Msg: "unexpected end of input", Offset: 4, Line: 1, Column: 4}
	assert.True(t, errors.Is(err, ErrParse))
	assert.Equal(t, "unexpected end of input at 1:4", err.Error())
	assert.Equal(t, "bad", (&ParseError{Msg: "bad"}).Error())

	err = &HandleError{Kind: "note", Handle: "n9"}
	assert.True(t, errors.Is(err, ErrHandleNotFound))
	assert.Equal(t, `note handle not found: "n9"`, err.Error())

	assert.True(t, IsNotFound(NotFound))
	assert.False(t, IsNotFound(nil))
}
