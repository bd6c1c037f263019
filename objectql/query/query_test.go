package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/annotations"
)

// testSource keeps records per collection and resolves them by handle.
type testSource struct {
	collections map[string][]any
	scans       []string
}

func (s *testSource) Scan(_ context.Context, collection string) (objectql.Iterator, error) {
	s.scans = append(s.scans, collection)
	return objectql.NewSliceIterator(s.collections[collection]), nil
}

func (s *testSource) Resolve(_ context.Context, kind, handle string) (any, error) {
	for _, rec := range s.collections[kind] {
		if r, ok := rec.(*objectql.Record); ok && r.Handle == handle {
			return r, nil
		}
	}
	return nil, &objectql.HandleError{Kind: kind, Handle: handle}
}

func person(handle, id string, fields map[string]any) *objectql.Record {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["gramps_id"] = id
	return objectql.NewRecord("Person", handle, fields)
}

func flaggedSource() *testSource {
	return &testSource{collections: map[string][]any{
		"person": {
			person("a", "A", map[string]any{"flag": true}),
			person("b", "B", map[string]any{"flag": false}),
			person("c", "C", map[string]any{"flag": true}),
		},
		"note": {objectql.NewRecord("Note", "n", map[string]any{"flag": true})},
	}}
}

func ids(t *testing.T, records []any) []string {
	t.Helper()
	var out []string
	for _, r := range records {
		rec, ok := r.(*objectql.Record)
		require.True(t, ok)
		out = append(out, rec.Fields["gramps_id"].(string))
	}
	return out
}

func TestIterate(t *testing.T) {
	src := flaggedSource()
	q, err := New("person.flag", ObjectOptions().WithSource(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"person"}, q.Tables())

	it, err := q.Iterate(context.Background())
	require.NoError(t, err)
	records, err := it.All()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, ids(t, records))
	assert.Equal(t, []string{"person"}, src.scans)

	// a second traversal starts over
	it, err = q.Iterate(context.Background())
	require.NoError(t, err)
	records, err = it.All()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestApply(t *testing.T) {
	q, err := New("person.flag", ObjectOptions().WithSource(flaggedSource()))
	require.NoError(t, err)

	it, err := q.Apply(context.Background())
	require.NoError(t, err)
	results, err := it.All()
	require.NoError(t, err)

	var matched []bool
	for _, r := range results {
		matched = append(matched, r.Matched)
	}
	assert.Equal(t, []bool{true, false, true}, matched)
}

func TestIterateAllCollections(t *testing.T) {
	src := flaggedSource()
	q, err := New("obj.flag", ObjectOptions().WithSource(src))
	require.NoError(t, err)
	assert.Equal(t, objectql.DefaultSchema.Names(), q.Tables())

	it, err := q.Iterate(context.Background())
	require.NoError(t, err)
	records, err := it.All()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, objectql.DefaultSchema.Names(), src.scans)
}

func TestIterateNeedsSource(t *testing.T) {
	q, err := New("person.flag", ObjectOptions())
	require.NoError(t, err)

	_, err = q.Iterate(context.Background())
	assert.ErrorIs(t, err, objectql.ErrConfiguration)
	_, err = q.Apply(context.Background())
	assert.ErrorIs(t, err, objectql.ErrConfiguration)
}

type failingSource struct{}

func (failingSource) Scan(context.Context, string) (objectql.Iterator, error) {
	return nil, errors.New("disk on fire")
}

func TestIterateSourceError(t *testing.T) {
	it, err := Iterate(context.Background(), "person", failingSource{})
	require.NoError(t, err)
	assert.False(t, it.Next())
	assert.ErrorContains(t, it.Err(), "disk on fire")
}

func TestIterateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	it, err := Iterate(ctx, "person", flaggedSource())
	require.NoError(t, err)
	cancel()
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), context.Canceled)
}

func TestEvaluationFailureIsNoMatch(t *testing.T) {
	q, err := New("person.missing['x'] == 1", ObjectOptions())
	require.NoError(t, err)

	rec := person("a", "A", nil)
	assert.False(t, q.Match(rec))
	out := q.MatchContext(context.Background(), rec)
	assert.False(t, out.Matched)
	assert.False(t, out.TimedOut)
	assert.Error(t, out.Err)

	// the failing record does not stop a traversal
	src := &testSource{collections: map[string][]any{"person": {rec, person("b", "B", map[string]any{
		"missing": map[string]any{"x": 1},
	})}}}
	records, err := mustIterate(t, "person.missing['x'] == 1", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ids(t, records))
}

func mustIterate(t *testing.T, text string, src objectql.Source) ([]any, error) {
	t.Helper()
	it, err := Iterate(context.Background(), text, src)
	require.NoError(t, err)
	return it.All()
}

func TestTimeoutIsNoMatch(t *testing.T) {
	opts := ObjectOptions()
	opts.Timeout = 10 * time.Millisecond
	opts.Extras = map[string]any{
		"slow": objectql.Function(func([]any, map[string]any) (any, error) {
			time.Sleep(200 * time.Millisecond)
			return true, nil
		}),
	}
	q, err := New("slow()", opts)
	require.NoError(t, err)

	out := q.MatchContext(context.Background(), person("a", "A", nil))
	assert.False(t, out.Matched)
	assert.True(t, out.TimedOut)
}

// blockingResolver holds every Resolve call until its context ends.
type blockingResolver struct {
	cancelled chan error
}

func (blockingResolver) Scan(context.Context, string) (objectql.Iterator, error) {
	return objectql.NewSliceIterator(nil), nil
}

func (r blockingResolver) Resolve(ctx context.Context, _, _ string) (any, error) {
	<-ctx.Done()
	r.cancelled <- ctx.Err()
	return nil, ctx.Err()
}

func TestTimeoutCancelsLookups(t *testing.T) {
	src := blockingResolver{cancelled: make(chan error, 1)}
	opts := PythonOptions().WithSource(src)
	opts.Timeout = 50 * time.Millisecond
	q, err := New("get_person('handle001')", opts)
	require.NoError(t, err)

	out := q.MatchContext(context.Background(), person("a", "A", nil))
	assert.False(t, out.Matched)
	assert.True(t, out.TimedOut)

	select {
	case err := <-src.cancelled:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("lookup still running after the evaluation deadline")
	}
}

func TestMatchIsPure(t *testing.T) {
	q, err := New("len([x for x in obj.items if x > 1]) == 2", ObjectOptions())
	require.NoError(t, err)

	rec := objectql.NewObject("Box", map[string]any{"items": []any{1, 2, 3}})
	for i := 0; i < 3; i++ {
		assert.True(t, q.Match(rec))
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New("__import__('os')", ObjectOptions())
	var verr *objectql.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "__import__", verr.Name)

	_, err = New("  1 +", ObjectOptions())
	var perr *objectql.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "1 +", perr.Text)
	assert.ErrorIs(t, err, objectql.ErrParse)

	for _, text := range []string{
		strings.Repeat("(", 100_000) + "1" + strings.Repeat(")", 100_000),
		"1" + strings.Repeat("+1", 300_000),
	} {
		_, err = New(text, ObjectOptions())
		assert.ErrorIs(t, err, objectql.ErrParse)
	}
}

func TestVariants(t *testing.T) {
	rec := person("a", "A", map[string]any{
		"date": objectql.NewObject("Date", map[string]any{"year": 2022}),
	})

	t.Run("object", func(t *testing.T) {
		q, err := New("person.date.year > 2021 and obj is _", ObjectOptions())
		require.NoError(t, err)
		assert.True(t, q.Match(rec))

		q, err = New("person.nothing", ObjectOptions())
		require.NoError(t, err)
		assert.Error(t, q.MatchContext(context.Background(), rec).Err)
	})

	t.Run("row", func(t *testing.T) {
		q, err := New("{'class'} == 'person' and {'date'}['year'] > 2021", RowOptions())
		require.NoError(t, err)
		assert.True(t, q.Match(rec))

		q, err = New("{'date'}.year > 2021 and row['handle'] == 'a'", RowOptions())
		require.NoError(t, err)
		assert.True(t, q.Match(rec))

		q, err = New("{'nothing'}.year", RowOptions())
		require.NoError(t, err)
		assert.False(t, q.Match(rec))
	})

	t.Run("python", func(t *testing.T) {
		q, err := New("person.date.year > 2021", PythonOptions())
		require.NoError(t, err)
		assert.True(t, q.Match(rec))

		opts := PythonOptions()
		opts.Extras = map[string]any{"NotFound": objectql.NotFound}
		q, err = New("person.nothing is NotFound", opts)
		require.NoError(t, err)
		out := q.MatchContext(context.Background(), rec)
		require.NoError(t, out.Err)
		assert.True(t, out.Matched)
	})
}

func TestLookups(t *testing.T) {
	p1 := person("handle001", "person001", nil)
	note := objectql.NewRecord("Note", "handle003", map[string]any{"gramps_id": "note003"})
	p2 := person("handle002", "person002", map[string]any{
		"person_ref_list": []any{map[string]any{"ref": "handle001"}},
		"note_list":       []any{"handle003"},
	})
	src := &testSource{collections: map[string][]any{
		"person": {p1, p2},
		"note":   {note},
	}}

	tests := []struct {
		query string
		want  []string
	}{
		{"'handle001' in [get_person(ref).get_handle() for ref in person.get_person_ref_list()]", []string{"person002"}},
		{"[get_person(ref).gramps_id == 'person001' for ref in person.get_person_ref_list()]", []string{"person002"}},
		{"[get_person('handle001') for ref in person.get_person_ref_list()]", []string{"person002"}},
		{"any([get_person(x).gramps_id == 'person001' for x in person.get_person_ref_list()])", []string{"person002"}},
		{"'handle003' in person.get_note_list() and person.gramps_id == 'person002'", []string{"person002"}},
		{"any([get_note(ref).gramps_id == 'note003' for ref in person.get_note_list()])", []string{"person002"}},
		{"any([get_note(ref) for ref in person.get_note_list()])", []string{"person002"}},
		{"get_person().gramps_id == person.gramps_id", []string{"person001", "person002"}},
		{"get_person('nobody')", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := New(tt.query, PythonOptions().WithSource(src))
			require.NoError(t, err)
			it, err := q.Iterate(context.Background())
			require.NoError(t, err)
			records, err := it.All()
			require.NoError(t, err)
			got := ids(t, records)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnnotations(t *testing.T) {
	var names []string
	opts := ObjectOptions().WithSource(flaggedSource())
	opts.Handler = func(e annotations.Event) { names = append(names, e.Name) }

	q, err := New("person.flag", opts)
	require.NoError(t, err)
	it, err := q.Iterate(context.Background())
	require.NoError(t, err)
	_, err = it.All()
	require.NoError(t, err)

	assert.Equal(t, []string{
		annotations.QueryCompiled,
		annotations.IterateBegin,
		annotations.RecordEvaluated,
		annotations.RecordEvaluated,
		annotations.RecordEvaluated,
		annotations.CollectionScanned,
		annotations.IterateComplete,
	}, names)

	names = nil
	_, err = New("1 +", opts)
	require.Error(t, err)
	assert.Equal(t, []string{annotations.ErrorQueryParsing}, names)
}

func TestPackageLevel(t *testing.T) {
	text, err := Parse("{'class'}=='person'")
	require.NoError(t, err)
	assert.Equal(t, "row['class'] == 'person'", text)

	text, err = Parse("{'date'}.year > 2021")
	require.NoError(t, err)
	assert.Equal(t, "get_attr(row['date'], 'year') > 2021", text)

	_, err = Parse("eval('1')")
	assert.ErrorIs(t, err, objectql.ErrValidation)

	ok, err := Match("person.gramps_id == 'A'", person("a", "A", nil), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Match("1 +", nil, nil)
	assert.ErrorIs(t, err, objectql.ErrParse)

	tables, err := Tables("person.flag and [family for family in x]")
	require.NoError(t, err)
	assert.Equal(t, []string{"person"}, tables)

	tables, err = Tables("note.text and person.flag")
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "note"}, tables)

	it, err := Apply(context.Background(), "person.flag", flaggedSource())
	require.NoError(t, err)
	results, err := it.All()
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
