package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/query"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	badgerStore, err := NewBadgerStore(filepath.Join(dir, "badger"))
	require.NoError(t, err)
	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "records.db"), objectql.DefaultSchema)
	require.NoError(t, err)
	memoryBadger, err := Open(BadgerBackend, "", objectql.DefaultSchema)
	require.NoError(t, err)

	stores := map[string]Store{
		"memory":        NewMemory(),
		"badger":        badgerStore,
		"badger-memory": memoryBadger,
		"sqlite":        sqliteStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func loadFixture(t *testing.T, s Store) {
	t.Helper()
	collections, err := LoadRecords(filepath.Join("testdata", "records.yaml"))
	require.NoError(t, err)
	require.NoError(t, collections.WriteTo(context.Background(), s))
}

func scanAll(t *testing.T, s objectql.Source, collection string) []*objectql.Record {
	t.Helper()
	it, err := s.Scan(context.Background(), collection)
	require.NoError(t, err)
	defer it.Close()

	var out []*objectql.Record
	for it.Next() {
		r, ok := it.Record().(*objectql.Record)
		require.True(t, ok)
		out = append(out, r)
	}
	require.NoError(t, it.Err())
	return out
}

func handles(records []*objectql.Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.Handle)
	}
	return out
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			loadFixture(t, s)

			people := scanAll(t, s, "person")
			assert.Equal(t, []string{"handle001", "handle002"}, handles(people))
			assert.Empty(t, scanAll(t, s, "place"))

			ada := people[0]
			assert.Equal(t, "Person", ada.Class)
			assert.Equal(t, int64(1), ada.Fields["gender"])
			name, ok := ada.Fields["primary_name"].(*objectql.Record)
			require.True(t, ok)
			assert.Equal(t, "Name", name.Class)
			assert.Equal(t, "Blank", name.Fields["surname"])

			rec, err := s.Resolve(ctx, "note", "handle003")
			require.NoError(t, err)
			assert.Equal(t, "note003", rec.(*objectql.Record).Fields["gramps_id"])

			_, err = s.Resolve(ctx, "note", "nobody")
			var herr *objectql.HandleError
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, "note", herr.Kind)
			assert.ErrorIs(t, err, objectql.ErrHandleNotFound)

			// replacing a record keeps its position
			require.NoError(t, s.Put(ctx, "person",
				objectql.NewRecord("Person", "handle001", map[string]any{"gramps_id": "person001b"}),
				objectql.NewRecord("Person", "handle004", map[string]any{"gramps_id": "person004"}),
			))
			people = scanAll(t, s, "person")
			assert.Equal(t, []string{"handle001", "handle002", "handle004"}, handles(people))
			assert.Equal(t, "person001b", people[0].Fields["gramps_id"])
		})
	}
}

func TestStoresWithQueries(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			loadFixture(t, s)

			it, err := query.Iterate(ctx, "any([get_person(ref).primary_name.surname == 'Blank' for ref in person.person_ref_list])", s)
			require.NoError(t, err)
			records, err := it.All()
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "handle002", records[0].(*objectql.Record).Handle)

			q, err := query.New("any(get_note(n).text.startswith('Met') for n in person.get_note_list())",
				query.PythonOptions().WithSource(s))
			require.NoError(t, err)
			rit, err := q.Apply(ctx)
			require.NoError(t, err)
			results, err := rit.All()
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.False(t, results[0].Matched)
			assert.True(t, results[1].Matched)

			q, err = query.New("{'class'} == 'family' and get_person({'father_handle'})['gramps_id'] == 'person002'",
				query.RowOptions().WithSource(s))
			require.NoError(t, err)
			it, err = q.Iterate(ctx)
			require.NoError(t, err)
			records, err = it.All()
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "family001", records[0].(*objectql.Record).Handle)
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	r := objectql.NewRecord("Person", "h1", map[string]any{
		"gramps_id": "I1",
		"age":       int64(42),
		"height":    1.75,
		"alive":     true,
		"tags":      []any{"a", int64(1)},
		"name":      objectql.NewObject("Name", map[string]any{"surname": "Blank"}),
		"extra":     map[string]any{"k": "v"},
		"method":    objectql.Function(func([]any, map[string]any) (any, error) { return nil, nil }),
	})

	data, err := EncodeRecord(r)
	require.NoError(t, err)
	got, err := DecodeRecord(data)
	require.NoError(t, err)

	assert.Equal(t, "Person", got.Class)
	assert.Equal(t, "h1", got.Handle)
	assert.Equal(t, int64(42), got.Fields["age"])
	assert.Equal(t, 1.75, got.Fields["height"])
	assert.Equal(t, true, got.Fields["alive"])
	assert.Equal(t, []any{"a", int64(1)}, got.Fields["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, got.Fields["extra"])
	assert.Equal(t, objectql.NewObject("Name", map[string]any{"surname": "Blank"}), got.Fields["name"])
	assert.NotContains(t, got.Fields, "method")

	_, err = DecodeRecord([]byte("a: 1"))
	assert.Error(t, err)
}

func TestParseRecords(t *testing.T) {
	collections, err := ParseRecords([]byte(`
person:
  - handle: h1
    gramps_id: I1
  - _class: Individual
    _handle: h2
note: []
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"note", "person"}, collections.Names())
	assert.Equal(t, 2, collections.Count())

	people := collections["person"]
	assert.Equal(t, objectql.NewRecord("Person", "h1", map[string]any{"gramps_id": "I1"}), people[0])
	assert.Equal(t, "Individual", people[1].Class)
	assert.Equal(t, "h2", people[1].Handle)

	_, err = ParseRecords([]byte("person:\n  - handle: 12\n"))
	assert.Error(t, err)

	_, err = ParseRecords([]byte("person: 3"))
	assert.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("postgres", "", objectql.DefaultSchema)
	assert.Error(t, err)
}

func TestMemoryLen(t *testing.T) {
	m := NewMemoryFrom(Collections{"person": {objectql.NewRecord("Person", "h", nil)}})
	assert.Equal(t, 1, m.Len("person"))
	assert.Equal(t, 0, m.Len("note"))
}

func TestMemoryScanIsSnapshot(t *testing.T) {
	ctx := context.Background()
	old := objectql.NewRecord("Person", "h1", map[string]any{"gramps_id": "I1"})
	m := NewMemoryFrom(Collections{"person": {old}})

	it, err := m.Scan(ctx, "person")
	require.NoError(t, err)

	replacement := objectql.NewRecord("Person", "h1", map[string]any{"gramps_id": "I2"})
	require.NoError(t, m.Put(ctx, "person", replacement))

	require.True(t, it.Next())
	assert.Same(t, old, it.Record())

	got, err := m.Resolve(ctx, "person", "h1")
	require.NoError(t, err)
	assert.Same(t, replacement, got)
}

func TestMemoryConcurrentReplace(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFrom(Collections{"person": {
		objectql.NewRecord("Person", "h1", nil),
		objectql.NewRecord("Person", "h2", nil),
	}})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = m.Put(ctx, "person", objectql.NewRecord("Person", "h1", map[string]any{"n": int64(i)}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			it, err := m.Scan(ctx, "person")
			if err != nil {
				return
			}
			for it.Next() {
				_ = it.Record()
			}
		}
	}()
	wg.Wait()
	assert.Equal(t, 2, m.Len("person"))
}
