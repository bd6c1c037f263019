package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/env"
	"github.com/dsblank/object-ql/objectql/storage"
)

func testContext(t *testing.T, variant string) (*Context, *bytes.Buffer) {
	t.Helper()
	config := DefaultConfig()
	config.Records = filepath.Join("testdata", "records.yaml")

	var out bytes.Buffer
	ctx := NewContext(config, variant, false)
	ctx.Out = &out
	return ctx, &out
}

func TestParseCommand(t *testing.T) {
	ctx, out := testContext(t, "row")
	require.NoError(t, (&ParseCmd{Query: "{'class'}=='person'"}).Run(ctx))
	assert.Equal(t, "row['class'] == 'person'\n", out.String())

	err := (&ParseCmd{Query: "exec('x')"}).Run(ctx)
	assert.ErrorIs(t, err, objectql.ErrValidation)
}

func TestTablesCommand(t *testing.T) {
	ctx, out := testContext(t, "")
	require.NoError(t, (&TablesCmd{Query: "note.text and person.gender == Person.MALE"}).Run(ctx))
	assert.Equal(t, "person\nnote\n", out.String())
}

func TestMatchCommand(t *testing.T) {
	tests := []struct {
		query  string
		record string
		class  string
		want   string
	}{
		{"person.gramps_id == 'I1'", "{handle: h1, gramps_id: I1}", "Person", "true\n"},
		{"person.gramps_id == 'I1'", "{gramps_id: I2}", "Person", "false\n"},
		{"2 in obj", "[1, 2, 3]", "", "true\n"},
		{"obj['a'] > 1", "{a: 2}", "", "true\n"},
		{"obj.missing", "{a: 2}", "", "false\n"},
		{"get_person('handle001').gramps_id == 'person001'", "{}", "Thing", "true\n"},
	}

	for _, tt := range tests {
		ctx, out := testContext(t, "")
		cmd := &MatchCmd{Query: tt.query, Record: tt.record, Class: tt.class}
		require.NoError(t, cmd.Run(ctx), tt.query)
		assert.Equal(t, tt.want, out.String(), tt.query)
	}
}

func TestIterateCommand(t *testing.T) {
	ctx, out := testContext(t, "")
	cmd := &IterateCmd{Query: "person.gender == Person.MALE", Fields: []string{"gramps_id", "gender"}}
	require.NoError(t, cmd.Run(ctx))

	s := out.String()
	assert.Contains(t, s, "person001")
	assert.NotContains(t, s, "person002")
	assert.Contains(t, s, "_1 rows (")
}

func TestApplyCommand(t *testing.T) {
	ctx, out := testContext(t, "python")
	cmd := &ApplyCmd{Query: "person.gender == Person.FEMALE"}
	require.NoError(t, cmd.Run(ctx))

	s := out.String()
	assert.Contains(t, s, "matched")
	assert.Contains(t, s, "_2 rows (")
}

func TestReplCommand(t *testing.T) {
	ctx, out := testContext(t, "")
	ctx.In = strings.NewReader(strings.Join([]string{
		".help",
		".parse {'a'}",
		".tables family.father_handle",
		"person.gramps_id == 'person002'",
		".apply note",
		"1 +",
		".bogus",
		".exit",
		"person",
	}, "\n"))

	require.NoError(t, (&ReplCmd{}).Run(ctx))

	s := out.String()
	assert.Contains(t, s, "=== oql interactive mode ===")
	assert.Contains(t, s, "{'a'}\n")
	assert.Contains(t, s, "family\n")
	assert.Contains(t, s, "person002")
	assert.Contains(t, s, "note003")
	assert.Contains(t, s, "Error: ")
	assert.Contains(t, s, "Unknown command")
}

func TestStoreBackedCommands(t *testing.T) {
	dir := t.TempDir()
	collections, err := storage.LoadRecords(filepath.Join("testdata", "records.yaml"))
	require.NoError(t, err)

	for _, backend := range []storage.Backend{storage.BadgerBackend, storage.SQLiteBackend} {
		t.Run(string(backend), func(t *testing.T) {
			path := filepath.Join(dir, string(backend))
			store, err := storage.Open(backend, path, objectql.DefaultSchema)
			require.NoError(t, err)
			require.NoError(t, collections.WriteTo(t.Context(), store))
			require.NoError(t, store.Close())

			config := DefaultConfig()
			config.Store = StoreConfig{Backend: string(backend), Path: path}
			require.NoError(t, config.Validate())

			var out bytes.Buffer
			ctx := NewContext(config, "", false)
			ctx.Out = &out
			cmd := &IterateCmd{Query: "any([get_note(n).text.startswith('Met') for n in person.note_list])"}
			require.NoError(t, cmd.Run(ctx))
			assert.Contains(t, out.String(), "person002")
		})
	}
}

func TestConfigConstants(t *testing.T) {
	t.Cleanup(env.ResetConstants)

	config, err := LoadConfig(filepath.Join("testdata", "oql.yaml"))
	require.NoError(t, err)

	var out bytes.Buffer
	ctx := NewContext(config, "", false)
	ctx.Out = &out
	require.NoError(t, (&MatchCmd{Query: "Custom.ANSWER == 42", Record: "[]"}).Run(ctx))
	assert.Equal(t, "true\n", out.String())
	assert.NotContains(t, env.ConstantNames(), "EventType")
}
