package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsblank/object-ql/objectql"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
	assert.Equal(t, objectql.DefaultSchema, config.Schema())
}

func TestLoadConfigFile(t *testing.T) {
	config, err := LoadConfig(filepath.Join("testdata", "oql.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "python", config.Variant)
	assert.Equal(t, "testdata/records.yaml", config.Records)
	assert.Contains(t, config.Constants, "Custom")

	opts := config.Options("")
	assert.Equal(t, 250*time.Millisecond, opts.Timeout)
	assert.True(t, opts.Parser.GuardedAttributes)
	assert.False(t, opts.Parser.LiteralSets)

	opts = config.Options("row")
	assert.True(t, opts.Parser.LiteralSets)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OQL_STORE", "sqlite:${OQL_TEST_DIR}/records.db")
	t.Setenv("OQL_TEST_DIR", "/tmp/oql")
	t.Setenv("OQL_TIMEOUT", "2s")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, StoreConfig{Backend: "sqlite", Path: "/tmp/oql/records.db"}, config.Store)
	assert.Equal(t, 2*time.Second, config.Options("").Timeout)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"variant", func(c *Config) { c.Variant = "sql" }},
		{"timeout", func(c *Config) { c.Timeout = "soon" }},
		{"backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"path", func(c *Config) { c.Store.Backend = "badger" }},
		{"collection", func(c *Config) { c.Collections = []CollectionConfig{{Plural: "things"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.ErrorIs(t, config.Validate(), ErrConfigValidation)
		})
	}
}

func TestConfigSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
collections:
  - name: book
    plural: books
  - name: author
lookup_kinds: [author]
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	schema := config.Schema()
	assert.Equal(t, []string{"book", "author"}, schema.Names())
	assert.Equal(t, "books", schema.Plural("book"))
	assert.Equal(t, "author", schema.Plural("author"))
	assert.Equal(t, []string{"author"}, schema.LookupKinds)
}

func TestParseRecordArg(t *testing.T) {
	v, err := parseRecordArg("{handle: h1, n: 3}", "Person")
	require.NoError(t, err)
	assert.Equal(t, objectql.NewRecord("Person", "h1", map[string]any{"n": int64(3)}), v)

	v, err = parseRecordArg("[1, two]", "Person")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "two"}, v)

	path := filepath.Join(t.TempDir(), "rec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("_class: Note\n_handle: n1\ntext: hi\n"), 0o644))
	v, err = parseRecordArg("@"+path, "")
	require.NoError(t, err)
	assert.Equal(t, objectql.NewRecord("Note", "n1", map[string]any{"text": "hi"}), v)

	_, err = parseRecordArg("@"+filepath.Join(t.TempDir(), "none.yaml"), "")
	assert.Error(t, err)
}
