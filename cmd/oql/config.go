package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/dsblank/object-ql/objectql"
	"github.com/dsblank/object-ql/objectql/env"
	"github.com/dsblank/object-ql/objectql/query"
	"github.com/dsblank/object-ql/objectql/storage"
)

// ErrConfigValidation is returned when configuration validation fails
var ErrConfigValidation = errors.New("configuration validation failed")

// Config is the oql configuration file.
type Config struct {
	// Variant is object, row or python.
	Variant string `yaml:"variant"`
	// Timeout bounds each evaluation, as a Go duration.
	Timeout string      `yaml:"timeout"`
	Store   StoreConfig `yaml:"store"`
	// Records is a YAML record file loaded into the memory backend.
	Records     string             `yaml:"records"`
	Collections []CollectionConfig `yaml:"collections"`
	LookupKinds []string           `yaml:"lookup_kinds"`
	// Constants replaces the built-in constant groups when set.
	Constants env.ConstantGroups `yaml:"constants"`
	// Fields are the record fields shown in result tables.
	Fields []string `yaml:"fields"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// CollectionConfig names one collection.
type CollectionConfig struct {
	Name   string `yaml:"name"`
	Plural string `yaml:"plural"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Variant: "object",
		Timeout: "1s",
		Store:   StoreConfig{Backend: string(storage.MemoryBackend)},
		Fields:  []string{"gramps_id"},
	}
}

// LoadConfig reads path, applies .env and OQL_* overrides and validates
// the result. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if path != "" && fileExists(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Records = expandEnvVars(config.Records)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides reads OQL_STORE (backend or backend:path) and
// OQL_TIMEOUT.
func applyEnvOverrides(config *Config) {
	if store := os.Getenv("OQL_STORE"); store != "" {
		backend, path, _ := strings.Cut(store, ":")
		config.Store = StoreConfig{Backend: backend, Path: path}
	}
	if timeout := os.Getenv("OQL_TIMEOUT"); timeout != "" {
		config.Timeout = timeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Variant {
	case "", "object", "row", "python":
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrConfigValidation, c.Variant)
	}
	if _, err := c.timeout(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	switch storage.Backend(c.Store.Backend) {
	case "", storage.MemoryBackend:
	case storage.BadgerBackend, storage.SQLiteBackend:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: %s store needs a path", ErrConfigValidation, c.Store.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrConfigValidation, c.Store.Backend)
	}
	for _, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("%w: collection without a name", ErrConfigValidation)
		}
	}
	return nil
}

func (c *Config) timeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// Schema returns the configured schema, falling back to the default one
// for anything not configured.
func (c *Config) Schema() objectql.Schema {
	schema := objectql.DefaultSchema
	if len(c.Collections) > 0 {
		schema.Collections = make([]objectql.Collection, len(c.Collections))
		for i, col := range c.Collections {
			schema.Collections[i] = objectql.Collection{Name: col.Name, Plural: col.Plural}
		}
	}
	if len(c.LookupKinds) > 0 {
		schema.LookupKinds = c.LookupKinds
	}
	return schema
}

// Options returns the query options of the configured variant.
func (c *Config) Options(variant string) query.Options {
	if variant == "" {
		variant = c.Variant
	}
	var opts query.Options
	switch variant {
	case "row":
		opts = query.RowOptions()
	case "python":
		opts = query.PythonOptions()
	default:
		opts = query.ObjectOptions()
	}
	opts.Schema = c.Schema()
	if d, err := c.timeout(); err == nil && d > 0 {
		opts.Timeout = d
	}
	return opts
}

// ApplyConstants installs the configured constant groups.
func (c *Config) ApplyConstants() {
	if len(c.Constants) > 0 {
		env.SetConstants(c.Constants)
	}
}

// OpenStore opens the configured store. The memory backend is filled from
// the records file.
func (c *Config) OpenStore() (storage.Store, error) {
	backend := storage.Backend(c.Store.Backend)
	if backend == "" || backend == storage.MemoryBackend {
		if c.Records == "" {
			return storage.NewMemory(), nil
		}
		collections, err := storage.LoadRecords(c.Records)
		if err != nil {
			return nil, err
		}
		return storage.NewMemoryFrom(collections), nil
	}
	return storage.Open(backend, c.Store.Path, c.Schema())
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	// Try to load .env file from current directory
	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return nil
}

var (
	bracedVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = bracedVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
	return bareVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
