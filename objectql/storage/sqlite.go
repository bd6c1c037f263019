package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dsblank/object-ql/objectql"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore keeps each collection in its own table, named after the
// collection's plural (person records live in "people").
type SQLiteStore struct {
	db     *sql.DB
	schema objectql.Schema

	mu     sync.Mutex
	tables map[string]bool
}

// NewSQLiteStore creates or opens a SQLite database file at path. Tables
// for every collection and lookup kind of schema are created up front.
func NewSQLiteStore(path string, schema objectql.Schema) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A scan holds one connection while lookups made by the query being
	// evaluated read on another.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, schema: schema, tables: make(map[string]bool)}
	kinds := append(schema.Names(), schema.LookupKinds...)
	for _, kind := range kinds {
		if _, err := s.table(context.Background(), kind); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// table returns the table of a collection, creating it if needed.
func (s *SQLiteStore) table(ctx context.Context, collection string) (string, error) {
	name := s.schema.Plural(collection)
	if !tableName.MatchString(name) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[name] {
		return name, nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		seq    INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT UNIQUE,
		class  TEXT NOT NULL,
		body   TEXT NOT NULL
	)`, name)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("failed to create table %s: %w", name, err)
	}
	s.tables[name] = true
	return name, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, collection string, records ...*objectql.Record) error {
	table, err := s.table(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q (handle, class, body) VALUES (?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET class = excluded.class, body = excluded.body`, table))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		body, err := EncodeRecord(r)
		if err != nil {
			return err
		}
		var handle any
		if r.Handle != "" {
			handle = r.Handle
		}
		if _, err := stmt.ExecContext(ctx, handle, r.Class, string(body)); err != nil {
			return fmt.Errorf("failed to write %s %q: %w", collection, r.Handle, err)
		}
	}
	return tx.Commit()
}

// Scan implements objectql.Source.
func (s *SQLiteStore) Scan(ctx context.Context, collection string) (objectql.Iterator, error) {
	table, err := s.table(ctx, collection)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT body FROM %q ORDER BY seq`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	return &sqliteIterator{rows: rows}, nil
}

// Resolve implements objectql.Resolver.
func (s *SQLiteStore) Resolve(ctx context.Context, kind, handle string) (any, error) {
	table, err := s.table(ctx, kind)
	if err != nil {
		return nil, err
	}

	var body string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT body FROM %q WHERE handle = ?`, table), handle).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &objectql.HandleError{Kind: kind, Handle: handle}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s %q: %w", kind, handle, err)
	}
	return DecodeRecord([]byte(body))
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sqliteIterator struct {
	rows   *sql.Rows
	record *objectql.Record
	err    error
}

func (i *sqliteIterator) Next() bool {
	if i.err != nil || !i.rows.Next() {
		i.record = nil
		return false
	}
	var body string
	if i.err = i.rows.Scan(&body); i.err != nil {
		return false
	}
	i.record, i.err = DecodeRecord([]byte(body))
	return i.err == nil
}

func (i *sqliteIterator) Record() any {
	if i.record == nil {
		return nil
	}
	return i.record
}

func (i *sqliteIterator) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.rows.Err()
}

func (i *sqliteIterator) Close() error { return i.rows.Close() }
