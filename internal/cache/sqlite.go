package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (kind, key)
);
`

// DB is a SQLite database holding every cache kind in one table.
type DB struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the cache database at path.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "cache: mkdir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		sqliteMigration,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, eris.Wrap(err, "cache: init sqlite")
		}
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Counts returns the number of entries per kind.
func (d *DB) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM cache_entries GROUP BY kind`)
	if err != nil {
		return nil, eris.Wrap(err, "cache: count entries")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, eris.Wrap(err, "cache: scan count")
		}
		out[kind] = n
	}
	return out, eris.Wrap(rows.Err(), "cache: iterate counts")
}

// SQLiteStore is one cache kind inside a shared DB. Values are stored as
// JSON text so the rows stay inspectable with the sqlite3 shell.
type SQLiteStore[V any] struct {
	db   *DB
	kind string
}

// NewSQLiteStore returns the store for kind inside db.
func NewSQLiteStore[V any](db *DB, kind string) *SQLiteStore[V] {
	return &SQLiteStore[V]{db: db, kind: kind}
}

func (s *SQLiteStore[V]) Load(ctx context.Context) (map[string]V, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT key, value FROM cache_entries WHERE kind = ?`, s.kind)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: query %s", s.kind)
	}
	defer rows.Close()

	entries := make(map[string]V)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, eris.Wrapf(err, "cache: scan %s", s.kind)
		}
		var v V
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, eris.Wrapf(err, "cache: decode %s/%s", s.kind, key)
		}
		entries[key] = v
	}
	return entries, eris.Wrapf(rows.Err(), "cache: iterate %s", s.kind)
}

// Save replaces every row of the kind in one transaction.
func (s *SQLiteStore[V]) Save(ctx context.Context, entries map[string]V) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "cache: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE kind = ?`, s.kind); err != nil {
		return eris.Wrapf(err, "cache: clear %s", s.kind)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cache_entries (kind, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "cache: prepare insert")
	}
	defer stmt.Close()

	for key, v := range entries {
		raw, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "cache: encode %s/%s", s.kind, key)
		}
		if _, err := stmt.ExecContext(ctx, s.kind, key, string(raw)); err != nil {
			return eris.Wrapf(err, "cache: insert %s/%s", s.kind, key)
		}
	}

	return eris.Wrap(tx.Commit(), "cache: commit")
}
