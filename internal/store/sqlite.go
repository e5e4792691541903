// SQLite-backed TokenStore.
//
// WHY SQLITE FOR TWO STRINGS?
// The store must survive restarts, tolerate concurrent readers, and keep
// per-key writes atomic — exactly the guarantees an embedded database
// gives us for free, without inventing a file format with its own
// locking. modernc.org/sqlite is a pure Go translation of SQLite, so
// there is no CGo toolchain requirement and cross-compilation stays
// painless.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// SQLite implements TokenStore on a single-table SQLite database.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the token database at path and runs the
// schema migration.
//
// path examples:
//   - "data/session.db" → file-based, persistent
//   - ":memory:"        → in-memory, for tests
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	// Force an immediate connection so a bad path surfaces here, not on
	// the first Get during bootstrap.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}

	// WAL lets a reader (bootstrap) proceed while a login writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: setting WAL mode: %w", err)
	}

	s := &SQLite{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection pool. Defer it next to OpenSQLite.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tokens (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tokens table: %w", err)
	}
	return nil
}

// Get returns the stored value for key, or ok=false if the key is absent.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM tokens WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: reading %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, overwriting any previous value.
// A single UPSERT statement keeps the write atomic per key.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO tokens (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: writing %q: %w", key, err)
	}
	return nil
}

// Delete removes key entirely. Deleting an absent key is not an error —
// logout must be idempotent.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM tokens WHERE key = ?`, key,
	); err != nil {
		return fmt.Errorf("store: deleting %q: %w", key, err)
	}
	return nil
}
