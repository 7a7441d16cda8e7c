package statestore

import (
	"context"
	"fmt"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// SQLiteBackend stores state blobs in a single local SQLite database. It's
// the single-process, crash-safe alternative to FileBackend's one-file-
// per-key layout, using the same pooled-connection, sqlitex.Exec style the
// teacher's own local dedup cache is built on.
type SQLiteBackend struct {
	pool *sqlitex.Pool
}

// NewSQLiteBackend opens (creating if necessary) a SQLite database at path
// and ensures its schema exists.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	pool, err := sqlitex.Open(path, 0, 10)
	if err != nil {
		return nil, fmt.Errorf("statestore: opening sqlite database %q: %w", path, err)
	}
	conn := pool.Get(context.Background())
	if conn == nil {
		pool.Close()
		return nil, fmt.Errorf("statestore: acquiring sqlite connection to initialize %q", path)
	}
	err = sqlitex.Exec(conn, `CREATE TABLE IF NOT EXISTS state (key TEXT PRIMARY KEY, data BLOB NOT NULL)`,
		func(*sqlite.Stmt) error { return nil })
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("statestore: creating state table in %q: %w", path, err)
	}
	return &SQLiteBackend{pool: pool}, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, key string, data []byte) error {
	conn := b.pool.Get(ctx)
	if conn == nil {
		return fmt.Errorf("statestore: acquiring sqlite connection for key %q: %w", key, ctx.Err())
	}
	defer b.pool.Put(conn)

	err := sqlitex.Exec(conn,
		`INSERT INTO state (key, data) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET data = excluded.data`,
		func(*sqlite.Stmt) error { return nil }, key, data)
	if err != nil {
		return fmt.Errorf("statestore: writing key %q: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	conn := b.pool.Get(ctx)
	if conn == nil {
		return nil, fmt.Errorf("statestore: acquiring sqlite connection for key %q: %w", key, ctx.Err())
	}
	defer b.pool.Put(conn)

	var data []byte
	found := false
	err := sqlitex.Exec(conn, `SELECT data FROM state WHERE key = ?`, func(stmt *sqlite.Stmt) error {
		found = true
		data = make([]byte, stmt.ColumnLen(0))
		stmt.ColumnBytes(0, data)
		return nil
	}, key)
	if err != nil {
		return nil, fmt.Errorf("statestore: reading key %q: %w", key, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return data, nil
}

// Close releases the underlying connection pool.
func (b *SQLiteBackend) Close() error {
	return b.pool.Close()
}
