package textcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetupSchema initializes the cache table in the provided database. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS corpus_cache (
    cache_key TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    stored_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_corpus_cache_stored_at ON corpus_cache (stored_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("could not create cache schema: %w", err)
	}
	return nil
}

// SQLiteStore is the default persistent Store, backed by a single-owner
// SQLite database. stored_at is kept as a unix timestamp column so aged
// entries can be evicted without reading payloads.
type SQLiteStore struct {
	db         *sql.DB
	stmtGet    *sql.Stmt
	stmtPut    *sql.Stmt
	stmtDelete *sql.Stmt
	stmtEvict  *sql.Stmt
}

// NewSQLiteStore creates a SQLiteStore over an open database on which
// SetupSchema has been run. It pre-compiles all statements, returning an
// error if any preparation fails.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	stmtGet, err := db.Prepare(`SELECT payload FROM corpus_cache WHERE cache_key = ?;`)
	if err != nil {
		return nil, err
	}

	stmtPut, err := db.Prepare(`INSERT INTO corpus_cache (cache_key, payload, stored_at) VALUES (?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM corpus_cache WHERE cache_key = ?;`)
	if err != nil {
		return nil, err
	}

	stmtEvict, err := db.Prepare(`DELETE FROM corpus_cache WHERE stored_at < ?;`)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{
		db:         db,
		stmtGet:    stmtGet,
		stmtPut:    stmtPut,
		stmtDelete: stmtDelete,
		stmtEvict:  stmtEvict,
	}, nil
}

// Close releases all prepared statements held by the store. It does not
// close the underlying database.
func (s *SQLiteStore) Close() {
	_ = s.stmtGet.Close()
	_ = s.stmtPut.Close()
	_ = s.stmtDelete.Close()
	_ = s.stmtEvict.Close()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.stmtGet.QueryRowContext(ctx, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, key string, payload []byte, storedAt time.Time) error {
	_, err := s.stmtPut.ExecContext(ctx, key, payload, storedAt.Unix())
	return err
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.stmtDelete.ExecContext(ctx, key)
	return err
}

// EvictOlderThan implements Store.
func (s *SQLiteStore) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.stmtEvict.ExecContext(ctx, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
