package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Schema creates the key-value table. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// KVRepository stores opaque values by key
type KVRepository struct {
	db *DB
}

// NewKVRepository creates a new key-value repository
func NewKVRepository(db *DB) *KVRepository {
	return &KVRepository{db: db}
}

type kvRow struct {
	Key       string    `db:"key"`
	Value     []byte    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Migrate creates the table if it is missing.
func (r *KVRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating kv_store: %w", err)
	}
	return nil
}

// Get retrieves a value. The bool is false when the key does not exist.
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT key, value, updated_at FROM kv_store WHERE key = $1`

	var row kvRow
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return row.Value, true, nil
}

const upsertQuery = `
	INSERT INTO kv_store (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
`

// Set upserts a value.
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	if _, err := r.db.ExecContext(ctx, upsertQuery, key, value); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes a value. Deleting a missing key is not an error.
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Update replaces the value of key with fn's result in one transaction. An
// advisory lock on the key serializes writers across processes, including
// the first write of a key that has no row yet. An error from fn rolls back
// and is returned unchanged.
func (r *KVRepository) Update(ctx context.Context, key string, fn func(current []byte, ok bool) ([]byte, error)) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("locking %s: %w", key, err)
		}

		var current []byte
		ok := true
		err := tx.QueryRowxContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			ok = false
		} else if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}

		next, err := fn(current, ok)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, upsertQuery, key, next); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
		return nil
	})
}
