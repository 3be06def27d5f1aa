package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEntryNotFound is returned when a named entry has never been written.
var ErrEntryNotFound = errors.New("database: entry not found")

const upsertEntrySQL = `INSERT INTO kv_entries (name, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// GetEntry decodes the JSON value stored under name into dst.
//
// Named entries are the key-value half of the schema: small documents that
// are read whole at startup and rewritten whole on change (kv_entries table).
func (db *DB) GetEntry(ctx context.Context, name string, dst any) error {
	var raw string
	err := db.QueryRowContext(ctx,
		"SELECT value FROM kv_entries WHERE name = ?", name,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEntryNotFound
	}
	if err != nil {
		return fmt.Errorf("reading entry %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decoding entry %s: %w", name, err)
	}
	return nil
}

// UpdateEntry reads the entry under name, applies fn and writes the result
// back inside one transaction. A missing entry reaches fn as the zero T.
func UpdateEntry[T any](ctx context.Context, db *DB, name string, fn func(v *T) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var v T
	var raw string
	err = tx.QueryRowContext(ctx, "SELECT value FROM kv_entries WHERE name = ?", name).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("reading entry %s: %w", name, err)
	default:
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return fmt.Errorf("decoding entry %s: %w", name, err)
		}
	}

	if err := fn(&v); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, upsertEntrySQL, name, string(data), now()); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entry %s: %w", name, err)
	}
	return nil
}

// now returns the current UTC time in the stored timestamp format.
func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
