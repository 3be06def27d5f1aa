package regionstatus

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/database"
)

// SQLiteBackend stores the status map as one JSON entry in the main database.
type SQLiteBackend struct {
	db   *database.DB
	name string
}

// NewSQLiteBackend returns a backend writing the EntryName entry of db.
func NewSQLiteBackend(db *database.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db, name: EntryName}
}

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context) (Status, error) {
	status := Status{}
	err := b.db.GetEntry(ctx, b.name, &status)
	if errors.Is(err, database.ErrEntryNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Put implements Backend. The whole map is rewritten in one transaction.
func (b *SQLiteBackend) Put(ctx context.Context, regionID string, entered bool) error {
	return database.UpdateEntry(ctx, b.db, b.name, func(s *Status) error {
		if *s == nil {
			*s = Status{}
		}
		(*s)[regionID] = entered
		return nil
	})
}
