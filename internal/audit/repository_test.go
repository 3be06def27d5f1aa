package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE audit_logs (
			id         TEXT PRIMARY KEY,
			action     TEXT NOT NULL,
			room_id    INTEGER,
			subject    TEXT,
			source     TEXT NOT NULL,
			details    TEXT,
			created_at TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int { return &v }

// newTestRepo returns a repository whose clock advances one second per entry.
func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo := NewSQLiteRepository(setupTestDB(t))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var n int
	repo.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return repo
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := &Entry{Action: ActionRoomCreate, RoomID: intPtr(5), Subject: "installer"}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(entry.ID) != len(idPrefix)+idRandomLen {
		t.Errorf("ID = %q, want %s + %d chars", entry.ID, idPrefix, idRandomLen)
	}
	if entry.Source != SourceAPI {
		t.Errorf("Source = %q, want %q", entry.Source, SourceAPI)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCreate_RequiresAction(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Create(context.Background(), &Entry{}); err == nil {
		t.Error("Create() expected error for missing action")
	}
}

func TestList_RoundTripAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entries := []*Entry{
		{Action: ActionRoomCreate, RoomID: intPtr(5), Subject: "installer"},
		{Action: ActionScanStart, RoomID: intPtr(5), Details: map[string]any{"started": true}},
		{Action: ActionRoomCreate, RoomID: intPtr(7)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 3 || len(res.Entries) != 3 {
		t.Fatalf("List() total=%d len=%d, want 3", res.Total, len(res.Entries))
	}
	if res.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", res.Limit, defaultLimit)
	}

	// Newest first.
	if res.Entries[0].RoomID == nil || *res.Entries[0].RoomID != 7 {
		t.Errorf("first entry = %+v, want room 7", res.Entries[0])
	}
	scan := res.Entries[1]
	if scan.Action != ActionScanStart || scan.Details["started"] != true {
		t.Errorf("second entry = %+v, want scan.start with details", scan)
	}
	if scan.Subject != "" {
		t.Errorf("Subject = %q, want empty", scan.Subject)
	}
	if !res.Entries[2].CreatedAt.Equal(entries[0].CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", res.Entries[2].CreatedAt, entries[0].CreatedAt)
	}
}

func TestList_Filters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, e := range []*Entry{
		{Action: ActionRoomCreate, RoomID: intPtr(1)},
		{Action: ActionScanStart, RoomID: intPtr(1)},
		{Action: ActionScanStart, RoomID: intPtr(2)},
		{Action: ActionScanStop, RoomID: intPtr(2)},
	} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
	}{
		{"by action", Filter{Action: ActionScanStart}, 2, 2},
		{"by room", Filter{RoomID: intPtr(2)}, 2, 2},
		{"by action and room", Filter{Action: ActionScanStart, RoomID: intPtr(1)}, 1, 1},
		{"paged", Filter{Limit: 3, Offset: 2}, 4, 2},
		{"limit clamped", Filter{Limit: 1000}, 4, 4},
		{"negative offset", Filter{Offset: -5}, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal || len(res.Entries) != tt.wantLen {
				t.Errorf("total=%d len=%d, want %d/%d", res.Total, len(res.Entries), tt.wantTotal, tt.wantLen)
			}
			if res.Limit > maxLimit {
				t.Errorf("Limit = %d exceeds %d", res.Limit, maxLimit)
			}
		})
	}
}

func TestList_Empty(t *testing.T) {
	repo := newTestRepo(t)

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Entries == nil {
		t.Error("Entries = nil, want empty slice")
	}
}
