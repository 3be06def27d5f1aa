package database

import (
	"context"
	"errors"
	"testing"
)

func TestGetEntry_NotFound(t *testing.T) {
	db := openMigratedDB(t)

	var v map[string]bool
	err := db.GetEntry(context.Background(), "missing", &v)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("GetEntry() error = %v, want ErrEntryNotFound", err)
	}
}

// seedEntry replaces the entry under name with v.
func seedEntry(t *testing.T, db *DB, name string, v map[string]bool) {
	t.Helper()
	err := UpdateEntry(context.Background(), db, name, func(m *map[string]bool) error {
		*m = v
		return nil
	})
	if err != nil {
		t.Fatalf("seeding %s: %v", name, err)
	}
}

func TestUpdateEntry_Replace(t *testing.T) {
	db := openMigratedDB(t)

	seedEntry(t, db, "region_status", map[string]bool{"5": true})
	seedEntry(t, db, "region_status", map[string]bool{"5": false, "7": true})

	var got map[string]bool
	if err := db.GetEntry(context.Background(), "region_status", &got); err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if len(got) != 2 || got["5"] || !got["7"] {
		t.Errorf("GetEntry() = %v, want map[5:false 7:true]", got)
	}
}

func TestUpdateEntry(t *testing.T) {
	db := openMigratedDB(t)
	ctx := context.Background()

	// Missing entry starts from the zero value.
	err := UpdateEntry(ctx, db, "region_status", func(m *map[string]bool) error {
		if *m != nil {
			t.Errorf("expected nil map for missing entry, got %v", *m)
		}
		*m = map[string]bool{"3": true}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}

	err = UpdateEntry(ctx, db, "region_status", func(m *map[string]bool) error {
		(*m)["4"] = true
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateEntry() second error = %v", err)
	}

	var got map[string]bool
	if err := db.GetEntry(ctx, "region_status", &got); err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if !got["3"] || !got["4"] {
		t.Errorf("GetEntry() = %v, want both 3 and 4 entered", got)
	}
}

func TestUpdateEntry_CallbackErrorRollsBack(t *testing.T) {
	db := openMigratedDB(t)
	ctx := context.Background()

	seedEntry(t, db, "region_status", map[string]bool{"1": true})

	errBoom := errors.New("boom")
	err := UpdateEntry(ctx, db, "region_status", func(m *map[string]bool) error {
		(*m)["1"] = false
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("UpdateEntry() error = %v, want errBoom", err)
	}

	var got map[string]bool
	if err := db.GetEntry(ctx, "region_status", &got); err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if !got["1"] {
		t.Errorf("entry changed despite callback error: %v", got)
	}
}
