// Package database provides SQLite connectivity for Gray Logic Presence.
//
// This package manages:
//   - Database connection with WAL mode and FULL synchronous writes
//   - Schema migrations loaded from an fs.FS (embedded by package migrations)
//   - Named JSON entries (kv_entries) for small documents such as the
//     region status map
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	applied, err := db.Migrate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are additive-only. Files are named
// YYYYMMDD_HHMMSS_description.up.sql with an optional .down.sql twin kept
// for manual rollback.
package database
