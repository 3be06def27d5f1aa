// Package location is the catalogue of pre-registered rooms.
//
// Each room may carry the identity of the beacon installed in it (vendor
// UUID, major, minor). Rooms are never discovered automatically: they are
// created through the API and only rooms with a complete identity can be
// scanned.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines
// (SQLite WAL mode + connection pooling).
package location
