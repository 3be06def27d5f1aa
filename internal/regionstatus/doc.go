// Package regionstatus persists the last known entered/exited flag of every
// monitored region.
//
// The status map (region identifier -> entered) is the only durable state of
// the presence engine. It is read once at startup and written on every
// genuine transition, always before the transition is published, so the
// stored value equals the last event subscribers have seen.
//
// Two backends are provided:
//   - SQLite: a single JSON document in the kv_entries table
//   - Redis: a hash with one field per region
//
// A Store is not safe for concurrent use. It is owned by the engine
// goroutine; other goroutines receive copies through Snapshot.
package regionstatus
