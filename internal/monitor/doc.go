// Package monitor owns the set of beacons being scanned.
//
// For every tracked room the Monitor has issued exactly one start-monitoring
// and one start-ranging command to the Platform, and holds the latest ranging
// telemetry for the room's beacon. Stopping a room issues the matching stop
// commands before the entry is released, so platform region slots are never
// leaked.
//
// Platform commands are fire-and-confirm: an error from the Platform means
// the command could not be sent, not that the scanner rejected it.
// Asynchronous scanner failures arrive later as callbacks and are handled
// through Release.
//
// A Monitor is not safe for concurrent use; it is owned by the engine
// goroutine.
package monitor
