// Package permission derives whether beacon monitoring is usable.
//
// Two inputs arrive from the platform: the location authorization level and
// whether region monitoring is available on the hardware. The Gate combines
// them into a tri-state flag. It is unknown until the first input arrives,
// granted when authorization is at least "when in use" and monitoring is
// available, and denied otherwise.
//
// Every change is published as an immutable Snapshot to subscribers, which
// typically prompt the user to fix settings when the state is denied.
package permission
