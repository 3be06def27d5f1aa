// Package audit records operator actions taken through the API.
//
// Each entry names the action (room create, rename, beacon assignment,
// delete, scan start and stop), the room it touched, and the token
// subject that requested it. Entries are append-only and listed newest
// first.
package audit
