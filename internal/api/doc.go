// Package api provides the HTTP REST API and WebSocket server for Gray Logic Presence.
//
// It is the publication surface for presentation glue: room catalogue
// management, scan commands, live beacon telemetry, occupancy, permission
// state and a WebSocket stream of occupancy events.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Presence feed
//
// Clients connect to /api/v1/ws and watch events, optionally for a set of
// rooms (no rooms means all of them):
//
//	{"type":"watch","id":"1","events":["room.entered","room.exited"],"rooms":[5]}
//
// Events: room.entered, room.exited, permission.changed. Each watch or
// unwatch is answered with an ack carrying the resulting filter.
//
// # Authentication
//
// When security.jwt.secret is set, mutating routes require an HS256 bearer
// token with a subject. Read routes and the WebSocket are open.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
