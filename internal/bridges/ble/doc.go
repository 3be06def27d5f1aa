// Package ble connects the presence engine to a BLE scanner bridge over MQTT.
//
// The scanner is the platform location subsystem: it monitors beacon regions
// and ranges beacons on behalf of Core. This package translates in both
// directions:
//
//	┌─────────────────┐  command/request   ┌─────────────────┐
//	│ presence.Engine │───────────────────►│   BLE scanner   │
//	│   (Core)        │◄───────────────────│   bridge        │
//	└─────────────────┘  beacon callbacks  └─────────────────┘
//
// # Topics
//
// Commands (Core → scanner):
//
//	graylogic/command/ble/{region_id}      start/stop monitoring and ranging
//	graylogic/request/ble/authorization    ask the scanner to (re)report authorization
//
// Callbacks (scanner → Core):
//
//	graylogic/beacon/ble/region            {region_id, region_type, state}
//	graylogic/beacon/ble/ranging           {beacons: [...]}
//	graylogic/beacon/ble/authorization     {status, monitoring_available}
//	graylogic/beacon/ble/error             {region_id, code, message}
//
// Malformed callbacks are logged at debug level and dropped.
//
// # Occupancy
//
// OccupancyPublisher mirrors the engine's event bus and permission gate back
// onto MQTT as retained per-room state and room_entered/room_exited events.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package ble
