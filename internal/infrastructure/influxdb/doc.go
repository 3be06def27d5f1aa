// Package influxdb provides InfluxDB connectivity for Gray Logic Presence.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writing and health monitoring.
//
// # Purpose
//
// This package stores presence telemetry as time series:
//   - beacon_ranging: proximity, RSSI and accuracy per room, one point per
//     ranging update
//   - room_occupancy: one point per enter/exit transition
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB,
//	    influxdb.WithLogger(log), influxdb.WithSite(cfg.Site.ID))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	engine := presence.New(bridge, store, bus, gate, presence.WithTelemetry(client))
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes, so recording
// never blocks the engine goroutine.
//
// # Error Handling
//
// Writes are non-blocking. A rejected batch is logged at warn level and
// dropped. Connection and health check errors are returned directly.
package influxdb
