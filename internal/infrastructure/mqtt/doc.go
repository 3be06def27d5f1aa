// Package mqtt provides MQTT client connectivity for Gray Logic Presence.
//
// This package manages:
//   - Connection to the Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Retained service status with a will for crash detection
//   - Replay of subscriptions after every reconnect
//
// # Architecture
//
// MQTT connects the presence service to the BLE scanner bridge and to the
// consumers of occupancy state:
//
//	BLE scanner bridge ↔ MQTT Broker ↔ Presence ↔ MQTT Broker ↔ UI / automation
//
// Scanner callbacks arrive on graylogic/beacon/ble/{kind}; monitoring
// commands leave on graylogic/command/ble/{region_id}; occupancy is
// published retained on graylogic/core/presence/{room_id}/state.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT,
//	    mqtt.WithLogger(log),
//	    mqtt.WithSite(cfg.Site.ID),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.CorePresenceState(5), state, true)
package mqtt
