package mqtt

import (
	"strconv"
	"strings"
)

// Topic roots. Bridges share the flat graylogic/{category}/{protocol}/{id}
// scheme; what the presence service itself publishes lives under
// graylogic/core.
const (
	rootBridge = "graylogic"
	rootCore   = "graylogic/core"
	rootSystem = "graylogic/system"
	rootUI     = "graylogic/ui"
)

// singleLevel is the MQTT single-level wildcard.
const singleLevel = "+"

func topic(levels ...string) string {
	return strings.Join(levels, "/")
}

// Topics builds the topics the presence service talks on.
//
//	mqtt.Topics{}.BridgeCommand("ble", "5") // graylogic/command/ble/5
type Topics struct{}

// BridgeCommand addresses a command to one target of a bridge.
func (Topics) BridgeCommand(protocol, target string) string {
	return topic(rootBridge, "command", protocol, target)
}

// BridgeRequest addresses a one-off request (for example "authorization").
func (Topics) BridgeRequest(protocol, request string) string {
	return topic(rootBridge, "request", protocol, request)
}

// BridgeBeacon is where a scanner reports one kind of callback:
// region, ranging, authorization or error.
func (Topics) BridgeBeacon(protocol, kind string) string {
	return topic(rootBridge, "beacon", protocol, kind)
}

// AllBridgeBeacons matches every callback kind of one scanner.
func (t Topics) AllBridgeBeacons(protocol string) string {
	return t.BridgeBeacon(protocol, singleLevel)
}

// CorePresenceState carries the retained occupancy of a room.
func (Topics) CorePresenceState(roomID int) string {
	return topic(rootCore, "presence", strconv.Itoa(roomID), "state")
}

// CorePermission carries the retained scanning permission snapshot.
func (Topics) CorePermission() string {
	return topic(rootCore, "presence", "permission")
}

// CoreEvent carries one occupancy event, such as room_entered.
func (Topics) CoreEvent(name string) string {
	return topic(rootCore, "event", name)
}

// SystemStatus carries the retained online/offline status and the will.
func (Topics) SystemStatus() string {
	return topic(rootSystem, "status")
}

// UINotification addresses local alerts to one UI client.
func (Topics) UINotification(clientID string) string {
	return topic(rootUI, clientID, "notification")
}
