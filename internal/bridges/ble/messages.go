package ble

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/beacon"
	"github.com/nerrad567/gray-logic-presence/internal/monitor"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

// Protocol is the topic segment the scanner bridge uses.
const Protocol = "ble"

// Callback kinds, the last segment of graylogic/beacon/ble/{kind}.
const (
	KindRegion        = "region"
	KindRanging       = "ranging"
	KindAuthorization = "authorization"
	KindError         = "error"
)

// Action is a scanner command verb.
type Action string

const (
	ActionStartMonitoring Action = "start_monitoring"
	ActionStopMonitoring  Action = "stop_monitoring"
	ActionStartRanging    Action = "start_ranging"
	ActionStopRanging     Action = "stop_ranging"
)

// CommandMessage is sent from Core to the scanner to change what it watches.
// Topic: graylogic/command/ble/{region_id}
type CommandMessage struct {
	// ID uniquely identifies this command in scanner logs.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// ScannerID addresses one scanner when several share a broker.
	ScannerID string `json:"scanner_id,omitempty"`

	Action   Action `json:"action"`
	RegionID string `json:"region_id"`

	// UUID is the upper-case vendor UUID of the region's beacon.
	UUID  string `json:"uuid"`
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
}

// RequestMessage asks the scanner for out-of-band information.
// Topic: graylogic/request/ble/{request}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	ScannerID string    `json:"scanner_id,omitempty"`

	// Level is the authorization level requested from the user.
	Level string `json:"level,omitempty"`
}

// RegionMessage reports a region boundary crossing.
// Topic: graylogic/beacon/ble/region
type RegionMessage struct {
	RegionID   string `json:"region_id"`
	RegionType string `json:"region_type"`

	// State is "enter" or "exit".
	State string `json:"state"`
}

// RangingMessage reports one ranging burst.
// Topic: graylogic/beacon/ble/ranging
type RangingMessage struct {
	Beacons []RangedBeaconMessage `json:"beacons"`
}

// RangedBeaconMessage is a single beacon observation in a ranging burst.
type RangedBeaconMessage struct {
	UUID      string           `json:"uuid"`
	Major     uint16           `json:"major"`
	Minor     uint16           `json:"minor"`
	Proximity beacon.Proximity `json:"proximity"`
	RSSI      int              `json:"rssi"`
	Accuracy  float64          `json:"accuracy"`
}

// AuthorizationMessage reports the scanner's location authorization.
// Either field may be omitted.
// Topic: graylogic/beacon/ble/authorization
type AuthorizationMessage struct {
	Status              string `json:"status,omitempty"`
	MonitoringAvailable *bool  `json:"monitoring_available,omitempty"`
}

// ErrorMessage reports a scanner failure. A non-empty RegionID scopes the
// failure to one region; otherwise the whole location manager failed.
// Topic: graylogic/beacon/ble/error
type ErrorMessage struct {
	RegionID string `json:"region_id,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Err converts the message into an error wrapping ErrScannerFailure.
func (m ErrorMessage) Err() error {
	if m.Message == "" {
		return fmt.Errorf("%w: %s", ErrScannerFailure, m.Code)
	}
	return fmt.Errorf("%w: %s: %s", ErrScannerFailure, m.Code, m.Message)
}

// OccupancyState is Core's retained per-room occupancy.
// Topic: graylogic/core/presence/{room_id}/state
type OccupancyState struct {
	RoomID    int       `json:"room_id"`
	Occupied  bool      `json:"occupied"`
	Timestamp time.Time `json:"timestamp"`
}

// OccupancyEvent is published once per transition.
// Topic: graylogic/core/event/room_entered | room_exited
type OccupancyEvent struct {
	Event     string    `json:"event"`
	RoomID    int       `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Occupancy event names.
const (
	EventRoomEntered = "room_entered"
	EventRoomExited  = "room_exited"
)

// decodeRegion parses a region callback.
func decodeRegion(payload []byte) (transition.RegionKind, string, bool, error) {
	var msg RegionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return transition.KindUnknown, "", false, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if msg.RegionID == "" {
		return transition.KindUnknown, "", false, fmt.Errorf("%w: missing region_id", ErrMalformedPayload)
	}

	var entered bool
	switch msg.State {
	case "enter":
		entered = true
	case "exit":
	default:
		return transition.KindUnknown, "", false, fmt.Errorf("%w: state %q", ErrMalformedPayload, msg.State)
	}
	return transition.ParseRegionKind(msg.RegionType), msg.RegionID, entered, nil
}

// decodeRanging parses a ranging burst. Entries with an unparsable UUID are
// skipped; skipped reports how many.
func decodeRanging(payload []byte) (burst []monitor.RangedBeacon, skipped int, err error) {
	var msg RangingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	burst = make([]monitor.RangedBeacon, 0, len(msg.Beacons))
	for _, b := range msg.Beacons {
		id, err := beacon.NewIdentity(b.UUID, b.Major, b.Minor)
		if err != nil {
			skipped++
			continue
		}
		burst = append(burst, monitor.RangedBeacon{
			Identity:       id,
			Proximity:      b.Proximity,
			SignalStrength: b.RSSI,
			Accuracy:       b.Accuracy,
		})
	}
	return burst, skipped, nil
}

// authorizationUpdate is a decoded authorization callback.
type authorizationUpdate struct {
	auth         permission.Authorization
	hasAuth      bool
	available    bool
	hasAvailable bool
}

// decodeAuthorization parses an authorization callback.
func decodeAuthorization(payload []byte) (authorizationUpdate, error) {
	var msg AuthorizationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return authorizationUpdate{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	var u authorizationUpdate
	if msg.Status != "" {
		auth, err := permission.ParseAuthorization(msg.Status)
		if err != nil {
			return authorizationUpdate{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		u.auth, u.hasAuth = auth, true
	}
	if msg.MonitoringAvailable != nil {
		u.available, u.hasAvailable = *msg.MonitoringAvailable, true
	}
	if !u.hasAuth && !u.hasAvailable {
		return authorizationUpdate{}, fmt.Errorf("%w: empty authorization update", ErrMalformedPayload)
	}
	return u, nil
}

// decodeError parses an error callback.
func decodeError(payload []byte) (ErrorMessage, error) {
	var msg ErrorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ErrorMessage{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if msg.Code == "" {
		return ErrorMessage{}, fmt.Errorf("%w: missing code", ErrMalformedPayload)
	}
	return msg, nil
}
