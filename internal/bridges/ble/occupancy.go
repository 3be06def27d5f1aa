package ble

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/eventbus"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
)

// OccupancyPublisher mirrors bus transitions and gate changes onto MQTT.
// Room state and permission are retained so late subscribers see the
// latest value.
type OccupancyPublisher struct {
	mqtt   MQTTClient
	bus    *eventbus.Bus
	gate   *permission.Gate
	logger *logging.Logger
	now    func() time.Time
}

// NewOccupancyPublisher creates a publisher. Call Run to start it.
func NewOccupancyPublisher(client MQTTClient, bus *eventbus.Bus, gate *permission.Gate, logger *logging.Logger) *OccupancyPublisher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &OccupancyPublisher{
		mqtt:   client,
		bus:    bus,
		gate:   gate,
		logger: logger.With("component", "occupancy-publisher"),
		now:    time.Now,
	}
}

// Run publishes until ctx is cancelled or the bus is closed.
func (p *OccupancyPublisher) Run(ctx context.Context) error {
	perms, cancelPerms := p.gate.Subscribe()
	defer cancelPerms()
	enters, cancelEnters := p.bus.Enters().Subscribe()
	defer cancelEnters()
	exits, cancelExits := p.bus.Exits().Subscribe()
	defer cancelExits()

	for {
		select {
		case <-ctx.Done():
			return nil
		case roomID, ok := <-enters:
			if !ok {
				return nil
			}
			p.publishRoom(roomID, true)
		case roomID, ok := <-exits:
			if !ok {
				return nil
			}
			p.publishRoom(roomID, false)
		case snap, ok := <-perms:
			if !ok {
				return nil
			}
			p.publishPermission(snap)
		}
	}
}

func (p *OccupancyPublisher) publishRoom(roomID int, occupied bool) {
	ts := p.now().UTC()
	topics := mqtt.Topics{}

	state := OccupancyState{RoomID: roomID, Occupied: occupied, Timestamp: ts}
	if err := p.send(topics.CorePresenceState(roomID), state, true); err != nil {
		p.logger.Warn("publishing room state failed", "room_id", roomID, "error", err)
	}

	event := EventRoomExited
	if occupied {
		event = EventRoomEntered
	}
	msg := OccupancyEvent{Event: event, RoomID: roomID, Timestamp: ts}
	if err := p.send(topics.CoreEvent(event), msg, false); err != nil {
		p.logger.Warn("publishing room event failed", "room_id", roomID, "event", event, "error", err)
	}
}

func (p *OccupancyPublisher) publishPermission(snap permission.Snapshot) {
	if err := p.send(mqtt.Topics{}.CorePermission(), snap, true); err != nil {
		p.logger.Warn("publishing permission failed", "state", snap.State.String(), "error", err)
	}
}

func (p *OccupancyPublisher) send(topic string, v any, retained bool) error {
	if !p.mqtt.IsConnected() {
		return ErrNotConnected
	}
	return p.mqtt.PublishJSON(topic, v, retained)
}
