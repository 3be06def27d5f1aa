package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-presence/internal/monitor"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

// Measurement names.
const (
	measurementRanging   = "beacon_ranging"
	measurementOccupancy = "room_occupancy"
)

// RecordRanging queues one ranging observation for a monitored beacon.
func (c *Client) RecordRanging(b monitor.MonitoredBeacon) {
	c.write(rangingPoint(b))
}

// RecordTransition queues one occupancy transition, stamped now.
func (c *Client) RecordTransition(t transition.Transition) {
	c.write(transitionPoint(t, time.Now()))
}

// write queues p. Points recorded after Close are dropped.
func (c *Client) write(p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(p)
}

// rangingPoint builds the point for a ranging observation. Room id is a tag;
// the beacon identity is stored as a field to keep series cardinality at
// one per room.
func rangingPoint(b monitor.MonitoredBeacon) *write.Point {
	ts := b.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		measurementRanging,
		map[string]string{
			"room_id":   strconv.Itoa(b.RoomID),
			"proximity": b.Proximity.String(),
		},
		map[string]interface{}{
			"rssi":     b.SignalStrength,
			"accuracy": b.Accuracy,
			"beacon":   b.Identity.String(),
		},
		ts,
	)
}

// transitionPoint builds the point for an occupancy transition.
func transitionPoint(t transition.Transition, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementOccupancy,
		map[string]string{
			"room_id": strconv.Itoa(t.RoomID),
		},
		map[string]interface{}{
			"occupied": t.Entered,
		},
		ts,
	)
}
