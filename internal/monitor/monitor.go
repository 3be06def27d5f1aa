package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/beacon"
)

// DefaultMaxRegions is the usual platform cap on concurrently monitored regions.
const DefaultMaxRegions = 20

// Platform is the location subsystem commands are sent to.
type Platform interface {
	StartMonitoring(ctx context.Context, region beacon.Region) error
	StopMonitoring(ctx context.Context, region beacon.Region) error
	StartRanging(ctx context.Context, region beacon.Region) error
	StopRanging(ctx context.Context, region beacon.Region) error
}

// MonitoredBeacon is the live state of one scanned room.
type MonitoredBeacon struct {
	RoomID         int              `json:"room_id"`
	Identity       beacon.Identity  `json:"identity"`
	Region         beacon.Region    `json:"-"`
	Proximity      beacon.Proximity `json:"proximity"`
	SignalStrength int              `json:"rssi"`
	Accuracy       float64          `json:"accuracy"`
	UpdatedAt      time.Time        `json:"updated_at,omitzero"`
}

// RangedBeacon is one entry of a ranging burst reported by the platform.
type RangedBeacon struct {
	Identity       beacon.Identity
	Proximity      beacon.Proximity
	SignalStrength int
	Accuracy       float64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMaxRegions overrides DefaultMaxRegions.
func WithMaxRegions(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxRegions = n
		}
	}
}

// WithClock overrides the time source used to stamp telemetry.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor tracks at most one MonitoredBeacon per room.
type Monitor struct {
	platform   Platform
	maxRegions int
	now        func() time.Time

	byRoom map[int]*MonitoredBeacon
}

// New creates a Monitor issuing commands to platform.
func New(platform Platform, opts ...Option) *Monitor {
	m := &Monitor{
		platform:   platform,
		maxRegions: DefaultMaxRegions,
		now:        time.Now,
		byRoom:     make(map[int]*MonitoredBeacon),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartScanning begins monitoring and ranging the beacon of room.
//
// It is a no-op, returning false, when the room has no complete beacon
// identity or is already tracked. If the ranging command cannot be sent
// after monitoring was started, monitoring is stopped again so no
// half-registered region remains.
func (m *Monitor) StartScanning(ctx context.Context, room beacon.Room) (bool, error) {
	id, ok := beacon.IdentityFor(room)
	if !ok {
		return false, nil
	}
	if _, tracked := m.byRoom[room.ID]; tracked {
		return false, nil
	}
	if len(m.byRoom) >= m.maxRegions {
		return false, fmt.Errorf("%w: %d regions tracked", ErrRegionLimit, len(m.byRoom))
	}

	region := beacon.NewRegion(room.ID, id)
	if err := m.platform.StartMonitoring(ctx, region); err != nil {
		return false, fmt.Errorf("%w: start monitoring region %s: %w", ErrPlatform, region.Identifier, err)
	}
	if err := m.platform.StartRanging(ctx, region); err != nil {
		_ = m.platform.StopMonitoring(ctx, region) //nolint:errcheck // Best effort rollback
		return false, fmt.Errorf("%w: start ranging region %s: %w", ErrPlatform, region.Identifier, err)
	}

	mb := &MonitoredBeacon{
		RoomID:    room.ID,
		Identity:  id,
		Region:    region,
		Proximity: beacon.ProximityUnknown,
	}
	m.byRoom[room.ID] = mb
	return true, nil
}

// StopScanning stops monitoring and ranging the beacon of roomID and
// releases its entry. It is a no-op, returning false, for untracked rooms.
//
// Both stop commands are always attempted. The entry is released even when
// a command cannot be sent; the error is returned for logging.
func (m *Monitor) StopScanning(ctx context.Context, roomID int) (bool, error) {
	mb, ok := m.byRoom[roomID]
	if !ok {
		return false, nil
	}

	errMon := m.platform.StopMonitoring(ctx, mb.Region)
	errRng := m.platform.StopRanging(ctx, mb.Region)
	delete(m.byRoom, roomID)

	if errMon != nil {
		return true, fmt.Errorf("%w: stop monitoring region %s: %w", ErrPlatform, mb.Region.Identifier, errMon)
	}
	if errRng != nil {
		return true, fmt.Errorf("%w: stop ranging region %s: %w", ErrPlatform, mb.Region.Identifier, errRng)
	}
	return true, nil
}

// Release forgets roomID after the platform reports that monitoring the
// region failed. Monitoring is already gone, so only ranging is stopped; a
// failed stop is returned for logging and the entry is released anyway. The
// next explicit StartScanning registers the region again.
func (m *Monitor) Release(ctx context.Context, roomID int) (bool, error) {
	mb, ok := m.byRoom[roomID]
	if !ok {
		return false, nil
	}

	err := m.platform.StopRanging(ctx, mb.Region)
	delete(m.byRoom, roomID)
	if err != nil {
		return true, fmt.Errorf("%w: stop ranging region %s: %w", ErrPlatform, mb.Region.Identifier, err)
	}
	return true, nil
}

// ApplyRanging overwrites telemetry for every tracked identity in burst and
// returns how many entries changed. Identities that are not tracked are
// ignored. Rooms sharing one physical beacon are all updated. Ranging never
// produces enter or exit transitions.
func (m *Monitor) ApplyRanging(burst []RangedBeacon) int {
	updated := 0
	now := m.now()
	for _, rb := range burst {
		for _, mb := range m.byRoom {
			if mb.Identity != rb.Identity {
				continue
			}
			mb.Proximity = rb.Proximity
			mb.SignalStrength = rb.SignalStrength
			mb.Accuracy = rb.Accuracy
			mb.UpdatedAt = now
			updated++
		}
	}
	return updated
}

// Tracked reports whether roomID is being scanned.
func (m *Monitor) Tracked(roomID int) bool {
	_, ok := m.byRoom[roomID]
	return ok
}

// Count returns the number of tracked rooms.
func (m *Monitor) Count() int {
	return len(m.byRoom)
}

// MaxRegions returns the configured region cap.
func (m *Monitor) MaxRegions() int {
	return m.maxRegions
}

// Snapshot returns copies of all tracked entries ordered by room id.
func (m *Monitor) Snapshot() []MonitoredBeacon {
	out := make([]MonitoredBeacon, 0, len(m.byRoom))
	for _, mb := range m.byRoom {
		out = append(out, *mb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// Rooms returns the ids of all tracked rooms in ascending order.
func (m *Monitor) Rooms() []int {
	ids := make([]int, 0, len(m.byRoom))
	for id := range m.byRoom {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
