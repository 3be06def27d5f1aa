package permission

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Authorization is the location authorization level reported by the platform.
// Values are ordered: anything at or above AuthorizedWhenInUse allows monitoring.
type Authorization int

const (
	NotDetermined Authorization = iota
	Restricted
	Denied
	AuthorizedWhenInUse
	AuthorizedAlways
)

var authorizationNames = map[Authorization]string{
	NotDetermined:       "not_determined",
	Restricted:          "restricted",
	Denied:              "denied",
	AuthorizedWhenInUse: "authorized_when_in_use",
	AuthorizedAlways:    "authorized_always",
}

func (a Authorization) String() string {
	if name, ok := authorizationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("authorization(%d)", int(a))
}

// ParseAuthorization converts a scanner authorization name.
func ParseAuthorization(s string) (Authorization, error) {
	for a, name := range authorizationNames {
		if name == s {
			return a, nil
		}
	}
	return NotDetermined, fmt.Errorf("%w: %q", ErrUnknownAuthorization, s)
}

// State is the derived permission flag.
type State int

const (
	StateUnknown State = iota
	StateGranted
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Evaluate is the pure decision: granted only when auth is at least
// AuthorizedWhenInUse and monitoring is available.
func Evaluate(auth Authorization, monitoringAvailable bool) State {
	if auth >= AuthorizedWhenInUse && monitoringAvailable {
		return StateGranted
	}
	return StateDenied
}

// Snapshot is an immutable view of the gate.
type Snapshot struct {
	State               State         `json:"state"`
	Authorization       Authorization `json:"-"`
	AuthorizationName   string        `json:"authorization"`
	MonitoringAvailable bool          `json:"monitoring_available"`
	ChangedAt           time.Time     `json:"changed_at,omitzero"`
}

// Gate tracks the two inputs and publishes state changes.
// It is safe for concurrent use.
type Gate struct {
	mu        sync.Mutex
	auth      Authorization
	available bool
	current   Snapshot
	now       func() time.Time

	subs   map[int]chan Snapshot
	nextID int
}

// NewGate returns a gate in the unknown state. Monitoring is assumed
// available until the platform says otherwise.
func NewGate() *Gate {
	return &Gate{
		available: true,
		current: Snapshot{
			State:               StateUnknown,
			AuthorizationName:   NotDetermined.String(),
			MonitoringAvailable: true,
		},
		now:  time.Now,
		subs: make(map[int]chan Snapshot),
	}
}

// SetAuthorization records a new authorization level. It returns the
// resulting snapshot and whether the derived state changed.
func (g *Gate) SetAuthorization(auth Authorization) (Snapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.auth = auth
	return g.reevaluate()
}

// SetMonitoringAvailable records whether region monitoring is supported.
func (g *Gate) SetMonitoringAvailable(available bool) (Snapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.available = available
	return g.reevaluate()
}

// State returns the current derived state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current.State
}

// Snapshot returns the current snapshot.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Subscribe returns a channel receiving every state change. The channel
// holds only the latest undelivered snapshot; older ones are replaced.
func (g *Gate) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = ch
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.subs, id)
			close(ch)
		})
	}
}

// reevaluate must be called with mu held.
func (g *Gate) reevaluate() (Snapshot, bool) {
	next := Evaluate(g.auth, g.available)
	changed := next != g.current.State

	g.current = Snapshot{
		State:               next,
		Authorization:       g.auth,
		AuthorizationName:   g.auth.String(),
		MonitoringAvailable: g.available,
		ChangedAt:           g.current.ChangedAt,
	}
	if changed {
		g.current.ChangedAt = g.now()
		g.publish(g.current)
	}
	return g.current, changed
}

// publish offers snap to each subscriber, replacing a stale pending value.
func (g *Gate) publish(snap Snapshot) {
	for _, ch := range g.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
