package presence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/beacon"
	"github.com/nerrad567/gray-logic-presence/internal/eventbus"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/monitor"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/regionstatus"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

const (
	// DefaultIngressBuffer is the number of callbacks queued ahead of the loop.
	DefaultIngressBuffer = 64

	// storeTimeout bounds one status store write.
	storeTimeout = 5 * time.Second

	// commandTimeout bounds one batch of platform commands.
	commandTimeout = 10 * time.Second
)

// Platform failure kinds reported to the Recorder.
const (
	FailureMonitoring = "monitoring"
	FailureManager    = "manager"
	FailureCommand    = "command"
)

// Snapshot is an immutable copy of the engine state.
type Snapshot struct {
	Beacons    []monitor.MonitoredBeacon `json:"beacons"`
	Status     regionstatus.Status       `json:"status"`
	Permission permission.Snapshot       `json:"permission"`
	MaxRegions int                       `json:"max_regions"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// Occupied reports whether roomID is currently entered.
func (s *Snapshot) Occupied(roomID int) bool {
	return s.Status[beacon.RegionIdentifier(roomID)]
}

// TelemetrySink receives ranging telemetry and transitions for storage.
// Implementations must not block.
type TelemetrySink interface {
	RecordRanging(b monitor.MonitoredBeacon)
	RecordTransition(t transition.Transition)
}

// Recorder receives engine counters. All methods must be cheap.
type Recorder interface {
	PlatformFailure(kind string)
	TrackedRegions(n int)
	PermissionChanged(state permission.State)
}

type nopRecorder struct{}

func (nopRecorder) PlatformFailure(string)             {}
func (nopRecorder) TrackedRegions(int)                 {}
func (nopRecorder) PermissionChanged(permission.State) {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l.With("component", "presence") }
}

// WithMaxRegions caps concurrently scanned rooms.
func WithMaxRegions(n int) Option {
	return func(e *Engine) { e.maxRegions = n }
}

// WithIngressBuffer sets the callback queue length.
func WithIngressBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.ingressBuffer = n
		}
	}
}

// WithTelemetry attaches a telemetry sink.
func WithTelemetry(sink TelemetrySink) Option {
	return func(e *Engine) { e.telemetry = sink }
}

// WithRecorder attaches a counter recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithObserver registers a transition observer.
func WithObserver(o transition.Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// Engine serialises all monitoring work onto one goroutine.
type Engine struct {
	logger        *logging.Logger
	maxRegions    int
	ingressBuffer int
	telemetry     TelemetrySink
	recorder      Recorder
	observers     []transition.Observer

	// Owned by the Run goroutine.
	monitor  *monitor.Monitor
	store    *regionstatus.Store
	detector *transition.Detector
	gate     *permission.Gate

	bus      *eventbus.Bus
	ingress  chan func(context.Context) bool
	done     chan struct{}
	started  atomic.Bool
	snapshot atomic.Pointer[Snapshot]
	updates  chan Snapshot
}

// New creates an Engine. Nothing runs until Run is called.
func New(platform monitor.Platform, store *regionstatus.Store, bus *eventbus.Bus, gate *permission.Gate, opts ...Option) *Engine {
	e := &Engine{
		logger:        logging.Discard(),
		maxRegions:    monitor.DefaultMaxRegions,
		ingressBuffer: DefaultIngressBuffer,
		recorder:      nopRecorder{},
		store:         store,
		gate:          gate,
		bus:           bus,
		done:          make(chan struct{}),
		updates:       make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ingress = make(chan func(context.Context) bool, e.ingressBuffer)
	e.monitor = monitor.New(platform, monitor.WithMaxRegions(e.maxRegions))
	e.detector = transition.NewDetector(store, bus, e.logger)
	for _, o := range e.observers {
		e.detector.AddObserver(o)
	}
	if e.telemetry != nil {
		e.detector.AddObserver(telemetryObserver{sink: e.telemetry})
	}

	e.snapshot.Store(e.buildSnapshot())
	return e
}

// Run processes queued work until ctx is cancelled. It must be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("presence: engine already running")
	}
	defer close(e.done)

	e.logger.Info("presence engine started",
		"max_regions", e.maxRegions,
		"stored_regions", e.store.Len(),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("presence engine stopped")
			return nil
		case fn := <-e.ingress:
			if fn(ctx) {
				e.publish()
			}
		}
	}
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Updates delivers each new Snapshot. A slow reader sees only the latest.
func (e *Engine) Updates() <-chan Snapshot {
	return e.updates
}

// Bus returns the occupancy event bus.
func (e *Engine) Bus() *eventbus.Bus {
	return e.bus
}

// Gate returns the permission gate.
func (e *Engine) Gate() *permission.Gate {
	return e.gate
}

// StartScanning starts monitoring room and waits for the commands to be
// sent. It reports false when the room has no beacon or is already tracked.
func (e *Engine) StartScanning(ctx context.Context, room beacon.Room) (bool, error) {
	var started bool
	err := e.call(ctx, func(loopCtx context.Context) (bool, error) {
		var err error
		started, err = e.startOne(loopCtx, room)
		return started, err
	})
	return started, err
}

// StopScanning stops monitoring roomID. It reports false when the room was
// not tracked.
func (e *Engine) StopScanning(ctx context.Context, roomID int) (bool, error) {
	var stopped bool
	err := e.call(ctx, func(loopCtx context.Context) (bool, error) {
		var err error
		stopped, err = e.stopOne(loopCtx, roomID)
		return stopped, err
	})
	return stopped, err
}

// RemoveRoom retires roomID before its catalogue entry is deleted. Scanning
// is stopped and a stored enter is cleared through a synthetic exit, so the
// bus sees the room leave and a new room reusing the id starts exited. It
// reports whether anything changed.
//
// A stop command that cannot be sent is logged only. A failed status write
// is returned wrapping transition.ErrPersist and leaves the room entered.
func (e *Engine) RemoveRoom(ctx context.Context, roomID int) (bool, error) {
	var changed bool
	err := e.call(ctx, func(loopCtx context.Context) (bool, error) {
		stopped, _ := e.stopOne(loopCtx, roomID) //nolint:errcheck // Logged by stopOne
		changed = stopped

		regionID := beacon.RegionIdentifier(roomID)
		if !e.store.Entered(regionID) {
			return changed, nil
		}

		opCtx, cancel := context.WithTimeout(loopCtx, storeTimeout)
		defer cancel()
		outcome, err := e.detector.Handle(opCtx, transition.RegionEvent{
			Kind:       transition.KindBeacon,
			Identifier: regionID,
			Entered:    false,
		})
		if outcome == transition.OutcomeTransition {
			changed = true
			e.logger.Info("occupancy cleared for removed room", "room_id", roomID)
		}
		return changed, err
	})
	return changed, err
}

func (e *Engine) stopOne(loopCtx context.Context, roomID int) (bool, error) {
	cmdCtx, cancel := context.WithTimeout(loopCtx, commandTimeout)
	defer cancel()

	stopped, err := e.monitor.StopScanning(cmdCtx, roomID)
	if err != nil {
		e.recorder.PlatformFailure(FailureCommand)
		e.logger.Warn("stop scanning", "room_id", roomID, "error", err)
	}
	if stopped {
		e.recorder.TrackedRegions(e.monitor.Count())
		e.logger.Info("scanning stopped", "room_id", roomID)
	}
	return stopped, err
}

// StartAll starts every room with a complete beacon identity. Failures are
// joined; rooms after a failure are still attempted.
func (e *Engine) StartAll(ctx context.Context, rooms []beacon.Room) (int, error) {
	var started int
	err := e.call(ctx, func(loopCtx context.Context) (bool, error) {
		var errs []error
		for _, room := range rooms {
			ok, err := e.startOne(loopCtx, room)
			if err != nil {
				errs = append(errs, fmt.Errorf("room %d: %w", room.ID, err))
				continue
			}
			if ok {
				started++
			}
		}
		return started > 0, errors.Join(errs...)
	})
	return started, err
}

func (e *Engine) startOne(loopCtx context.Context, room beacon.Room) (bool, error) {
	cmdCtx, cancel := context.WithTimeout(loopCtx, commandTimeout)
	defer cancel()

	started, err := e.monitor.StartScanning(cmdCtx, room)
	if err != nil {
		if errors.Is(err, monitor.ErrPlatform) {
			e.recorder.PlatformFailure(FailureCommand)
		}
		e.logger.Warn("start scanning", "room_id", room.ID, "error", err)
		return false, err
	}
	if started {
		e.recorder.TrackedRegions(e.monitor.Count())
		e.logger.Info("scanning started", "room_id", room.ID)
	}
	return started, nil
}

// call runs fn on the loop and waits for its result. If ctx is done by the
// time the loop reaches fn, fn is skipped so an abandoned caller changes
// nothing.
func (e *Engine) call(ctx context.Context, fn func(context.Context) (bool, error)) error {
	result := make(chan error, 1)
	err := e.enqueue(ctx, func(loopCtx context.Context) bool {
		if err := ctx.Err(); err != nil {
			result <- err
			return false
		}
		changed, err := fn(loopCtx)
		// Publish before replying so the caller observes its own change.
		if changed {
			e.publish()
		}
		result <- err
		return false
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		// The loop may have finished fn just before stopping.
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// enqueue hands fn to the loop without waiting for it to run.
func (e *Engine) enqueue(ctx context.Context, fn func(context.Context) bool) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}

	select {
	case e.ingress <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

func (e *Engine) permissionUpdated(snap permission.Snapshot, changed bool) {
	if !changed {
		return
	}
	e.recorder.PermissionChanged(snap.State)
	e.logger.Info("permission state changed",
		"state", snap.State.String(),
		"authorization", snap.AuthorizationName,
		"monitoring_available", snap.MonitoringAvailable,
	)
}

func (e *Engine) recordRanging(burst []monitor.RangedBeacon) {
	seen := make(map[beacon.Identity]struct{}, len(burst))
	for _, rb := range burst {
		seen[rb.Identity] = struct{}{}
	}
	for _, mb := range e.monitor.Snapshot() {
		if _, ok := seen[mb.Identity]; ok {
			e.telemetry.RecordRanging(mb)
		}
	}
}

func (e *Engine) roomForRegion(identifier string) (int, bool) {
	roomID, err := beacon.ParseRegionIdentifier(identifier)
	if err != nil {
		return 0, false
	}
	return roomID, true
}

func (e *Engine) buildSnapshot() *Snapshot {
	return &Snapshot{
		Beacons:    e.monitor.Snapshot(),
		Status:     e.store.Snapshot(),
		Permission: e.gate.Snapshot(),
		MaxRegions: e.maxRegions,
		UpdatedAt:  time.Now().UTC(),
	}
}

// publish stores a fresh snapshot and offers it on Updates, replacing any
// unread one.
func (e *Engine) publish() {
	snap := e.buildSnapshot()
	e.snapshot.Store(snap)

	select {
	case e.updates <- *snap:
		return
	default:
	}
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- *snap:
	default:
	}
}

// telemetryObserver forwards transitions to the telemetry sink.
type telemetryObserver struct {
	sink TelemetrySink
}

func (o telemetryObserver) OnTransition(t transition.Transition) { o.sink.RecordTransition(t) }

func (o telemetryObserver) OnSuppressed(transition.RegionEvent, transition.Outcome) {}
