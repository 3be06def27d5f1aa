package presence

import (
	"context"

	"github.com/nerrad567/gray-logic-presence/internal/monitor"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

// Delegate receives platform callbacks, one method per callback kind.
// Each method queues the callback and returns without waiting for it to be
// processed; the error reports only that it could not be queued.
type Delegate interface {
	AuthorizationChanged(ctx context.Context, auth permission.Authorization) error
	MonitoringAvailabilityChanged(ctx context.Context, available bool) error
	RegionEntered(ctx context.Context, kind transition.RegionKind, identifier string) error
	RegionExited(ctx context.Context, kind transition.RegionKind, identifier string) error
	BeaconsRanged(ctx context.Context, burst []monitor.RangedBeacon) error
	MonitoringFailed(ctx context.Context, identifier string, cause error) error
	ManagerFailed(ctx context.Context, cause error) error
}

var _ Delegate = (*Engine)(nil)

// AuthorizationChanged implements Delegate.
func (e *Engine) AuthorizationChanged(ctx context.Context, auth permission.Authorization) error {
	return e.enqueue(ctx, func(context.Context) bool {
		snap, changed := e.gate.SetAuthorization(auth)
		e.permissionUpdated(snap, changed)
		return changed
	})
}

// MonitoringAvailabilityChanged implements Delegate.
func (e *Engine) MonitoringAvailabilityChanged(ctx context.Context, available bool) error {
	return e.enqueue(ctx, func(context.Context) bool {
		snap, changed := e.gate.SetMonitoringAvailable(available)
		e.permissionUpdated(snap, changed)
		return changed
	})
}

// RegionEntered implements Delegate.
func (e *Engine) RegionEntered(ctx context.Context, kind transition.RegionKind, identifier string) error {
	return e.region(ctx, transition.RegionEvent{Kind: kind, Identifier: identifier, Entered: true})
}

// RegionExited implements Delegate.
func (e *Engine) RegionExited(ctx context.Context, kind transition.RegionKind, identifier string) error {
	return e.region(ctx, transition.RegionEvent{Kind: kind, Identifier: identifier, Entered: false})
}

func (e *Engine) region(ctx context.Context, ev transition.RegionEvent) error {
	return e.enqueue(ctx, func(loopCtx context.Context) bool {
		opCtx, cancel := context.WithTimeout(loopCtx, storeTimeout)
		defer cancel()
		outcome, err := e.detector.Handle(opCtx, ev)
		if err != nil {
			// Already logged by the detector; the store keeps the last emitted value.
			return false
		}
		return outcome == transition.OutcomeTransition
	})
}

// BeaconsRanged implements Delegate.
func (e *Engine) BeaconsRanged(ctx context.Context, burst []monitor.RangedBeacon) error {
	return e.enqueue(ctx, func(context.Context) bool {
		if e.monitor.ApplyRanging(burst) == 0 {
			return false
		}
		if e.telemetry != nil {
			e.recordRanging(burst)
		}
		return true
	})
}

// MonitoringFailed implements Delegate. The region is released without
// retry; it is monitored again only after an explicit StartScanning.
func (e *Engine) MonitoringFailed(ctx context.Context, identifier string, cause error) error {
	return e.enqueue(ctx, func(loopCtx context.Context) bool {
		e.recorder.PlatformFailure(FailureMonitoring)
		roomID, ok := e.roomForRegion(identifier)
		if !ok {
			e.logger.Warn("monitoring failed for unknown region",
				"region_id", identifier,
				"error", cause,
			)
			return false
		}
		released, err := e.monitor.Release(loopCtx, roomID)
		if err != nil {
			e.recorder.PlatformFailure(FailureCommand)
			e.logger.Warn("stopping ranging for failed region", "room_id", roomID, "error", err)
		}
		e.logger.Warn("monitoring failed, region released",
			"room_id", roomID,
			"released", released,
			"error", cause,
		)
		if released {
			e.recorder.TrackedRegions(e.monitor.Count())
		}
		return released
	})
}

// ManagerFailed implements Delegate.
func (e *Engine) ManagerFailed(ctx context.Context, cause error) error {
	return e.enqueue(ctx, func(context.Context) bool {
		e.recorder.PlatformFailure(FailureManager)
		e.logger.Error("location manager failed", "error", cause)
		return false
	})
}
