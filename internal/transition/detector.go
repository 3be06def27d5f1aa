package transition

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
)

// Store is the persisted status map the Detector reads and writes.
type Store interface {
	StatusReader
	Set(ctx context.Context, regionID string, entered bool) error
}

// Publisher receives emitted transitions. eventbus.Bus satisfies it.
type Publisher interface {
	Publish(roomID int, entered bool) int
}

// Observer is notified after every handled callback. Implementations must
// not block; they run on the engine goroutine.
type Observer interface {
	OnTransition(t Transition)
	OnSuppressed(ev RegionEvent, outcome Outcome)
}

// Detector applies Decide, persists flips and publishes them.
// It is not safe for concurrent use.
type Detector struct {
	store     Store
	publisher Publisher
	observers []Observer
	logger    *logging.Logger
}

// NewDetector creates a Detector. A nil logger discards log output.
func NewDetector(store Store, publisher Publisher, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Detector{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// AddObserver registers o for all subsequent callbacks.
func (d *Detector) AddObserver(o Observer) {
	d.observers = append(d.observers, o)
}

// Handle processes one region callback.
//
// On OutcomeTransition the new flag has been committed to the store and the
// room id published. On store failure nothing is published and the error
// wraps ErrPersist.
func (d *Detector) Handle(ctx context.Context, ev RegionEvent) (Outcome, error) {
	t, outcome := Decide(d.store, ev)
	switch outcome {
	case OutcomeDiscarded:
		d.logger.Debug("discarding region callback",
			"region_id", ev.Identifier,
			"region_kind", ev.Kind.String(),
		)
		d.suppressed(ev, outcome)
		return outcome, nil
	case OutcomeDuplicate:
		d.logger.Debug("duplicate region callback",
			"region_id", ev.Identifier,
			"entered", ev.Entered,
		)
		d.suppressed(ev, outcome)
		return outcome, nil
	}

	if err := d.store.Set(ctx, t.RegionID, t.Entered); err != nil {
		d.logger.Error("region status not persisted, transition dropped",
			"region_id", t.RegionID,
			"entered", t.Entered,
			"error", err,
		)
		d.suppressed(ev, OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("%w: region %s: %w", ErrPersist, t.RegionID, err)
	}

	delivered := d.publisher.Publish(t.RoomID, t.Entered)
	d.logger.Info("room occupancy changed",
		"room_id", t.RoomID,
		"entered", t.Entered,
		"subscribers", delivered,
	)
	for _, o := range d.observers {
		o.OnTransition(t)
	}
	return OutcomeTransition, nil
}

func (d *Detector) suppressed(ev RegionEvent, outcome Outcome) {
	for _, o := range d.observers {
		o.OnSuppressed(ev, outcome)
	}
}
