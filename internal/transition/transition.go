package transition

import (
	"github.com/nerrad567/gray-logic-presence/internal/beacon"
)

// RegionKind is the kind of region a callback refers to.
type RegionKind int

const (
	KindUnknown RegionKind = iota
	KindBeacon
	KindCircular
)

func (k RegionKind) String() string {
	switch k {
	case KindBeacon:
		return "beacon"
	case KindCircular:
		return "circular"
	default:
		return "unknown"
	}
}

// ParseRegionKind converts a scanner region type name. Unrecognised names
// map to KindUnknown.
func ParseRegionKind(s string) RegionKind {
	switch s {
	case "beacon":
		return KindBeacon
	case "circular":
		return KindCircular
	default:
		return KindUnknown
	}
}

// RegionEvent is one raw enter or exit callback.
type RegionEvent struct {
	Kind       RegionKind
	Identifier string
	Entered    bool
}

// Outcome classifies how a RegionEvent was handled.
type Outcome int

const (
	// OutcomeTransition means the flag flipped and an event was emitted.
	OutcomeTransition Outcome = iota
	// OutcomeDuplicate means the stored flag already matched.
	OutcomeDuplicate
	// OutcomeDiscarded means the callback was foreign or malformed.
	OutcomeDiscarded
	// OutcomeFailed means the flip could not be persisted and was dropped.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTransition:
		return "transition"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transition is a canonical occupancy change of one room.
type Transition struct {
	RoomID   int
	RegionID string
	Entered  bool
}

// StatusReader exposes the stored flags Decide compares against.
// regionstatus.Status and regionstatus.Store both satisfy it.
type StatusReader interface {
	Entered(regionID string) bool
}

// Decide classifies ev against the stored flags. It returns a Transition
// only with OutcomeTransition.
func Decide(stored StatusReader, ev RegionEvent) (Transition, Outcome) {
	if ev.Kind != KindBeacon {
		return Transition{}, OutcomeDiscarded
	}
	roomID, err := beacon.ParseRegionIdentifier(ev.Identifier)
	if err != nil {
		return Transition{}, OutcomeDiscarded
	}
	if stored.Entered(ev.Identifier) == ev.Entered {
		return Transition{}, OutcomeDuplicate
	}
	return Transition{
		RoomID:   roomID,
		RegionID: ev.Identifier,
		Entered:  ev.Entered,
	}, OutcomeTransition
}
