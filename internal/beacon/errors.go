package beacon

import "errors"

var (
	// ErrInvalidRegionIdentifier is returned when a region identifier is not
	// the decimal form of a room id.
	ErrInvalidRegionIdentifier = errors.New("beacon: invalid region identifier")

	// ErrInvalidProximity is returned when a proximity name is not recognised.
	ErrInvalidProximity = errors.New("beacon: invalid proximity")
)
