package regionstatus

import "errors"

var (
	// ErrInvalidValue is returned when a persisted flag cannot be decoded.
	ErrInvalidValue = errors.New("regionstatus: invalid stored value")

	// ErrEmptyRegionID is returned when writing a status without a region identifier.
	ErrEmptyRegionID = errors.New("regionstatus: empty region identifier")
)
