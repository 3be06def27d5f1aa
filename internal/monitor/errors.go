package monitor

import "errors"

var (
	// ErrRegionLimit is returned when starting a room would exceed the
	// number of regions the platform can monitor at once.
	ErrRegionLimit = errors.New("monitor: region limit reached")

	// ErrPlatform wraps failures to send a command to the platform.
	ErrPlatform = errors.New("monitor: platform command failed")
)
