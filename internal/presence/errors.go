package presence

import "errors"

// ErrStopped is returned when submitting work after Run has returned.
var ErrStopped = errors.New("presence: engine stopped")
