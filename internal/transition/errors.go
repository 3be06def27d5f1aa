package transition

import "errors"

// ErrPersist is returned by Handle when the new status could not be stored.
// No event is published in that case.
var ErrPersist = errors.New("transition: persisting status failed")
