package permission

import "errors"

// ErrUnknownAuthorization is returned when parsing an unrecognised
// authorization name.
var ErrUnknownAuthorization = errors.New("permission: unknown authorization")
