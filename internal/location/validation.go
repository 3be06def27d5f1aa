package location

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxNameLength = 100

// ValidateName checks if a room name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateRoom checks a room before it is written.
//
// A partially specified beacon (for example a UUID without minor) is
// accepted: the room simply cannot be scanned until it is completed.
// A vendor UUID that is present must parse.
func ValidateRoom(room *Room) error {
	if room.ID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRoomID, room.ID)
	}
	if err := ValidateName(room.Name); err != nil {
		return err
	}
	return ValidateBeacon(BeaconAssignment{
		VendorUUID: room.VendorUUID,
		Major:      room.Major,
		Minor:      room.Minor,
	})
}

// ValidateBeacon checks the vendor UUID of an assignment, if present.
func ValidateBeacon(a BeaconAssignment) error {
	if a.VendorUUID == nil {
		return nil
	}
	if _, err := uuid.Parse(*a.VendorUUID); err != nil {
		return fmt.Errorf("%w: vendor uuid %q", ErrInvalidBeacon, *a.VendorUUID)
	}
	return nil
}
