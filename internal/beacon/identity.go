package beacon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Identity addresses one physical beacon. It is comparable and used as a
// map key; two identities are equal when all three fields are equal.
type Identity struct {
	UUID  uuid.UUID `json:"uuid"`
	Major uint16    `json:"major"`
	Minor uint16    `json:"minor"`
}

// NewIdentity parses vendorUUID and builds an Identity.
func NewIdentity(vendorUUID string, major, minor uint16) (Identity, error) {
	u, err := uuid.Parse(vendorUUID)
	if err != nil {
		return Identity{}, fmt.Errorf("parsing vendor uuid %q: %w", vendorUUID, err)
	}
	return Identity{UUID: u, Major: major, Minor: minor}, nil
}

// String renders the identity as UUID:major:minor with an upper-case UUID,
// matching how scanners print it.
func (id Identity) String() string {
	return fmt.Sprintf("%s:%d:%d", strings.ToUpper(id.UUID.String()), id.Major, id.Minor)
}

// Room is a pre-registered room. VendorUUID, Major and Minor are nil when
// no beacon is installed.
type Room struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	VendorUUID *string `json:"vendor_uuid,omitempty"`
	Major      *uint16 `json:"major,omitempty"`
	Minor      *uint16 `json:"minor,omitempty"`
}

// IdentityFor derives the beacon identity installed in room.
// It reports false when any part is missing or the UUID does not parse.
func IdentityFor(room Room) (Identity, bool) {
	if room.VendorUUID == nil || room.Major == nil || room.Minor == nil {
		return Identity{}, false
	}
	id, err := NewIdentity(*room.VendorUUID, *room.Major, *room.Minor)
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

// Region is the constraint registered with the platform for one room.
type Region struct {
	Identifier string
	Identity   Identity
}

// NewRegion builds the region constraint for roomID.
func NewRegion(roomID int, id Identity) Region {
	return Region{
		Identifier: RegionIdentifier(roomID),
		Identity:   id,
	}
}

// RegionIdentifier returns the platform region identifier for roomID.
func RegionIdentifier(roomID int) string {
	return strconv.Itoa(roomID)
}

// ParseRegionIdentifier recovers the room id from a region identifier.
// Only the exact decimal form produced by RegionIdentifier is accepted.
func ParseRegionIdentifier(identifier string) (int, error) {
	roomID, err := strconv.Atoi(identifier)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRegionIdentifier, identifier)
	}
	if RegionIdentifier(roomID) != identifier {
		return 0, fmt.Errorf("%w: %q is not canonical", ErrInvalidRegionIdentifier, identifier)
	}
	return roomID, nil
}
