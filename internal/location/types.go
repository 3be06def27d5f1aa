package location

import (
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/beacon"
)

// Room is a catalogued room with its bookkeeping timestamps.
type Room struct {
	beacon.Room
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeaconAssignment sets or clears the beacon installed in a room.
// All three fields nil removes the beacon.
type BeaconAssignment struct {
	VendorUUID *string `json:"vendor_uuid"`
	Major      *uint16 `json:"major"`
	Minor      *uint16 `json:"minor"`
}
