// Package beacon defines beacon identities and the rooms they are installed in.
//
// A beacon is addressed by the triple (vendor UUID, major, minor). Rooms are
// pre-registered; a room only has a beacon when all three parts are set.
// IdentityFor derives the identity from a room and reports false, not an
// error, when the room has no beacon.
//
// The platform correlates a region callback with a room solely through the
// region identifier, which is the decimal form of the room id:
//
//	region := beacon.NewRegion(room.ID, id) // region.Identifier == "5" for room 5
//	roomID, err := beacon.ParseRegionIdentifier(region.Identifier)
package beacon
