package location

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("location: room not found")

	// ErrRoomExists is returned when creating a room whose ID is taken.
	ErrRoomExists = errors.New("location: room already exists")

	// ErrInvalidRoomID is returned for negative room IDs.
	ErrInvalidRoomID = errors.New("location: invalid room id")

	// ErrInvalidName is returned when a room name fails validation.
	ErrInvalidName = errors.New("location: invalid name")

	// ErrInvalidBeacon is returned when a beacon identity is malformed.
	ErrInvalidBeacon = errors.New("location: invalid beacon identity")
)
