package beacon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUUID = "B9407F30-F5F8-466E-AFF9-25556B57FE6D"

func ptr[T any](v T) *T { return &v }

func TestIdentityFor(t *testing.T) {
	tests := []struct {
		name   string
		room   Room
		wantOK bool
	}{
		{
			name:   "fully specified",
			room:   Room{ID: 5, VendorUUID: ptr(testUUID), Major: ptr(uint16(1)), Minor: ptr(uint16(2))},
			wantOK: true,
		},
		{
			name:   "lower-case uuid",
			room:   Room{ID: 5, VendorUUID: ptr("b9407f30-f5f8-466e-aff9-25556b57fe6d"), Major: ptr(uint16(1)), Minor: ptr(uint16(2))},
			wantOK: true,
		},
		{
			name: "missing uuid",
			room: Room{ID: 5, Major: ptr(uint16(1)), Minor: ptr(uint16(2))},
		},
		{
			name: "missing major",
			room: Room{ID: 5, VendorUUID: ptr(testUUID), Minor: ptr(uint16(2))},
		},
		{
			name: "missing minor",
			room: Room{ID: 5, VendorUUID: ptr(testUUID), Major: ptr(uint16(1))},
		},
		{
			name: "unparsable uuid",
			room: Room{ID: 5, VendorUUID: ptr("not-a-uuid"), Major: ptr(uint16(1)), Minor: ptr(uint16(2))},
		},
		{
			name: "no beacon at all",
			room: Room{ID: 5, Name: "Store room"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := IdentityFor(tt.room)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, uint16(1), id.Major)
				assert.Equal(t, uint16(2), id.Minor)
			} else {
				assert.Equal(t, Identity{}, id)
			}
		})
	}
}

func TestIdentityFor_Deterministic(t *testing.T) {
	room := Room{ID: 9, VendorUUID: ptr(testUUID), Major: ptr(uint16(100)), Minor: ptr(uint16(7))}

	a, okA := IdentityFor(room)
	b, okB := IdentityFor(room)

	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b, "identities from the same room must be equal")

	// Usable as a map key.
	seen := map[Identity]int{a: room.ID}
	assert.Equal(t, 9, seen[b])
}

func TestIdentity_EqualityUsesAllFields(t *testing.T) {
	base, err := NewIdentity(testUUID, 1, 2)
	require.NoError(t, err)

	otherMinor, err := NewIdentity(testUUID, 1, 3)
	require.NoError(t, err)
	otherMajor, err := NewIdentity(testUUID, 2, 2)
	require.NoError(t, err)
	otherUUID, err := NewIdentity("E2C56DB5-DFFB-48D2-B060-D0F5A71096E0", 1, 2)
	require.NoError(t, err)

	assert.NotEqual(t, base, otherMinor)
	assert.NotEqual(t, base, otherMajor)
	assert.NotEqual(t, base, otherUUID)
}

func TestIdentity_String(t *testing.T) {
	id, err := NewIdentity("b9407f30-f5f8-466e-aff9-25556b57fe6d", 10, 20)
	require.NoError(t, err)
	assert.Equal(t, testUUID+":10:20", id.String())
}

func TestNewIdentity_InvalidUUID(t *testing.T) {
	_, err := NewIdentity("zzz", 1, 1)
	assert.Error(t, err)
}

func TestRegionIdentifier(t *testing.T) {
	assert.Equal(t, "5", RegionIdentifier(5))
	assert.Equal(t, "0", RegionIdentifier(0))
	assert.Equal(t, "1234", RegionIdentifier(1234))

	id, err := NewIdentity(testUUID, 1, 1)
	require.NoError(t, err)
	region := NewRegion(42, id)
	assert.Equal(t, "42", region.Identifier)
	assert.Equal(t, id, region.Identity)
}

func TestParseRegionIdentifier(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "5", want: 5},
		{input: "0", want: 0},
		{input: "987", want: 987},
		{input: "", wantErr: true},
		{input: "kitchen", wantErr: true},
		{input: "5.0", wantErr: true},
		{input: "05", wantErr: true},
		{input: "+5", wantErr: true},
		{input: " 5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRegionIdentifier(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRegionIdentifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegionIdentifier_RoundTrip(t *testing.T) {
	for _, roomID := range []int{0, 1, 5, 20, 65535, 1 << 20} {
		got, err := ParseRegionIdentifier(RegionIdentifier(roomID))
		require.NoError(t, err)
		assert.Equal(t, roomID, got)
	}
}
