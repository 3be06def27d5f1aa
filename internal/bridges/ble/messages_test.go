package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/transition"
)

func TestDecodeRegion(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantKind    transition.RegionKind
		wantID      string
		wantEntered bool
		wantErr     bool
	}{
		{name: "beacon enter", payload: `{"region_id":"7","region_type":"beacon","state":"enter"}`, wantKind: transition.KindBeacon, wantID: "7", wantEntered: true},
		{name: "beacon exit", payload: `{"region_id":"7","region_type":"beacon","state":"exit"}`, wantKind: transition.KindBeacon, wantID: "7"},
		{name: "unknown type kept", payload: `{"region_id":"7","region_type":"polygon","state":"exit"}`, wantKind: transition.KindUnknown, wantID: "7"},
		{name: "missing id", payload: `{"region_type":"beacon","state":"enter"}`, wantErr: true},
		{name: "bad state", payload: `{"region_id":"7","state":"near"}`, wantErr: true},
		{name: "not json", payload: `<region/>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id, entered, err := decodeRegion([]byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantEntered, entered)
		})
	}
}

func TestDecodeAuthorization(t *testing.T) {
	u, err := decodeAuthorization([]byte(`{"monitoring_available":true}`))
	require.NoError(t, err)
	assert.False(t, u.hasAuth)
	assert.True(t, u.hasAvailable)
	assert.True(t, u.available)

	u, err = decodeAuthorization([]byte(`{"status":"restricted"}`))
	require.NoError(t, err)
	assert.True(t, u.hasAuth)
	assert.Equal(t, permission.Restricted, u.auth)
	assert.False(t, u.hasAvailable)

	_, err = decodeAuthorization([]byte(`{}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestErrorMessageErr(t *testing.T) {
	err := ErrorMessage{Code: "ADAPTER_OFF"}.Err()
	assert.ErrorIs(t, err, ErrScannerFailure)
	assert.Equal(t, "ble: scanner reported failure: ADAPTER_OFF", err.Error())
}
