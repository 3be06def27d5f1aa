package beacon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProximity(t *testing.T) {
	for _, p := range []Proximity{ProximityUnknown, ProximityImmediate, ProximityNear, ProximityFar} {
		got, err := ParseProximity(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParseProximity("adjacent")
	assert.ErrorIs(t, err, ErrInvalidProximity)
}

func TestProximity_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		P Proximity `json:"p"`
	}{P: ProximityNear})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"near"}`, string(data))

	var decoded struct {
		P Proximity `json:"p"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"p":"far"}`), &decoded))
	assert.Equal(t, ProximityFar, decoded.P)

	// Unknown bands degrade to unknown.
	require.NoError(t, json.Unmarshal([]byte(`{"p":"touching"}`), &decoded))
	assert.Equal(t, ProximityUnknown, decoded.P)
}

func TestProximity_StringOutOfRange(t *testing.T) {
	assert.Equal(t, "proximity(9)", Proximity(9).String())
}
