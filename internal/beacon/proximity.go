package beacon

import (
	"encoding/json"
	"fmt"
)

// Proximity is the coarse distance band a scanner reports for a beacon.
type Proximity int

const (
	ProximityUnknown Proximity = iota
	ProximityImmediate
	ProximityNear
	ProximityFar
)

var proximityNames = map[Proximity]string{
	ProximityUnknown:   "unknown",
	ProximityImmediate: "immediate",
	ProximityNear:      "near",
	ProximityFar:       "far",
}

func (p Proximity) String() string {
	if name, ok := proximityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("proximity(%d)", int(p))
}

// ParseProximity converts a scanner proximity name.
func ParseProximity(s string) (Proximity, error) {
	for p, name := range proximityNames {
		if name == s {
			return p, nil
		}
	}
	return ProximityUnknown, fmt.Errorf("%w: %q", ErrInvalidProximity, s)
}

// MarshalJSON encodes the proximity by name.
func (p Proximity) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a proximity name. Unrecognised names decode as
// unknown rather than failing the whole payload.
func (p *Proximity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseProximity(s)
	if err != nil {
		*p = ProximityUnknown
		return nil //nolint:nilerr // Scanners may add bands; treat them as unknown
	}
	*p = parsed
	return nil
}
