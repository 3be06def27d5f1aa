package api

import (
	"net/http"
	"sort"

	"github.com/nerrad567/gray-logic-presence/internal/beacon"
	"github.com/nerrad567/gray-logic-presence/internal/monitor"
)

// occupancyEntry is the occupancy of one persisted region.
type occupancyEntry struct {
	RoomID   int    `json:"room_id"`
	RegionID string `json:"region_id"`
	Occupied bool   `json:"occupied"`
}

// handleListBeacons returns the monitored beacons with their latest ranging.
func (s *Server) handleListBeacons(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	beacons := []monitor.MonitoredBeacon{}
	maxRegions := 0
	if snap != nil {
		if snap.Beacons != nil {
			beacons = snap.Beacons
		}
		maxRegions = snap.MaxRegions
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"beacons":     beacons,
		"count":       len(beacons),
		"max_regions": maxRegions,
	})
}

// handleOccupancy returns the persisted region status, ordered by room.
func (s *Server) handleOccupancy(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	rooms := []occupancyEntry{}
	if snap != nil {
		for regionID, entered := range snap.Status {
			roomID, err := beacon.ParseRegionIdentifier(regionID)
			if err != nil {
				continue
			}
			rooms = append(rooms, occupancyEntry{RoomID: roomID, RegionID: regionID, Occupied: entered})
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomID < rooms[j].RoomID })

	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": rooms,
		"count": len(rooms),
	})
}

// handlePermission returns the current permission gate snapshot.
func (s *Server) handlePermission(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Gate().Snapshot())
}
