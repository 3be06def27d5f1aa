package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-presence/internal/audit"
	"github.com/nerrad567/gray-logic-presence/internal/location"
)

// roomResponse is a catalogued room with its live state.
type roomResponse struct {
	location.Room
	Scanning bool `json:"scanning"`
	Occupied bool `json:"occupied"`
}

type updateRoomRequest struct {
	Name string `json:"name"`
}

// handleListRooms returns every room with scanning and occupancy flags.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.ListRooms(r.Context())
	if err != nil {
		s.logger.Error("failed to list rooms", "error", err)
		writeInternalError(w, "failed to list rooms")
		return
	}

	scanning := s.scanningRooms()
	snap := s.engine.Snapshot()
	out := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomResponse{
			Room:     room,
			Scanning: scanning[room.ID],
			Occupied: snap != nil && snap.Occupied(room.ID),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": out,
		"count": len(out),
	})
}

// handleGetRoom returns a single room.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	room, err := s.rooms.GetRoom(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}

	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, roomResponse{
		Room:     *room,
		Scanning: s.scanningRooms()[id],
		Occupied: snap != nil && snap.Occupied(id),
	})
}

// handleCreateRoom registers a new room.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var room location.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	if err := s.rooms.CreateRoom(r.Context(), &room); err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}

	created, err := s.rooms.GetRoom(r.Context(), room.ID)
	if err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}

	s.logger.Info("room created", "room_id", created.ID, "name", created.Name)
	s.record(r, audit.ActionRoomCreate, created.ID, map[string]any{"name": created.Name})
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateRoom renames a room.
func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	var req updateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	if err := s.rooms.UpdateRoomName(r.Context(), id, req.Name); err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}

	s.record(r, audit.ActionRoomRename, id, map[string]any{"name": req.Name})

	room, err := s.rooms.GetRoom(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleAssignBeacon sets or clears the beacon installed in a room. A room
// that was being scanned is restarted with the new identity, or left
// stopped when the beacon was removed.
func (s *Server) handleAssignBeacon(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	var req location.BeaconAssignment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	if err := s.rooms.AssignBeacon(r.Context(), id, req); err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}
	s.record(r, audit.ActionRoomBeacon, id, map[string]any{"removed": req.VendorUUID == nil})

	room, err := s.rooms.GetRoom(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}

	if s.scanningRooms()[id] {
		if _, err := s.engine.StopScanning(r.Context(), id); err != nil {
			s.logger.Warn("stop scanning after beacon change", "room_id", id, "error", err)
		}
		if _, err := s.engine.StartScanning(r.Context(), room.Room); err != nil {
			s.logger.Warn("restart scanning after beacon change", "room_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, room)
}

// handleDeleteRoom retires the room in the engine and removes it. A room
// that is still occupied leaves with an exit event first.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	if _, err := s.rooms.GetRoom(r.Context(), id); err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}

	if _, err := s.engine.RemoveRoom(r.Context(), id); err != nil {
		s.writeFailure(w, err, "failed to clear room occupancy", "room_id", id)
		return
	}

	if err := s.rooms.DeleteRoom(r.Context(), id); err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}

	s.logger.Info("room deleted", "room_id", id)
	s.record(r, audit.ActionRoomDelete, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleStartScan starts monitoring the room's beacon.
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	room, err := s.rooms.GetRoom(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err, "room operation failed")
		return
	}

	started, err := s.engine.StartScanning(r.Context(), room.Room)
	if err != nil {
		s.writeFailure(w, err, "failed to start scanning", "room_id", id)
		return
	}

	s.record(r, audit.ActionScanStart, id, map[string]any{"started": started})
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id": id,
		"started": started,
	})
}

// handleStopScan stops monitoring the room's beacon.
func (s *Server) handleStopScan(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	stopped, err := s.engine.StopScanning(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err, "failed to stop scanning", "room_id", id)
		return
	}

	s.record(r, audit.ActionScanStop, id, map[string]any{"stopped": stopped})
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id": id,
		"stopped": stopped,
	})
}

// scanningRooms returns the set of room IDs currently monitored.
func (s *Server) scanningRooms() map[int]bool {
	snap := s.engine.Snapshot()
	if snap == nil {
		return nil
	}
	out := make(map[int]bool, len(snap.Beacons))
	for _, b := range snap.Beacons {
		out[b.RoomID] = true
	}
	return out
}

// roomIDParam parses the {id} URL parameter, writing a 400 on failure.
func roomIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		writeBadRequest(w, "invalid room id: "+raw)
		return 0, false
	}
	return id, true
}
