package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-presence/internal/audit"
)

// record appends an audit entry for an operator action. Failures are
// logged and never fail the request.
func (s *Server) record(r *http.Request, action string, roomID int, details map[string]any) {
	if s.audit == nil {
		return
	}
	subject, _ := r.Context().Value(ctxKeySubject).(string) //nolint:errcheck // Empty without auth
	entry := &audit.Entry{
		Action:  action,
		RoomID:  &roomID,
		Subject: subject,
		Source:  audit.SourceAPI,
		Details: details,
	}
	if err := s.audit.Create(r.Context(), entry); err != nil {
		s.logger.Warn("audit write failed", "action", action, "room_id", roomID, "error", err)
	}
}

// handleListAudit returns audit entries, newest first.
// Query parameters: action, room_id, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit trail not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{Action: q.Get("action")}

	if raw := q.Get("room_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "invalid room_id: "+raw)
			return
		}
		filter.RoomID = &id
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "invalid "+name+": "+raw)
			return
		}
		*dst = v
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
