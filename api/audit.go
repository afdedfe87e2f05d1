package api

import (
	"net/http"
	"time"

	"github.com/kilianp07/responder/core/audit"
)

// handleAudit exposes the transition log via GET /api/audit. Requests must
// include an Authorization header with "Bearer <token>" when a token is set.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.token != "" {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	q := audit.Query{
		EventID:   r.URL.Query().Get("event_id"),
		VehicleID: r.URL.Query().Get("vehicle_id"),
		Operation: r.URL.Query().Get("operation"),
	}
	for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if v := r.URL.Query().Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+key+": "+err.Error())
				return
			}
			*dst = t
		}
	}
	records, err := s.audit.Query(r.Context(), q)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
