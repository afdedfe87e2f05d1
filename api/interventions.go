package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetIntervention(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.InterventionSnapshot(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "vehicleID"))
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleArrive(w http.ResponseWriter, r *http.Request) {
	if err := s.ops.Arrive(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "vehicleID")); err != nil {
		s.writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClose ends the vehicle's participation. Closing twice succeeds.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.ops.CloseIntervention(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "vehicleID")); err != nil {
		s.writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
