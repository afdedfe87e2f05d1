package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/responder/core/model"
)

type validateRequest struct {
	VehicleIDs []string `json:"vehicle_ids"`
}

func (s *Server) handleDeclare(w http.ResponseWriter, r *http.Request) {
	var in model.EventInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.ops.Declare(r.Context(), in)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.EventSnapshot(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAmend(w http.ResponseWriter, r *http.Request) {
	var in model.EventInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.ops.Amend(r.Context(), chi.URLParam(r, "eventID"), in)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleValidate commits the chosen vehicles. An empty list is accepted and
// cancels every pending proposal.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ops.Validate(r.Context(), chi.URLParam(r, "eventID"), req.VehicleIDs); err != nil {
		s.writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
