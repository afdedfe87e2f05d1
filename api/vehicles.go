package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/notify"
)

// vehicleRequest carries the fleet-reported fields of a vehicle. Dispatch
// status is owned by the coordinator and cannot be set here.
type vehicleRequest struct {
	Plate        string            `json:"plate"`
	Location     model.Location    `json:"location"`
	Station      string            `json:"station"`
	LastPosition time.Time         `json:"last_position"`
	Equipment    []model.Equipment `json:"equipment"`
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.VehicleSnapshot(r.Context(), chi.URLParam(r, "vehicleID"))
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePutVehicle(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusNotImplemented, "vehicle registry not available")
		return
	}
	var req vehicleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "vehicleID")
	v := model.Vehicle{
		ID:           id,
		Plate:        req.Plate,
		Location:     req.Location,
		Station:      req.Station,
		LastPosition: req.LastPosition,
		Equipment:    req.Equipment,
	}
	if err := s.registry.UpsertVehicle(r.Context(), v); err != nil {
		s.writeOpError(w, err)
		return
	}
	snap, err := s.snapshots.VehicleSnapshot(r.Context(), id)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(notify.TopicVehicles, []any{snap})
	}
	writeJSON(w, http.StatusOK, snap)
}
