// Package api exposes the operator commands and the live notification stream
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/dispatch"
	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/notify"
	"github.com/kilianp07/responder/core/store"
)

// Operations is the coordinator surface driven by operators.
type Operations interface {
	Declare(ctx context.Context, in model.EventInput) (model.Event, error)
	Amend(ctx context.Context, eventID string, in model.EventInput) (model.Event, error)
	Validate(ctx context.Context, eventID string, vehicleIDs []string) error
	CloseIntervention(ctx context.Context, eventID, vehicleID string) error
	Arrive(ctx context.Context, eventID, vehicleID string) error
}

// Deps holds the collaborators of the HTTP server. Registry and Audit are
// optional.
type Deps struct {
	Ops       Operations
	Snapshots store.SnapshotReader
	Registry  store.VehicleRegistry
	Hub       *notify.Hub
	Audit     audit.Store
	// Token protects the audit endpoint with a bearer token when set.
	Token     string
	Heartbeat time.Duration
	Logger    logger.Logger
}

// Server holds all dependencies for the REST API handlers.
type Server struct {
	ops       Operations
	snapshots store.SnapshotReader
	registry  store.VehicleRegistry
	hub       *notify.Hub
	audit     audit.Store
	token     string
	heartbeat time.Duration
	logger    logger.Logger
}

// New creates a Server from its dependencies.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logger.NopLogger{}
	}
	if d.Audit == nil {
		d.Audit = audit.NopStore{}
	}
	return &Server{
		ops:       d.Ops,
		snapshots: d.Snapshots,
		registry:  d.Registry,
		hub:       d.Hub,
		audit:     d.Audit,
		token:     d.Token,
		heartbeat: d.Heartbeat,
		logger:    d.Logger,
	}
}

// Router returns a chi router with every route mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", s.Mount)
	return r
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Live notifications
	r.Get("/stream", s.handleStream)

	// Events
	r.Post("/events", s.handleDeclare)
	r.Get("/events/{eventID}", s.handleGetEvent)
	r.Put("/events/{eventID}", s.handleAmend)
	r.Post("/events/{eventID}/validate", s.handleValidate)

	// Interventions
	r.Get("/events/{eventID}/vehicles/{vehicleID}", s.handleGetIntervention)
	r.Post("/events/{eventID}/vehicles/{vehicleID}/arrive", s.handleArrive)
	r.Post("/events/{eventID}/vehicles/{vehicleID}/close", s.handleClose)

	// Vehicles
	r.Get("/vehicles/{vehicleID}", s.handleGetVehicle)
	r.Put("/vehicles/{vehicleID}", s.handlePutVehicle)

	// Transition log
	r.Get("/audit", s.handleAudit)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debugw("http request", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeOpError maps coordinator errors to HTTP statuses.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrEventClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
