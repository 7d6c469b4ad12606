// Package statusapi exposes the navigation service over HTTP for the demo
// binary: status, destination control and Prometheus metrics.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/signalsfoundry/satnav/core"
	"github.com/signalsfoundry/satnav/internal/logging"
)

// Navigator is the subset of core.NavigationService the API needs.
type Navigator interface {
	Snapshot() core.ServiceSnapshot
	SetDestination(ctx context.Context, junction int) error
	ClearDestination()
}

// Options customises the router.
type Options struct {
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// AllowedOrigins enables CORS for browser dashboards.
	AllowedOrigins []string
	Logger         logging.Logger
}

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DestinationRequest is the body of PUT /destination.
type DestinationRequest struct {
	Junction *int `json:"junction"`
}

type handler struct {
	nav Navigator
	log logging.Logger
}

// NewRouter builds the HTTP routes around nav.
func NewRouter(nav Navigator, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	h := &handler{nav: nav, log: log}

	r := chi.NewRouter()
	r.Use(requestContext(log))
	r.Use(tracing)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", h.getStatus)
	r.Put("/destination", h.putDestination)
	r.Delete("/destination", h.deleteDestination)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

func (h *handler) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.nav.Snapshot())
}

func (h *handler) putDestination(w http.ResponseWriter, r *http.Request) {
	var req DestinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Junction == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "junction is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	err := h.nav.SetDestination(ctx, *req.Junction)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.nav.Snapshot())
	case errors.Is(err, core.ErrUnknownJunction):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNetworkUnavailable):
		loggerFor(r, h.log).Warn(r.Context(), "set destination: network unavailable", logging.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		loggerFor(r, h.log).Error(r.Context(), "set destination failed", logging.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func (h *handler) deleteDestination(w http.ResponseWriter, r *http.Request) {
	h.nav.ClearDestination()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
