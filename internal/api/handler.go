// Package api provides HTTP handlers for the PrepPal engine.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/preppal/internal/gate"
	"github.com/ashureev/preppal/internal/router"
	"github.com/ashureev/preppal/internal/store"
)

// maxBodyBytes bounds request bodies. Audio payloads arrive base64 encoded.
const maxBodyBytes = 32 << 20

// Handler serves the navigation, message, settings and history routes.
type Handler struct {
	repo        store.Repository
	interceptor *gate.Interceptor
	grants      *gate.GrantStore
	cadence     *gate.CadenceTracker
	router      *router.Router
	logger      *slog.Logger

	// settingsMu serializes read-modify-write updates of the settings document.
	settingsMu sync.Mutex
}

// Deps wires a Handler.
type Deps struct {
	Repo        store.Repository
	Interceptor *gate.Interceptor
	Grants      *gate.GrantStore
	Cadence     *gate.CadenceTracker
	Router      *router.Router
	Logger      *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{
		repo:        d.Repo,
		interceptor: d.Interceptor,
		grants:      d.Grants,
		cadence:     d.Cadence,
		router:      d.Router,
		logger:      d.Logger,
	}
}

// RegisterRoutes registers the engine routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/navigate", h.Navigate)
		r.Post("/messages", h.Message)
		r.Get("/status", h.Status)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Post("/sites", h.AddSite)
		r.Get("/sites/match", h.MatchSite)
		r.Patch("/sites/{id}", h.UpdateSite)
		r.Delete("/sites/{id}", h.DeleteSite)

		r.Get("/interviews", h.ListInterviews)
		r.Delete("/interviews", h.ClearInterviews)

		r.Delete("/data", h.ClearData)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
