package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/obridge/internal/bridge"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *bridge.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Pipeline triggers.
	r.Post("/bridge", h.Bridge)
	r.Post("/scan", h.Scan)
	r.Post("/link", h.Link)

	r.Get("/snapshot", h.Snapshot)
	r.Get("/runs", h.Runs)

	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)

	r.Post("/exclusions", h.Exclude)
	r.Delete("/exclusions", h.Unexclude)
	r.Patch("/exclusions", h.SetFlags)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
