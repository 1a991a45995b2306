package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keeptrack/internal/tracker"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *tracker.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Post("/", h.CreateItem)

		r.Route("/{itemID}", func(r chi.Router) {
			r.Get("/", h.GetItem)
			r.Get("/observations", h.ListObservations)
			r.Post("/observations", h.CreateObservation)
		})
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
