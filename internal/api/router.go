package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entities CRUD.
	r.Get("/entities", h.ListEntities)
	r.Post("/entities", h.CreateEntity)
	r.Get("/entities/{id}", h.GetEntity)
	r.Put("/entities/{id}", h.UpdateEntity)
	r.Delete("/entities/{id}", h.DeleteEntity)

	// Lifecycle transitions.
	r.Post("/entities/{id}/archive", h.Archive)
	r.Post("/entities/{id}/unarchive", h.Unarchive)
	r.Post("/entities/{id}/restore", h.Restore)
	r.Post("/entities/{id}/complete", h.Complete)
	r.Post("/entities/{id}/convert", h.Convert)

	// Containment.
	r.Get("/entities/{id}/children", h.Children)
	r.Post("/entities/{id}/children", h.InsertChildren)
	r.Delete("/entities/{id}/children/{childID}", h.RemoveChild)
	r.Put("/entities/{id}/order", h.SetOrder)
	r.Post("/entities/{id}/parents", h.AddParent)
	r.Delete("/entities/{id}/parents/{parentID}", h.RemoveParent)

	// References.
	r.Get("/entities/{id}/backlinks", h.Backlinks)

	// Views.
	r.Get("/uncategorized", h.Uncategorized)
	r.Get("/root", h.Root)

	// Search.
	r.Get("/search", h.Search)

	// Graph.
	r.Get("/graph", h.Graph)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
