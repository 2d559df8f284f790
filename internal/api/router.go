package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/adcanvas/internal/canvasservice"
)

// NewRouter creates a chi router with all API routes mounted.
// defaultCredential is used when a request carries no X-Api-Key header.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *canvasservice.Service, defaultCredential string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(CredentialMiddleware(defaultCredential))

	// Canvas and nodes.
	r.Get("/canvas", h.Canvas)
	r.Get("/nodes/{id}", h.GetNode)
	r.Patch("/nodes/{id}", h.UpdateNode)
	r.Delete("/nodes/{id}", h.DeleteNode)
	r.Post("/nodes/{id}/concepts", h.AddConcept)
	r.Get("/nodes/{id}/image", h.NodeImage)
	r.Post("/edges", h.Connect)

	// Analysis session.
	r.Post("/analyze", h.Analyze)
	r.Get("/session", h.Session)
	r.Delete("/session", h.CancelSession)

	// Generation.
	r.Post("/concepts/{id}/generate", h.Generate)

	// Images.
	r.Post("/merge-images", h.MergeImages)
	r.Post("/merge-images/product", h.MergeAsProduct)
	r.Post("/linked-concepts", h.LinkedConcept)

	// Presets and models.
	r.Get("/presets", h.Presets)
	r.Get("/models", h.Models)
	r.Post("/models/next", h.NextModel)
	r.Put("/models/current", h.SelectModel)

	// Projects.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.SaveProject)
	r.Get("/projects/search", h.SearchProjects)
	r.Get("/projects/export", h.ExportProject)
	r.Post("/projects/import", h.ImportProject)
	r.Post("/projects/{name}/load", h.LoadProject)
	r.Delete("/projects/{name}", h.DeleteProject)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
