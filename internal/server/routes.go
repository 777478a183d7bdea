package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)

	r.Route("/agents", func(r chi.Router) {
		r.Get("/", s.listAgents)
		r.Post("/reload", s.reloadAgents)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.describeAgent)
			r.Post("/run", s.runAgent)
		})
	})

	r.Get("/event", s.lifecycleEvents)
}
