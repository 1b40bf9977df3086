package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-zigbee/internal/bridges/zigbee"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Scrape and probe endpoints
	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/queue", s.handleQueueStats)
		r.Get("/models", s.handleListModels)
		r.Get("/commands", s.handleListCommands)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/", s.handlePutDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Get("/state", s.handleGetDeviceState)
				r.Post("/command", s.handleDeviceCommand)
			})
		})
	})

	return r
}

// handleHealth returns the gateway health report. A stopping gateway answers
// 503 so load balancers and orchestrators stop routing to it.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.gateway.Health()
	status := http.StatusOK
	if health.Status == zigbee.HealthStopping {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleQueueStats returns command queue counters.
func (s *Server) handleQueueStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.gateway.QueueStats())
}
