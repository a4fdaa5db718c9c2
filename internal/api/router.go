package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		// Locker endpoints
		r.Route("/lockers", func(r chi.Router) {
			r.Get("/", s.handleListLockers)
			r.Post("/", s.handleCreateLocker)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetLocker)
				r.Put("/", s.handleUpdateLocker)
				r.Delete("/", s.handleDeleteLocker)
				r.Post("/unlock", s.handleUnlockLocker)
				r.Post("/assign", s.handleAssignLocker)
				r.Post("/release", s.handleReleaseLocker)
			})
		})

		// Member endpoints
		r.Route("/members", func(r chi.Router) {
			r.Get("/", s.handleListMembers)
			r.Post("/", s.handleCreateMember)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetMember)
				r.Put("/", s.handleUpdateMember)
				r.Delete("/", s.handleDeleteMember)
			})
		})

		// Group endpoints
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.handleCreateGroup)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetGroup)
				r.Put("/", s.handleUpdateGroup)
				r.Delete("/", s.handleDeleteGroup)
			})
		})

		// Activity log
		r.Get("/activity", s.handleListActivity)

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleStats returns occupancy and connectivity counts for dashboards.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	lockers, err := s.registry.ListLockers(r.Context())
	if err != nil {
		writeInternalError(w, "listing lockers failed")
		return
	}

	stats := map[string]int{
		"total":       len(lockers),
		"available":   0,
		"occupied":    0,
		"maintenance": 0,
		"online":      0,
	}
	for i := range lockers {
		stats[string(lockers[i].Status)]++
		if lockers[i].Online {
			stats["online"]++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lockers":    stats,
		"ws_clients": s.hub.ClientCount(),
	})
}
