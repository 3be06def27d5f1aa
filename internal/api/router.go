package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the dependency checks behind /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodyLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/beacons", s.handleListBeacons)
		r.Get("/occupancy", s.handleOccupancy)
		r.Get("/permission", s.handlePermission)
		r.Get("/ws", s.handleFeed)
		r.With(s.authMiddleware).Get("/audit", s.handleListAudit)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", s.handleListRooms)
			r.Get("/{id}", s.handleGetRoom)

			// Mutating routes
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)

				r.Post("/", s.handleCreateRoom)
				r.Patch("/{id}", s.handleUpdateRoom)
				r.Put("/{id}/beacon", s.handleAssignBeacon)
				r.Delete("/{id}", s.handleDeleteRoom)
				r.Post("/{id}/scan", s.handleStartScan)
				r.Delete("/{id}/scan", s.handleStopScan)
			})
		})
	})

	return r
}

// handleHealth returns the server health status. Any failing dependency
// turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
