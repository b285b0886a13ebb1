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

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Device credential provisioning
			r.Post("/auth/device-token", s.handleDeviceToken)

			// WS ticket requires authentication
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Feature discovery
			r.Get("/features", s.handleListFeatures)

			// Per-feature route fragments
			for _, half := range s.registry.APIHalves() {
				r.Mount("/"+half.Descriptor().Name, half.Routes())
			}

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
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

// featureInfo is one entry in the feature listing.
type featureInfo struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// handleListFeatures reports enabled features plus declared optional
// features that are currently off.
func (s *Server) handleListFeatures(w http.ResponseWriter, _ *http.Request) {
	enabled := s.registry.Enabled()
	running := make(map[string]bool, len(enabled))

	features := make([]featureInfo, 0, len(enabled))
	for _, d := range enabled {
		running[d.Name] = true
		features = append(features, featureInfo{Name: d.Name, Enabled: true})
	}
	for _, d := range s.registry.Optional() {
		if !running[d.Name] {
			features = append(features, featureInfo{Name: d.Name, Enabled: false})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"features": features,
		"count":    len(features),
	})
}
