// internal/api/router.go
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Gavinw575/plant-moisture-monitor/internal/auth"
)

// SetupRouter builds the HTTP surface: read-only status endpoints, the
// websocket upgrade, and the authenticated configuration-change endpoints.
func SetupRouter(h *Handler, authMgr *auth.Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/recent", h.HandleRecent)
		r.Get("/sensors", h.HandleListSensors)
		r.Post("/login", h.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(authMgr.RequireAuth)
			r.Put("/sensors/{id}/thresholds", h.HandleUpdateThresholds)
			r.Put("/sensors/{id}/name", h.HandleRename)
			r.Put("/sensors/{id}/image", h.HandleSetImage)
			r.Post("/sensors/{id}/calibrate", h.HandleCalibrate)
		})
	})

	return r
}
