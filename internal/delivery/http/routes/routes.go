// Package routes mounts every HTTP surface on the fiber app.
package routes

import (
	"feedsync/internal/delivery/http/handler"
	v1 "feedsync/internal/delivery/http/routes/v1"
	"feedsync/internal/pkg/response"
	"feedsync/internal/ws"

	"github.com/gofiber/fiber/v3"
)

const (
	apiPrefix    = "/api/v1"
	listingsWS   = "/ws/listings"
	msgNoSuchAPI = "route not found"
)

type Registry struct {
	health *handler.HealthHandler
	api    v1.Handlers
	ws     *ws.Handler
}

// NewRegistry takes the versioned API handlers and an optional websocket
// handler. A nil wsHandler leaves the live feed unmounted.
func NewRegistry(h v1.Handlers, wsHandler *ws.Handler) *Registry {
	return &Registry{health: handler.NewHealthHandler(), api: h, ws: wsHandler}
}

// Register mounts health, the live feed and the API in that order, then a
// fallback that answers unknown paths with the JSON envelope.
func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.health.RegisterRoutes(app)
	if r.ws != nil {
		app.Get(listingsWS, r.ws.HandleListingsWS)
	}
	v1.Register(app.Group(apiPrefix), r.api)

	app.Use(func(c fiber.Ctx) error {
		return response.Error(c, fiber.StatusNotFound, msgNoSuchAPI, nil)
	})
}
