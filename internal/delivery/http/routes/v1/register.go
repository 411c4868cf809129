package v1

import (
	"feedsync/internal/delivery/http/handler"
	"feedsync/internal/delivery/http/middleware"

	"github.com/gofiber/fiber/v3"
)

type Handlers struct {
	Listings *handler.ListingsHandler
	Scrape   *handler.ScrapeHandler
	Status   *handler.StatusHandler
	Auth     *middleware.AuthMiddleware
}

func Register(r fiber.Router, h Handlers) {
	if r == nil {
		return
	}

	if h.Listings != nil {
		h.Listings.RegisterRoutes(r)
	}

	RegisterAdmin(r, h)
}
