package v1

import (
	"feedsync/internal/pkg/jwt"

	"github.com/gofiber/fiber/v3"
)

// RegisterAdmin mounts the scrape triggers and ledger views behind the
// admin role check. Nothing is mounted without an auth middleware.
func RegisterAdmin(r fiber.Router, h Handlers) {
	if r == nil || h.Auth == nil {
		return
	}

	admin := r.Group("/admin", h.Auth.RequireRole(jwt.RoleAdmin))
	if h.Scrape != nil {
		h.Scrape.RegisterRoutes(admin)
	}
	if h.Status != nil {
		h.Status.RegisterRoutes(admin)
	}
}
