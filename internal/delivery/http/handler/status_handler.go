package handler

import (
	"feedsync/internal/pkg/response"
	"feedsync/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type StatusHandler struct {
	uc usecase.StatusUsecase
}

func NewStatusHandler(uc usecase.StatusUsecase) *StatusHandler {
	return &StatusHandler{uc: uc}
}

func (h *StatusHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/status", h.Report)
}

// Report serves the aggregate ingestion status. The body is never cached.
func (h *StatusHandler) Report(c fiber.Ctx) error {
	rep, err := h.uc.Report(c.Context())
	if err != nil {
		return mapUsecaseError(err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return response.Success(c, fiber.StatusOK, response.MessageOK, rep)
}
