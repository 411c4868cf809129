package handler

import (
	"strings"

	"feedsync/internal/delivery/http/dto"
	"feedsync/internal/delivery/http/middleware"
	"feedsync/internal/pkg/response"
	"feedsync/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type ListingsHandler struct {
	uc usecase.ListingUsecase
}

func NewListingsHandler(uc usecase.ListingUsecase) *ListingsHandler {
	return &ListingsHandler{uc: uc}
}

func (h *ListingsHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/jobs", h.HandleListJobs)
	r.Get("/events", h.HandleListEvents)
}

func (h *ListingsHandler) HandleListJobs(c fiber.Ctx) error {
	page, limit, err := pageQuery(c)
	if err != nil {
		return err
	}
	remote, err := parseQueryBool(c, "remote")
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	items, err := h.uc.ListJobs(c.Context(), usecase.JobListParams{
		Company: strings.TrimSpace(c.Query("company")),
		Query:   strings.TrimSpace(c.Query("q")),
		Remote:  remote,
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return mapUsecaseError(err)
	}

	page, limit, _ = usecase.NormalizePage(page, limit)
	return response.Success(c, fiber.StatusOK, "success", dto.NewPage(dto.NewJobListResponse(items), page, limit))
}

func (h *ListingsHandler) HandleListEvents(c fiber.Ctx) error {
	page, limit, err := pageQuery(c)
	if err != nil {
		return err
	}

	items, err := h.uc.ListEvents(c.Context(), usecase.EventListParams{
		From:     strings.TrimSpace(c.Query("from")),
		Category: strings.TrimSpace(c.Query("category")),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return mapUsecaseError(err)
	}

	page, limit, _ = usecase.NormalizePage(page, limit)
	return response.Success(c, fiber.StatusOK, "success", dto.NewPage(items, page, limit))
}

func pageQuery(c fiber.Ctx) (int, int, error) {
	page, err := parseQueryIntStrict(c, "page", 0)
	if err != nil {
		return 0, 0, middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	limit, err := parseQueryIntStrict(c, "limit", 0)
	if err != nil {
		return 0, 0, middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	return page, limit, nil
}
