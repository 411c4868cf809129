package handler

import (
	"log"
	"strings"
	"time"

	"feedsync/internal/delivery/http/middleware"
	"feedsync/internal/domain/listing"
	"feedsync/internal/domain/run"
	"feedsync/internal/pkg/response"
	"feedsync/internal/repository"
	"feedsync/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type ScrapeHandler struct {
	uc  usecase.ScrapeUsecase
	log *log.Logger
}

func NewScrapeHandler(uc usecase.ScrapeUsecase, logger *log.Logger) *ScrapeHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &ScrapeHandler{uc: uc, log: logger}
}

func (h *ScrapeHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Post("/scrape/jobs", h.scrape(listing.KindJob))
	r.Post("/scrape/jobs/:name", h.scrape(listing.KindJob))
	r.Post("/scrape/events", h.scrape(listing.KindEvent))
	r.Post("/scrape/events/:name", h.scrape(listing.KindEvent))
	r.Get("/runs", h.ListRuns)
	r.Get("/sources", h.ListSources)
}

func (h *ScrapeHandler) scrape(kind listing.Kind) fiber.Handler {
	return func(c fiber.Ctx) error {
		persist := true
		if v, err := parseQueryBool(c, "persist"); err != nil {
			return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
		} else if v != nil {
			persist = *v
		}
		name := strings.TrimSpace(c.Params("name"))

		start := time.Now()
		h.log.Printf("http_request method=%s path=%s kind=%s adapter=%q persist=%t status=started", c.Method(), c.Path(), kind, name, persist)

		summary, err := h.uc.Scrape(c.Context(), usecase.ScrapeParams{Kind: kind, Adapter: name, Persist: persist})
		if err != nil {
			h.log.Printf("http_request method=%s path=%s kind=%s adapter=%q status=error duration=%s err=%v", c.Method(), c.Path(), kind, name, time.Since(start), err)
			return mapUsecaseError(err)
		}

		h.log.Printf("http_request method=%s path=%s kind=%s adapter=%q status=ok duration=%s", c.Method(), c.Path(), kind, name, time.Since(start))
		return response.Success(c, fiber.StatusOK, summary.Message, summary)
	}
}

func (h *ScrapeHandler) ListRuns(c fiber.Ctx) error {
	limit, err := parseQueryIntStrict(c, "limit", 50)
	if err != nil || limit < 0 {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	runs, err := h.uc.ListRuns(c.Context(), repository.RunFilter{
		ScraperName: strings.TrimSpace(c.Query("scraper")),
		Status:      run.Status(strings.TrimSpace(c.Query("status"))),
		Limit:       limit,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	if runs == nil {
		runs = []run.Run{}
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, runs)
}

func (h *ScrapeHandler) ListSources(c fiber.Ctx) error {
	return response.Success(c, fiber.StatusOK, response.MessageOK, h.uc.Sources())
}
