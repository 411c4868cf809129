package handler

import (
	"errors"
	"strconv"

	"feedsync/internal/delivery/http/middleware"
	"feedsync/internal/domain"
	"feedsync/internal/pkg/response"
	"feedsync/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

const messageOperationFailed = "Operation failed"

func mapUsecaseError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	case errors.Is(err, domain.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Adapter not found", nil, err)
	case errors.Is(err, domain.ErrBusy):
		return middleware.NewAppError(fiber.StatusConflict, "Adapter is already running", nil, err)
	case errors.Is(err, usecase.ErrInternal):
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, messageOperationFailed, nil, err)
	}
}

func parseQueryIntStrict(c fiber.Ctx, key string, defaultVal int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(s)
}

func parseQueryBool(c fiber.Ctx, key string) (*bool, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
