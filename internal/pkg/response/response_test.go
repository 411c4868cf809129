package response

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMessage(t *testing.T) {
	assert.Equal(t, MessageOK, DefaultMessage(fiber.StatusOK))
	assert.Equal(t, MessageConflict, DefaultMessage(fiber.StatusConflict))
	assert.Equal(t, MessageServiceUnavailable, DefaultMessage(fiber.StatusServiceUnavailable))
	assert.Equal(t, MessageInternalServerError, DefaultMessage(fiber.StatusBadGateway))
	assert.Equal(t, MessageError, DefaultMessage(fiber.StatusTeapot))
}

func TestWrite_EnvelopeCarriesRequestID(t *testing.T) {
	app := fiber.New()
	app.Get("/ok", func(c fiber.Ctx) error {
		c.Set(HeaderRequestID, "rid-1")
		return Success(c, fiber.StatusOK, "", map[string]int{"n": 1})
	})
	app.Get("/bad", func(c fiber.Ctx) error {
		return Error(c, 42, "", nil)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var env SemanticResponse
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, fiber.StatusOK, env.Status)
	assert.Equal(t, MessageOK, env.Message)
	assert.Equal(t, "rid-1", env.RequestID)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/bad", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "request_id")
}
