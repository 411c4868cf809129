package middleware

import (
	"log"
	"time"

	"feedsync/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type AccessLogMiddleware struct {
	logger *log.Logger
}

func NewAccessLogMiddleware(logger *log.Logger) *AccessLogMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	return &AccessLogMiddleware{logger: logger}
}

func (m *AccessLogMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		rid := c.Get(response.HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(response.HeaderRequestID, rid)

		err := c.Next()

		dur := time.Since(start)
		status := c.Response().StatusCode()

		subject, _ := c.Locals(CtxSubjectKey).(string)
		if m != nil && m.logger != nil {
			m.logger.Printf(
				"http_access rid=%s ip=%s method=%s path=%s status=%d latency=%s resp_bytes=%d subject=%q ua=%q",
				rid, c.IP(), c.Method(), c.OriginalURL(), status, dur, len(c.Response().Body()), subject, c.Get("User-Agent"),
			)
		}

		return err
	}
}
