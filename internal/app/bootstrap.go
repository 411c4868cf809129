package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/delivery/http/handler"
	"feedsync/internal/delivery/http/middleware"
	"feedsync/internal/delivery/http/routes"
	v1 "feedsync/internal/delivery/http/routes/v1"
	"feedsync/internal/pkg/jwt"
	"feedsync/internal/scheduler"
	"feedsync/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
	Scheduler *scheduler.Scheduler
}

func New(c *Container) *App {
	cfg := c.Config
	f := fiber.New(fiber.Config{AppName: cfg.App.AppName})

	registerGlobalMiddleware(f, c.Logger)

	jwtSvc := jwt.NewHMACService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
	routes.NewRegistry(v1.Handlers{
		Listings: handler.NewListingsHandler(c.Listings),
		Scrape:   handler.NewScrapeHandler(c.Scrape, c.Logger),
		Status:   handler.NewStatusHandler(c.Status),
		Auth:     middleware.NewAuthMiddleware(jwtSvc),
	}, ws.NewHandler(c.Hub, c.Logger)).Register(f)

	return &App{
		Fiber:     f,
		Container: c,
		Scheduler: scheduler.New(cfg.Schedule, c.Scrape, c.Queries, c.Logger),
	}
}

// Bootstrap builds the container and app and starts the background loops
// (websocket hub, cron). The returned cleanup stops them and closes the
// storage handles.
func Bootstrap(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, func() error, error) {
	c, err := NewContainer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	a := New(c)

	bg, cancel := context.WithCancel(context.Background())
	go c.Hub.Run(bg)

	if err := a.Scheduler.Start(bg); err != nil {
		cancel()
		_ = c.Close()
		return nil, nil, err
	}

	cleanup := func() error {
		cancel()
		a.Scheduler.Stop()
		return c.Close()
	}
	return a, cleanup, nil
}

func registerGlobalMiddleware(app *fiber.App, logger *log.Logger) {
	if app == nil {
		return
	}

	app.Use(middleware.NewAccessLogMiddleware(logger).Middleware())
	app.Use(middleware.NewErrorMiddleware(logger).Middleware())
}

// ListenAddr accepts "8080" or ":8080".
func ListenAddr(port string) (string, error) {
	p := strings.TrimPrefix(strings.TrimSpace(port), ":")
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("invalid HTTP port %q", port)
	}
	return ":" + p, nil
}

// Serve listens on addr until ctx is cancelled or the listener fails, then
// drains in-flight requests for at most shutdownTimeout.
func (a *App) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	logger := a.Container.Logger
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Fiber.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	logger.Printf("server status=listening addr=%s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Printf("server status=shutting_down timeout=%s", shutdownTimeout)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Fiber.ShutdownWithContext(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
