package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facility-map/internal/common/config"
	"facility-map/internal/common/logging"
	"facility-map/internal/common/middleware"
	"facility-map/internal/gateway/handlers"
	"facility-map/internal/gateway/proxy"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New().Level(cfg.LogLevel).Console(cfg.IsDevelopment()).Make()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    32 << 20,
		AppName:      "API Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(log))
	app.Use(middleware.CORS(cfg.Gateway.CORSOrigins))

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", handlers.LivenessProbe)
	app.Get("/health/ready", handlers.ReadinessProbe(map[string]string{
		"map":  cfg.Gateway.MapURL,
		"auth": cfg.Gateway.AuthURL,
	}))
	app.Get("/health/startup", handlers.StartupProbe)

	// ============================================================
	// Docs
	// ============================================================

	app.Get("/docs", handlers.SwaggerUI)
	app.Get("/docs/openapi.yaml", handlers.SwaggerSpec(cfg.Gateway.DocsPath))

	// ============================================================
	// API Routes
	// ============================================================

	api := app.Group("/api/v1")

	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Facility Map API v1",
			"status":  "ok",
		})
	})

	p := proxy.New(30*time.Second, logging.Component(log, "proxy"))
	handlers.ServiceRoutes(api, p, "/api/v1", handlers.Upstreams{
		Map:  cfg.Gateway.MapURL,
		Auth: cfg.Gateway.AuthURL,
	})

	// ============================================================
	// Server Start
	// ============================================================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().
		Str("addr", addr).
		Str("env", cfg.Environment).
		Str("map", cfg.Gateway.MapURL).
		Str("auth", cfg.Gateway.AuthURL).
		Msg("starting api gateway")

	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
