package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"facility-map/internal/auth/handlers"
	"facility-map/internal/auth/repository"
	"facility-map/internal/auth/service"
	"facility-map/internal/common/config"
	"facility-map/internal/common/logging"
	"facility-map/internal/common/middleware"
	"facility-map/internal/common/sqlite"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Auth Service
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if os.Getenv("PORT") == "" {
		cfg.Port = "3002"
	}

	log := logging.New().Level(cfg.LogLevel).Console(cfg.IsDevelopment()).Make()

	db, err := sqlite.Open(cfg.Auth.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background(), cfg.Auth.Migrations); err != nil {
		log.Fatal().Err(err).Msg("init db")
	}

	sessionManager := service.NewSessionManager()
	authHandler := handlers.NewAuthHandler(repo, sessionManager, logging.Component(log, "auth"))

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Auth Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(log))

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		if err := db.PingContext(context.Background()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	// ============================================================
	// Auth Routes
	// ============================================================

	authHandler.Routes(app)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().Str("addr", addr).Str("env", cfg.Environment).Msg("starting auth service")

	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
