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
	"facility-map/internal/common/sqlite"
	"facility-map/internal/mapeditor/asset"
	"facility-map/internal/mapeditor/handlers"
	"facility-map/internal/mapeditor/repository"
	"facility-map/internal/mapeditor/service"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Map Service
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if os.Getenv("PORT") == "" {
		cfg.Port = "3003"
	}

	log := logging.New().Level(cfg.LogLevel).Console(cfg.IsDevelopment()).Make()

	db, err := sqlite.Open(cfg.Map.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background(), cfg.Map.Migrations); err != nil {
		log.Fatal().Err(err).Msg("init db")
	}

	storage := asset.NewStorage(cfg.Map.AssetsDir)
	imagePath := cfg.Map.Image
	if uploaded, ok := storage.Current(); ok {
		imagePath = uploaded
	}
	img, err := asset.Load(imagePath)
	if err != nil {
		log.Warn().Err(err).Str("path", imagePath).Msg("background unavailable, using 1920x1080 placeholder")
	}

	auth := service.NewAuthClient(cfg.Map.AuthURL, logging.Component(log, "auth"))
	mapHandler, err := handlers.NewMapHandler(repo, auth, storage, img, handlers.Options{
		BaseURL: cfg.Map.PublicBaseURL,
		IdleTTL: cfg.Map.EditorIdleTTL,
		Log:     logging.Component(log, "map"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init handlers")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go mapHandler.Registry().Run(ctx, time.Minute)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    32 << 20,
		AppName:      "Map Service",
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
		if err := repo.Ping(context.Background()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	// ============================================================
	// Map Routes
	// ============================================================

	mapHandler.Routes(app)

	// ============================================================
	// Server Start
	// ============================================================

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().Str("addr", addr).Str("env", cfg.Environment).Msg("starting map service")

	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
