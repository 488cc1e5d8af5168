package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog"
)

// ============================================================
// Logger Middleware
// ============================================================

// Logger пишет строку доступа на каждый запрос в логгер приложения.
// Время и уровень добавляет zerolog.
func Logger(log zerolog.Logger) fiber.Handler {
	access := log.With().Str("component", "http").Logger()
	return logger.New(logger.Config{
		Format:        "${status} - ${latency} ${method} ${path} | Content-Type: ${reqHeader:Content-Type}\n",
		Stream:        access,
		DisableColors: true,
	})
}
