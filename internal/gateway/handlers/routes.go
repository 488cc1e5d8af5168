package handlers

import (
	"github.com/gofiber/fiber/v3"

	"facility-map/internal/gateway/proxy"
)

// ============================================================
// Service Routes (Proxy)
// ============================================================

// Upstreams хранит адреса сервисов за шлюзом.
type Upstreams struct {
	Map  string
	Auth string
}

// ServiceRoutes вешает на api прокси-маршруты к сервисам. prefix срезается
// с пути перед пересылкой. /internal/* сервиса авторизации наружу не выходит.
func ServiceRoutes(api fiber.Router, p *proxy.Proxy, prefix string, up Upstreams) {
	toMap := p.Prefix(up.Map, prefix)
	for _, path := range []string{"/boxes", "/boxes/*", "/map/*", "/editor", "/editor/*"} {
		api.All(path, toMap)
	}

	toAuth := p.Prefix(up.Auth, prefix)
	api.Post("/login", toAuth)
	api.Post("/logout", toAuth)
	api.Post("/users", toAuth)
	api.Get("/users/:id", toAuth)
	api.Put("/users/:id/roles", toAuth)
}
