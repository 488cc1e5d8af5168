package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Health Check Handlers
// ============================================================

// LivenessProbe проверяет, что приложение работает
func LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// ReadinessProbe проверяет готовность всех upstream-сервисов: шлюз готов,
// только когда каждый из них отвечает 200 на /health/ready.
func ReadinessProbe(upstreams map[string]string) fiber.Handler {
	client := &http.Client{Timeout: 2 * time.Second}

	return func(c fiber.Ctx) error {
		names := make([]string, 0, len(upstreams))
		for name := range upstreams {
			names = append(names, name)
		}
		sort.Strings(names)

		statuses := make([]string, len(names))
		var g errgroup.Group
		for i, name := range names {
			g.Go(func() error {
				statuses[i] = probe(client, upstreams[name]+"/health/ready")
				return nil
			})
		}
		_ = g.Wait()

		ready := true
		services := fiber.Map{}
		for i, name := range names {
			services[name] = statuses[i]
			ready = ready && statuses[i] == "ready"
		}

		if !ready {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "services": services})
		}
		return c.JSON(fiber.Map{"status": "ready", "services": services})
	}
}

func probe(client *http.Client, url string) string {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		return "invalid url"
	}
	resp, err := client.Do(req)
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "not ready"
	}
	return "ready"
}

// StartupProbe проверяет, что приложение успешно запустилось
func StartupProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "started",
	})
}
