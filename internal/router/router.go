package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-scoring-engine/internal/config"
	"github.com/noah-isme/gema-scoring-engine/internal/handler"
	"github.com/noah-isme/gema-scoring-engine/internal/middleware"
	"github.com/noah-isme/gema-scoring-engine/internal/observability"
	"github.com/noah-isme/gema-scoring-engine/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ScoringService service.ScoringService
	ScoringHandler *handler.ScoringHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())
	app.Get("/", handler.ServiceInfo(cfg, deps.ScoringService))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.ScoringService))

	if deps.ScoringHandler != nil {
		deps.ScoringHandler.Register(api, middleware.RateLimit("scoring", cfg.RateLimitMax, cfg.RateLimitWindow))
	}
}
