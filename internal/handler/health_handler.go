package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-scoring-engine/internal/config"
	"github.com/noah-isme/gema-scoring-engine/internal/dto"
	"github.com/noah-isme/gema-scoring-engine/internal/scoring"
	"github.com/noah-isme/gema-scoring-engine/internal/service"
	"github.com/noah-isme/gema-scoring-engine/internal/utils"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// HealthCheck returns a handler that reports service and provider health. The service stays
// healthy without providers because the heuristic methods still score answers.
func HealthCheck(cfg config.Config, svc service.ScoringService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		providers := svc.ProviderHealth(c.UserContext())

		status := "ok"
		for _, healthy := range providers {
			if !healthy {
				status = "degraded"
				break
			}
		}

		cacheStatus := "disabled"
		if svc.CacheEnabled() {
			cacheStatus = "enabled"
		}

		payload := dto.HealthResponse{
			Status:       status,
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			LLMAvailable: svc.LLMAvailable(),
			Providers:    providers,
			Cache:        cacheStatus,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

// ServiceInfo returns a handler describing the running engine.
func ServiceInfo(cfg config.Config, svc service.ScoringService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", dto.ServiceInfoResponse{
			Service:      cfg.AppName,
			Version:      Version,
			LLMAvailable: svc.LLMAvailable(),
			Providers:    svc.AvailableProviders(),
			Methods:      []string{scoring.MethodRuleBased, scoring.MethodSemantic, scoring.MethodComprehensive},
		})
	}
}
