package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-scoring-engine/internal/cache"
	"github.com/noah-isme/gema-scoring-engine/internal/config"
	"github.com/noah-isme/gema-scoring-engine/internal/handler"
	"github.com/noah-isme/gema-scoring-engine/internal/middleware"
	"github.com/noah-isme/gema-scoring-engine/internal/router"
	"github.com/noah-isme/gema-scoring-engine/internal/scoring"
	"github.com/noah-isme/gema-scoring-engine/internal/service"
	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

const startupTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).Level(cfg.LogLevel).With().Timestamp().Logger()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.ConnectRedis(startupCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("result cache disabled")
		} else {
			defer redisClient.Close()
		}
	}

	manager := llm.NewManager(llm.DefaultFactory(), logger)
	for _, providerCfg := range cfg.ProviderConfigs() {
		manager.InitializeProvider(startupCtx, providerCfg)
	}
	if !manager.HasProviders() {
		logger.Warn().Msg("no language model provider available, using heuristic comprehensive scoring")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	integrator := scoring.NewIntegrator(
		scoring.NewRuleBasedScorer(logger),
		scoring.NewSemanticScorer(semanticEmbedder(cfg, logger), logger),
		comprehensiveMethod(manager, logger),
		scoring.IntegratorConfig{
			MethodTimeout: cfg.ScoringTimeout,
			Temperature:   cfg.LLMTemperature,
		},
		validate,
		logger,
	)

	resultCache := cache.NewResultCache(redisClient, cfg.CacheTTL, logger)
	scoringService := service.NewScoringService(integrator, manager, resultCache, validate, logger)
	scoringHandler := handler.NewScoringHandler(scoringService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ScoringService: scoringService,
		ScoringHandler: scoringHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

// semanticEmbedder returns the Ollama embedder when an embedding model is configured.
func semanticEmbedder(cfg config.Config, logger zerolog.Logger) scoring.Embedder {
	if cfg.OllamaEmbedModel == "" {
		return nil
	}
	embedder, err := llm.NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.LLMTimeout)
	if err != nil {
		logger.Warn().Err(err).Msg("embedding backend disabled, using heuristic semantic validity")
		return nil
	}
	return embedder
}

// comprehensiveMethod picks the language model rubric when a provider is available.
func comprehensiveMethod(manager *llm.Manager, logger zerolog.Logger) scoring.Method {
	if manager.HasProviders() {
		return scoring.NewLLMMethod(manager, "", logger)
	}
	return scoring.NewComprehensiveScorer(logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
