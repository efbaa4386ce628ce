package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-scoring-engine/internal/dto"
	"github.com/noah-isme/gema-scoring-engine/internal/service"
	"github.com/noah-isme/gema-scoring-engine/internal/utils"
	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

// ScoringHandler exposes the scoring endpoints.
type ScoringHandler struct {
	service service.ScoringService
	logger  zerolog.Logger
}

// NewScoringHandler constructs a scoring handler.
func NewScoringHandler(service service.ScoringService, logger zerolog.Logger) *ScoringHandler {
	return &ScoringHandler{
		service: service,
		logger:  logger.With().Str("component", "scoring_handler").Logger(),
	}
}

// Register wires scoring routes. The optional middleware guards the routes that run scoring.
func (h *ScoringHandler) Register(router fiber.Router, scoringMiddleware ...fiber.Handler) {
	guarded := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, scoringMiddleware...), handler)
	}
	router.Post("/score", guarded(h.score)...)
	router.Post("/llm/score", guarded(h.scoreWithLLM)...)
	router.Get("/llm/providers", h.providers)
}

func (h *ScoringHandler) score(c *fiber.Ctx) error {
	var payload dto.ScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Score(c.UserContext(), payload)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid scoring request", validationDetails(err))
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to score answer")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to score answer")
	}

	message := "answer scored"
	if response.Result.IsEmergency() {
		message = "scoring failed, manual review required"
	}
	return utils.SendSuccess(c, message, response)
}

func (h *ScoringHandler) scoreWithLLM(c *fiber.Ctx) error {
	var payload dto.ScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.ScoreWithLLM(c.UserContext(), payload)
	if err != nil {
		logger := requestLogger(h.logger, c)
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid scoring request", validationDetails(err))
		case errors.Is(err, service.ErrLLMUnavailable):
			logger.Warn().Err(err).Msg("language model scoring requested without a provider")
			return utils.SendError(c, fiber.StatusServiceUnavailable, "language model scoring unavailable")
		case errors.Is(err, llm.ErrGenerationFailed):
			logger.Error().Err(err).Msg("language model generation failed")
			return utils.SendError(c, fiber.StatusBadGateway, "language model request failed")
		default:
			logger.Error().Err(err).Msg("failed to score answer with language model")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to score answer")
		}
	}

	return utils.SendSuccess(c, "answer scored by language model", response)
}

func (h *ScoringHandler) providers(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "", h.service.Providers(c.UserContext()))
}
