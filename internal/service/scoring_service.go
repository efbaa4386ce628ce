package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-scoring-engine/internal/cache"
	"github.com/noah-isme/gema-scoring-engine/internal/dto"
	"github.com/noah-isme/gema-scoring-engine/internal/scoring"
	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

const integratedCacheVariant = "integrated"

var (
	// ErrInvalidRequest wraps validation failures of scoring requests.
	ErrInvalidRequest = errors.New("invalid scoring request")
	// ErrLLMUnavailable indicates that no language model provider can serve the request.
	ErrLLMUnavailable = errors.New("language model scoring unavailable")
)

// AnswerScorer produces integrated results. *scoring.Integrator satisfies it.
type AnswerScorer interface {
	Score(ctx context.Context, answer string, question scoring.QuestionData) scoring.IntegratedResult
}

// ProviderRegistry is the part of the provider manager the service depends on.
type ProviderRegistry interface {
	HasProviders() bool
	DefaultProvider() llm.ProviderType
	AvailableProviders() []llm.ProviderType
	SupportedProviders() []llm.ProviderType
	ProviderInfo(providerType llm.ProviderType) (llm.ProviderInfo, error)
	HealthCheckAll(ctx context.Context) map[llm.ProviderType]bool
	ScoreAnswer(ctx context.Context, criteria llm.ScoringCriteria, providerType llm.ProviderType) (llm.ScoringResult, error)
}

// ScoringService exposes the answer scoring workflow.
type ScoringService interface {
	Score(ctx context.Context, req dto.ScoreRequest) (dto.ScoreResponse, error)
	ScoreWithLLM(ctx context.Context, req dto.ScoreRequest) (dto.LLMScoreResponse, error)
	Providers(ctx context.Context) dto.ProvidersResponse
	ProviderHealth(ctx context.Context) map[llm.ProviderType]bool
	AvailableProviders() []llm.ProviderType
	LLMAvailable() bool
	CacheEnabled() bool
}

type scoringService struct {
	scorer    AnswerScorer
	providers ProviderRegistry
	cache     *cache.ResultCache
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewScoringService constructs the scoring service. resultCache may be nil.
func NewScoringService(scorer AnswerScorer, providers ProviderRegistry, resultCache *cache.ResultCache, validate *validator.Validate, logger zerolog.Logger) ScoringService {
	if validate == nil {
		validate = validator.New()
	}
	return &scoringService{
		scorer:    scorer,
		providers: providers,
		cache:     resultCache,
		validator: validate,
		logger:    logger.With().Str("component", "scoring_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-scoring-engine/internal/service/scoring"),
		now:       time.Now,
	}
}

func (s *scoringService) Score(ctx context.Context, req dto.ScoreRequest) (dto.ScoreResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.request")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.ScoreResponse{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	start := s.now()
	question := req.Question.ToQuestionData()
	key := cache.Key(integratedCacheVariant, req.AnswerText, question)
	response := dto.ScoreResponse{RequestID: uuid.NewString(), AnswerID: req.AnswerID}

	if !req.SkipCache {
		if cached, ok := s.cache.Get(ctx, key); ok {
			response.Result = cached
			response.CacheHit = true
			response.ProcessingTimeMs = s.now().Sub(start).Milliseconds()
			span.SetAttributes(attribute.Bool("scoring.cache_hit", true))
			return response, nil
		}
	}

	result := s.scorer.Score(ctx, req.AnswerText, question)
	s.cache.Set(ctx, key, result)

	response.Result = result
	response.ProcessingTimeMs = s.now().Sub(start).Milliseconds()
	span.SetAttributes(
		attribute.Bool("scoring.cache_hit", false),
		attribute.Bool("scoring.degraded", result.Degraded()),
	)

	logEvent := s.logger.Info()
	if result.Degraded() {
		logEvent = s.logger.Warn().Strs("fallback_methods", result.FallbackMethods).Bool("emergency", result.IsEmergency())
	}
	logEvent.
		Str("request_id", response.RequestID).
		Str("answer_id", req.AnswerID).
		Float64("total_score", result.TotalScore).
		Float64("confidence", result.Confidence).
		Int64("processing_time_ms", response.ProcessingTimeMs).
		Msg("answer scored")

	return response, nil
}

func (s *scoringService) ScoreWithLLM(ctx context.Context, req dto.ScoreRequest) (dto.LLMScoreResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.llm_request")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.LLMScoreResponse{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if s.providers == nil || !s.providers.HasProviders() {
		span.SetStatus(codes.Error, "no provider")
		return dto.LLMScoreResponse{}, ErrLLMUnavailable
	}

	start := s.now()
	criteria := scoring.CriteriaFor(req.AnswerText, req.Question.ToQuestionData())
	result, err := s.providers.ScoreAnswer(ctx, criteria, llm.ProviderType(req.Provider))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, llm.ErrProviderNotConfigured) {
			return dto.LLMScoreResponse{}, fmt.Errorf("%w: %w", ErrLLMUnavailable, err)
		}
		return dto.LLMScoreResponse{}, err
	}

	response := dto.LLMScoreResponse{
		RequestID:        uuid.NewString(),
		AnswerID:         req.AnswerID,
		Result:           result,
		ProcessingTimeMs: s.now().Sub(start).Milliseconds(),
	}
	s.logger.Info().
		Str("request_id", response.RequestID).
		Str("provider", result.Provider.String()).
		Str("parse_quality", string(result.Quality)).
		Float64("total_score", result.TotalScore).
		Msg("answer scored by language model")
	return response, nil
}

func (s *scoringService) Providers(ctx context.Context) dto.ProvidersResponse {
	response := dto.ProvidersResponse{
		Providers: []llm.ProviderInfo{},
		Health:    map[llm.ProviderType]bool{},
		Supported: []llm.ProviderType{},
	}
	if s.providers == nil {
		return response
	}

	response.Default = s.providers.DefaultProvider()
	response.Supported = s.providers.SupportedProviders()
	for _, providerType := range s.providers.AvailableProviders() {
		info, err := s.providers.ProviderInfo(providerType)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider", providerType.String()).Msg("provider info unavailable")
			continue
		}
		response.Providers = append(response.Providers, info)
	}
	response.Health = s.ProviderHealth(ctx)
	return response
}

func (s *scoringService) ProviderHealth(ctx context.Context) map[llm.ProviderType]bool {
	if s.providers == nil {
		return map[llm.ProviderType]bool{}
	}
	return s.providers.HealthCheckAll(ctx)
}

func (s *scoringService) AvailableProviders() []llm.ProviderType {
	if s.providers == nil {
		return []llm.ProviderType{}
	}
	if available := s.providers.AvailableProviders(); available != nil {
		return available
	}
	return []llm.ProviderType{}
}

func (s *scoringService) LLMAvailable() bool {
	return s.providers != nil && s.providers.HasProviders()
}

func (s *scoringService) CacheEnabled() bool {
	return s.cache.Enabled()
}
