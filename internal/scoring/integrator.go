package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-scoring-engine/internal/observability"
)

const (
	tracerName = "github.com/noah-isme/gema-scoring-engine/internal/scoring"

	fallbackShare      = 0.5
	fallbackConfidence = 0.3
	fallbackReason     = "error occurred, using fallback"

	defaultMethodTimeout = 30 * time.Second
)

// Weights are the composite weights of the three methods.
type Weights struct {
	RuleBased     float64 `json:"rule_based"`
	Semantic      float64 `json:"semantic"`
	Comprehensive float64 `json:"comprehensive"`
}

// DefaultWeights favour the semantic method.
var DefaultWeights = Weights{RuleBased: 0.3, Semantic: 0.4, Comprehensive: 0.3}

// IntegratorConfig tunes the integrator.
type IntegratorConfig struct {
	// MethodTimeout bounds every method call. Zero uses 30s.
	MethodTimeout time.Duration
	// Temperature is reported on integrated results.
	Temperature float64
	// Weights defaults to DefaultWeights when zero.
	Weights Weights
}

// Integrator runs the three scoring methods concurrently and combines their results.
type Integrator struct {
	ruleBased     Method
	semantic      Method
	comprehensive Method
	cfg           IntegratorConfig
	validate      *validator.Validate
	tracer        trace.Tracer
	logger        zerolog.Logger
}

// NewIntegrator wires the three methods into an integrator.
func NewIntegrator(ruleBased, semantic, comprehensive Method, cfg IntegratorConfig, validate *validator.Validate, logger zerolog.Logger) *Integrator {
	if cfg.MethodTimeout <= 0 {
		cfg.MethodTimeout = defaultMethodTimeout
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	if validate == nil {
		validate = validator.New()
	}
	observability.RegisterMetrics()

	return &Integrator{
		ruleBased:     ruleBased,
		semantic:      semantic,
		comprehensive: comprehensive,
		cfg:           cfg,
		validate:      validate,
		tracer:        otel.Tracer(tracerName),
		logger:        logger.With().Str("component", "scoring_integrator").Logger(),
	}
}

// Score always returns a well-formed result. Method failures are replaced by a neutral fallback;
// failures of the integration itself produce the emergency fallback.
func (i *Integrator) Score(parent context.Context, answer string, question QuestionData) (result IntegratedResult) {
	ctx, span := i.tracer.Start(parent, "scoring.integrate", trace.WithAttributes(
		attribute.Float64("scoring.points", question.Points),
		attribute.Int("scoring.answer_chars", runeCount(answer)),
	))
	defer span.End()

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("integration panicked: %v", recovered)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			result = i.emergencyFallback(question, err)
		}
	}()

	if err := i.checkQuestion(question); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return i.emergencyFallback(question, err)
	}

	ruleCh := i.launch(ctx, MethodRuleBased, i.ruleBased, answer, question)
	semanticCh := i.launch(ctx, MethodSemantic, i.semantic, answer, question)
	comprehensiveCh := i.launch(ctx, MethodComprehensive, i.comprehensive, answer, question)
	outcomes := [3]methodOutcome{<-ruleCh, <-semanticCh, <-comprehensiveCh}

	result = i.compose(outcomes, question)
	observability.IntegratedConfidence().Observe(result.Confidence)
	span.SetAttributes(
		attribute.Float64("scoring.total_score", result.TotalScore),
		attribute.Float64("scoring.confidence", result.Confidence),
		attribute.StringSlice("scoring.fallback_methods", result.FallbackMethods),
	)
	return result
}

func (i *Integrator) checkQuestion(question QuestionData) error {
	if err := i.validate.Struct(question); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuestion, err)
	}
	if math.IsInf(question.Points, 0) {
		return fmt.Errorf("%w: points must be finite", ErrInvalidQuestion)
	}
	if i.ruleBased == nil || i.semantic == nil || i.comprehensive == nil {
		return errors.New("scoring method not configured")
	}
	return nil
}

type methodOutcome struct {
	name     string
	result   MethodResult
	err      error
	fallback bool
}

// launch runs one method in its own goroutine and delivers exactly one outcome on the
// returned channel, already replaced by the fallback when the method failed.
func (i *Integrator) launch(ctx context.Context, slot string, method Method, answer string, question QuestionData) <-chan methodOutcome {
	out := make(chan methodOutcome, 1)
	go func() {
		outcome := i.runMethod(ctx, slot, method, answer, question)
		if outcome.err != nil {
			outcome = i.fallbackOutcome(outcome, question)
		}
		out <- outcome
	}()
	return out
}

// runMethod calls one method under the per-method deadline. The slot name, not Method.Name,
// labels the outcome so the three results always join in fixed positions.
func (i *Integrator) runMethod(parent context.Context, name string, method Method, answer string, question QuestionData) methodOutcome {
	ctx, span := i.tracer.Start(parent, "scoring.method."+name)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, i.cfg.MethodTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan methodOutcome, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- methodOutcome{name: name, err: fmt.Errorf("scoring method %s panicked: %v", name, recovered)}
			}
		}()
		result, err := method.Score(ctx, answer, question)
		done <- methodOutcome{name: name, result: result, err: err}
	}()

	var outcome methodOutcome
	select {
	case outcome = <-done:
		if outcome.err == nil {
			outcome.err = outcome.result.check()
		}
	case <-ctx.Done():
		outcome = methodOutcome{name: name, err: fmt.Errorf("%w: %s: %w", ErrMethodTimeout, name, ctx.Err())}
	}
	observability.MethodDuration().WithLabelValues(name).Observe(time.Since(start).Seconds())

	if outcome.err != nil {
		span.RecordError(outcome.err)
		span.SetStatus(codes.Error, outcome.err.Error())
	}
	return outcome
}

func (i *Integrator) fallbackOutcome(failed methodOutcome, question QuestionData) methodOutcome {
	reason := "error"
	switch {
	case errors.Is(failed.err, ErrMethodTimeout):
		reason = "timeout"
	case errors.Is(failed.err, ErrInvalidMethodResult):
		reason = "invalid_result"
	}
	observability.MethodFallbacks().WithLabelValues(failed.name, reason).Inc()
	i.logger.Error().Err(failed.err).Str("method", failed.name).Msg("scoring method failed")
	i.logger.Warn().Str("method", failed.name).Str("reason", reason).Msg("using fallback result")

	return methodOutcome{
		name:     failed.name,
		fallback: true,
		err:      failed.err,
		result: MethodResult{
			Score:      question.Points * fallbackShare,
			MaxScore:   question.Points,
			Percentage: fallbackShare * 100,
			Confidence: fallbackConfidence,
			Details:    map[string]interface{}{"method": "fallback", "error": failed.err.Error()},
			Reasons:    []string{fallbackReason},
		},
	}
}

func (i *Integrator) compose(outcomes [3]methodOutcome, question QuestionData) IntegratedResult {
	rule, semantic, comprehensive := outcomes[0].result, outcomes[1].result, outcomes[2].result
	weights := i.cfg.Weights

	total := rule.Score*weights.RuleBased + semantic.Score*weights.Semantic + comprehensive.Score*weights.Comprehensive
	confidence := AgreementConfidence([]float64{
		rule.Percentage / 100,
		semantic.Percentage / 100,
		comprehensive.Percentage / 100,
	})

	fallbacks := make([]string, 0, len(outcomes))
	reasons := make([]string, 0, len(rule.Reasons)+len(semantic.Reasons)+len(comprehensive.Reasons))
	tokens := 0
	for _, outcome := range outcomes {
		if outcome.fallback {
			fallbacks = append(fallbacks, outcome.name)
		}
		reasons = append(reasons, outcome.result.Reasons...)
		tokens += outcome.result.TokensUsed
	}

	temperature := i.cfg.Temperature
	return IntegratedResult{
		TotalScore:         total,
		MaxScore:           question.Points,
		Percentage:         total / question.Points * 100,
		Confidence:         confidence,
		RuleBasedScore:     float64Ptr(rule.Score),
		SemanticScore:      float64Ptr(semantic.Score),
		ComprehensiveScore: float64Ptr(comprehensive.Score),
		Details: map[string]interface{}{
			MethodRuleBased:     rule.Details,
			MethodSemantic:      semantic.Details,
			MethodComprehensive: comprehensive.Details,
			"integration": map[string]interface{}{
				"weights":          weights,
				"method":           "weighted_average",
				"fallback_methods": fallbacks,
			},
		},
		Reasons:         reasons,
		Suggestions:     buildSuggestions(rule.Percentage, semantic.Percentage, comprehensive.Percentage),
		ModelName:       IntegratedModelName,
		Temperature:     &temperature,
		TokensUsed:      tokens,
		FallbackMethods: fallbacks,
	}
}

func (i *Integrator) emergencyFallback(question QuestionData, cause error) IntegratedResult {
	observability.EmergencyFallbacks().Inc()
	i.logger.Error().Err(cause).Msg("integration failed, returning emergency fallback")

	maxScore := question.Points
	if math.IsNaN(maxScore) || math.IsInf(maxScore, 0) {
		maxScore = 0
	}
	return IntegratedResult{
		TotalScore:         0,
		MaxScore:           maxScore,
		Percentage:         0,
		Confidence:         0,
		RuleBasedScore:     float64Ptr(0),
		SemanticScore:      float64Ptr(0),
		ComprehensiveScore: float64Ptr(0),
		Details:            map[string]interface{}{"error": cause.Error()},
		Reasons:            []string{"the scoring system encountered an error"},
		Suggestions:        []string{"Contact the system administrator."},
		ModelName:          EmergencyModelName,
		Temperature:        nil,
		TokensUsed:         0,
	}
}

func float64Ptr(value float64) *float64 {
	return &value
}
