package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "github.com/noah-isme/gema-scoring-engine/pkg/llm"
	healthCheckTimeout = 10 * time.Second
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scoring",
		Subsystem: "llm",
		Name:      "generation_duration_seconds",
		Help:      "Duration of language model generation requests",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 120},
	}, []string{"provider", "model"})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scoring",
		Subsystem: "llm",
		Name:      "generation_failures_total",
		Help:      "Number of failed language model generation requests",
	}, []string{"provider"})

	salvagedResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scoring",
		Subsystem: "llm",
		Name:      "salvaged_responses_total",
		Help:      "Number of scoring responses recovered from unstructured text",
	}, []string{"provider"})
)

// generator is the transport half of a provider; scoring is shared on top of it.
type generator interface {
	GenerateResponse(ctx context.Context, prompt string, opts GenerateOptions) (Response, error)
}

// scoreWith renders the rubric prompt, runs it through the generator with the scoring
// parameters and parses the completion. Only generation errors are returned.
func scoreWith(ctx context.Context, gen generator, cfg ProviderConfig, criteria ScoringCriteria) (ScoringResult, error) {
	criteria = criteria.WithDefaults()
	temperature := cfg.ScoringTemperature
	resp, err := gen.GenerateResponse(ctx, BuildScoringPrompt(criteria), GenerateOptions{
		Temperature: &temperature,
		MaxTokens:   cfg.ScoringMaxTokens,
	})
	if err != nil {
		return ScoringResult{}, err
	}

	result := ParseScoringResponse(resp.Content, criteria)
	result.Provider = resp.Provider
	result.Model = resp.Model
	result.Usage = resp.Usage
	if result.Quality == ParseSalvaged {
		salvagedResponses.WithLabelValues(resp.Provider.String()).Inc()
	}
	return result, nil
}

// resolveOptions merges per-call overrides onto the provider defaults.
func resolveOptions(cfg ProviderConfig, opts GenerateOptions) (float32, int) {
	temperature := cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := cfg.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	return temperature, maxTokens
}

// generationCall wraps one backend request with a span, a deadline and the shared metrics.
type generationCall struct {
	provider ProviderType
	model    string
	span     trace.Span
	start    time.Time
}

func startGeneration(parent context.Context, provider ProviderType, model string, timeout time.Duration) (context.Context, context.CancelFunc, *generationCall) {
	ctx, span := otel.Tracer(tracerName).Start(parent, "llm.generate", trace.WithAttributes(
		attribute.String("llm.provider", provider.String()),
		attribute.String("llm.model", model),
	))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		span.End()
	}, &generationCall{provider: provider, model: model, span: span, start: time.Now()}
}

// fail records the error and returns it wrapped in ErrGenerationFailed.
func (c *generationCall) fail(err error) error {
	generationDuration.WithLabelValues(c.provider.String(), c.model).Observe(time.Since(c.start).Seconds())
	generationFailures.WithLabelValues(c.provider.String()).Inc()
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%w: %s: %w", ErrGenerationFailed, c.provider, err)
}

func (c *generationCall) succeed(usage Usage) {
	generationDuration.WithLabelValues(c.provider.String(), c.model).Observe(time.Since(c.start).Seconds())
	c.span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", usage.CompletionTokens),
	)
}
