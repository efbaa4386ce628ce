package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// geminiModels is the subset of genai.Models the provider calls; tests replace it.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// GeminiProvider calls the hosted Gemini API.
type GeminiProvider struct {
	models geminiModels
	cfg    ProviderConfig
	logger zerolog.Logger
}

// NewGeminiProvider builds a Gemini API client. The context is only used for client setup.
func NewGeminiProvider(ctx context.Context, cfg ProviderConfig, logger zerolog.Logger) (*GeminiProvider, error) {
	cfg = cfg.withDefaults()
	cfg.Type = ProviderGemini
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	cfg.JSONMode = true

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if client.Models == nil {
		return nil, fmt.Errorf("gemini client is missing the models service")
	}
	return newGeminiProvider(client.Models, cfg, logger), nil
}

func newGeminiProvider(models geminiModels, cfg ProviderConfig, logger zerolog.Logger) *GeminiProvider {
	return &GeminiProvider{
		models: models,
		cfg:    cfg,
		logger: logger.With().Str("component", "llm").Str("provider", ProviderGemini.String()).Logger(),
	}
}

// Type implements Provider.
func (p *GeminiProvider) Type() ProviderType { return ProviderGemini }

// GenerateResponse sends the prompt as a single user turn.
func (p *GeminiProvider) GenerateResponse(parent context.Context, prompt string, opts GenerateOptions) (Response, error) {
	ctx, done, call := startGeneration(parent, ProviderGemini, p.cfg.Model, p.cfg.Timeout)
	defer done()

	temperature, maxTokens := resolveOptions(p.cfg, opts)
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(maxTokens),
	}
	if p.cfg.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := p.models.GenerateContent(ctx, p.cfg.Model, contents, config)
	if err != nil {
		return Response{}, call.fail(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, call.fail(errors.New("no candidates returned"))
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			content.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(content.String())
	if text == "" {
		return Response{}, call.fail(errors.New("empty completion"))
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	call.succeed(usage)

	model := resp.ModelVersion
	if model == "" {
		model = p.cfg.Model
	}
	return Response{
		Content:  text,
		Provider: ProviderGemini,
		Model:    model,
		Usage:    usage,
		Metadata: map[string]interface{}{
			"finish_reason": string(resp.Candidates[0].FinishReason),
		},
	}, nil
}

// ScoreAnswer implements Provider.
func (p *GeminiProvider) ScoreAnswer(ctx context.Context, criteria ScoringCriteria) (ScoringResult, error) {
	return scoreWith(ctx, p, p.cfg, criteria)
}

// HealthCheck fetches the configured model's metadata.
func (p *GeminiProvider) HealthCheck(parent context.Context) bool {
	ctx, cancel := context.WithTimeout(parent, healthCheckTimeout)
	defer cancel()

	if _, err := p.models.Get(ctx, p.cfg.Model, nil); err != nil {
		p.logger.Debug().Err(err).Msg("health check failed")
		return false
	}
	return true
}

// Info implements ModelInfo.
func (p *GeminiProvider) Info() ProviderInfo {
	return ProviderInfo{
		Provider:    ProviderGemini,
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
}
