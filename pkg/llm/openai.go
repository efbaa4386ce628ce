package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultLMStudioURL   = "http://localhost:1234"
	defaultLMStudioModel = "local-model"
	defaultOpenAIModel   = "gpt-4o-mini"
	lmStudioAPIKey       = "lm-studio"
)

// OpenAIProvider speaks the OpenAI chat completion protocol. It backs LM Studio, the hosted
// OpenAI API and Azure OpenAI deployments.
type OpenAIProvider struct {
	providerType ProviderType
	client       *openai.Client
	cfg          ProviderConfig
	logger       zerolog.Logger
}

// NewLMStudioProvider targets a local LM Studio server. JSON mode is left off because most local
// models reject the response_format field.
func NewLMStudioProvider(cfg ProviderConfig, logger zerolog.Logger) (*OpenAIProvider, error) {
	cfg = cfg.withDefaults()
	cfg.Type = ProviderLMStudio
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLMStudioURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultLMStudioModel
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = lmStudioAPIKey
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/v1"
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return newOpenAIProvider(cfg, config, logger), nil
}

// NewOpenAIProvider targets the hosted OpenAI API.
func NewOpenAIProvider(cfg ProviderConfig, logger zerolog.Logger) (*OpenAIProvider, error) {
	cfg = cfg.withDefaults()
	cfg.Type = ProviderOpenAI
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	cfg.JSONMode = true

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return newOpenAIProvider(cfg, config, logger), nil
}

// NewAzureOpenAIProvider targets an Azure OpenAI deployment. BaseURL is the resource endpoint.
func NewAzureOpenAIProvider(cfg ProviderConfig, logger zerolog.Logger) (*OpenAIProvider, error) {
	cfg = cfg.withDefaults()
	cfg.Type = ProviderAzureOpenAI
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		return nil, fmt.Errorf("azure openai endpoint and api key are required")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("azure openai deployment is required")
	}
	if cfg.Model == "" {
		cfg.Model = cfg.Deployment
	}
	cfg.JSONMode = true

	deployment := cfg.Deployment
	config := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	config.AzureModelMapperFunc = func(string) string { return deployment }
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return newOpenAIProvider(cfg, config, logger), nil
}

func newOpenAIProvider(cfg ProviderConfig, config openai.ClientConfig, logger zerolog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		providerType: cfg.Type,
		client:       openai.NewClientWithConfig(config),
		cfg:          cfg,
		logger:       logger.With().Str("component", "llm").Str("provider", cfg.Type.String()).Logger(),
	}
}

// Type implements Provider.
func (p *OpenAIProvider) Type() ProviderType { return p.providerType }

// GenerateResponse sends a single user message and returns the first choice.
func (p *OpenAIProvider) GenerateResponse(parent context.Context, prompt string, opts GenerateOptions) (Response, error) {
	ctx, done, call := startGeneration(parent, p.providerType, p.cfg.Model, p.cfg.Timeout)
	defer done()

	temperature, maxTokens := resolveOptions(p.cfg, opts)
	request := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}
	if p.cfg.JSONMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			p.logger.Warn().Int("status", apiErr.HTTPStatusCode).Str("model", p.cfg.Model).Msg("chat completion rejected")
		}
		return Response{}, call.fail(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, call.fail(errors.New("no choices returned"))
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	call.succeed(usage)

	model := resp.Model
	if model == "" {
		model = p.cfg.Model
	}
	return Response{
		Content:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Provider: p.providerType,
		Model:    model,
		Usage:    usage,
		Metadata: map[string]interface{}{
			"finish_reason": string(resp.Choices[0].FinishReason),
			"id":            resp.ID,
		},
	}, nil
}

// ScoreAnswer implements Provider.
func (p *OpenAIProvider) ScoreAnswer(ctx context.Context, criteria ScoringCriteria) (ScoringResult, error) {
	return scoreWith(ctx, p, p.cfg, criteria)
}

// HealthCheck lists the served models; any error reports unhealthy.
func (p *OpenAIProvider) HealthCheck(parent context.Context) bool {
	ctx, cancel := context.WithTimeout(parent, healthCheckTimeout)
	defer cancel()

	if _, err := p.client.ListModels(ctx); err != nil {
		p.logger.Debug().Err(err).Msg("health check failed")
		return false
	}
	return true
}

// Info implements ModelInfo.
func (p *OpenAIProvider) Info() ProviderInfo {
	return ProviderInfo{
		Provider:    p.providerType,
		Model:       p.cfg.Model,
		BaseURL:     p.cfg.BaseURL,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
}
