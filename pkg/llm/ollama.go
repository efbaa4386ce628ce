package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// OllamaProvider talks to a local Ollama server through its native chat API.
type OllamaProvider struct {
	client *api.Client
	cfg    ProviderConfig
	logger zerolog.Logger
}

// NewOllamaProvider builds a provider for the configured Ollama host.
func NewOllamaProvider(cfg ProviderConfig, logger zerolog.Logger) (*OllamaProvider, error) {
	cfg = cfg.withDefaults()
	cfg.Type = ProviderOllama
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	cfg.JSONMode = true

	client, err := newOllamaClient(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &OllamaProvider{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "llm").Str("provider", ProviderOllama.String()).Logger(),
	}, nil
}

func newOllamaClient(baseURL string, timeout time.Duration) (*api.Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse ollama url: %q is not absolute", baseURL)
	}
	return api.NewClient(parsed, &http.Client{Timeout: timeout}), nil
}

// Type implements Provider.
func (p *OllamaProvider) Type() ProviderType { return ProviderOllama }

// GenerateResponse runs one non-streaming chat turn.
func (p *OllamaProvider) GenerateResponse(parent context.Context, prompt string, opts GenerateOptions) (Response, error) {
	ctx, done, call := startGeneration(parent, ProviderOllama, p.cfg.Model, p.cfg.Timeout)
	defer done()

	temperature, maxTokens := resolveOptions(p.cfg, opts)
	stream := false
	request := &api.ChatRequest{
		Model:    p.cfg.Model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}
	if p.cfg.JSONMode {
		request.Format = json.RawMessage(`"json"`)
	}

	var final api.ChatResponse
	var content strings.Builder
	err := p.client.Chat(ctx, request, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		return Response{}, call.fail(err)
	}
	text := strings.TrimSpace(content.String())
	if text == "" {
		return Response{}, call.fail(errors.New("empty completion"))
	}

	usage := Usage{
		PromptTokens:     final.PromptEvalCount,
		CompletionTokens: final.EvalCount,
		TotalTokens:      final.PromptEvalCount + final.EvalCount,
	}
	call.succeed(usage)

	model := final.Model
	if model == "" {
		model = p.cfg.Model
	}
	return Response{
		Content:  text,
		Provider: ProviderOllama,
		Model:    model,
		Usage:    usage,
		Metadata: map[string]interface{}{
			"done_reason":    final.DoneReason,
			"total_duration": final.TotalDuration.String(),
		},
	}, nil
}

// ScoreAnswer implements Provider.
func (p *OllamaProvider) ScoreAnswer(ctx context.Context, criteria ScoringCriteria) (ScoringResult, error) {
	return scoreWith(ctx, p, p.cfg, criteria)
}

// HealthCheck pings the server root.
func (p *OllamaProvider) HealthCheck(parent context.Context) bool {
	ctx, cancel := context.WithTimeout(parent, healthCheckTimeout)
	defer cancel()

	if err := p.client.Heartbeat(ctx); err != nil {
		p.logger.Debug().Err(err).Msg("health check failed")
		return false
	}
	return true
}

// Info implements ModelInfo.
func (p *OllamaProvider) Info() ProviderInfo {
	return ProviderInfo{
		Provider:    ProviderOllama,
		Model:       p.cfg.Model,
		BaseURL:     p.cfg.BaseURL,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
}

// OllamaEmbedder produces text embeddings with an Ollama embedding model.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder builds an embedder against baseURL using model.
func NewOllamaEmbedder(baseURL, model string, timeout time.Duration) (*OllamaEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	client, err := newOllamaClient(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedder{client: client, model: model}, nil
}

// Embed returns one vector per input, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, inputs ...string) ([][]float64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(inputs))
	}

	vectors := make([][]float64, 0, len(resp.Embeddings))
	for _, embedding := range resp.Embeddings {
		vector := make([]float64, 0, len(embedding))
		for _, v := range embedding {
			vector = append(vector, float64(v))
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}
