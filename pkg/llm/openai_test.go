package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	mu   sync.Mutex
	body map[string]any
}

func (c *capturedRequest) store(body map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.body = body
}

func (c *capturedRequest) load() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

func newLMStudioServer(t *testing.T, content string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   []map[string]any{{"id": "local-model", "object": "model"}},
			})
		case "/v1/chat/completions":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if captured != nil {
				captured.store(body)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  "local-model",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				}},
				"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 80, "total_tokens": 200},
			})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLMStudioProviderScoresAnswer(t *testing.T) {
	captured := &capturedRequest{}
	content := "```json\n{\"total_score\": 19, \"aspect_scores\": {\"Logical structure\": 4}, \"detailed_feedback\": \"good\", \"confidence\": 0.85, \"reasoning\": \"clear\"}\n```"
	srv := newLMStudioServer(t, content, captured)

	provider, err := NewLMStudioProvider(ProviderConfig{BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	require.True(t, provider.HealthCheck(context.Background()))

	result, err := provider.ScoreAnswer(context.Background(), testCriteria())
	require.NoError(t, err)
	require.Equal(t, ParseStructured, result.Quality)
	require.Equal(t, 19.0, result.TotalScore)
	require.Equal(t, ProviderLMStudio, result.Provider)
	require.Equal(t, "local-model", result.Model)
	require.Equal(t, Usage{PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200}, result.Usage)

	body := captured.load()
	require.Equal(t, "local-model", body["model"])
	require.InDelta(t, 0.1, body["temperature"], 1e-6)
	require.EqualValues(t, 1500, body["max_tokens"])
	require.NotContains(t, body, "response_format")
}

func TestLMStudioProviderGenerateUsesOverrides(t *testing.T) {
	captured := &capturedRequest{}
	srv := newLMStudioServer(t, "hello", captured)

	provider, err := NewLMStudioProvider(ProviderConfig{BaseURL: srv.URL + "/", Model: "qwen2.5-7b"}, zerolog.Nop())
	require.NoError(t, err)

	temperature := float32(0.7)
	resp, err := provider.GenerateResponse(context.Background(), "Say hello", GenerateOptions{Temperature: &temperature, MaxTokens: 64})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Content)
	require.Equal(t, "stop", resp.Metadata["finish_reason"])

	body := captured.load()
	require.Equal(t, "qwen2.5-7b", body["model"])
	require.InDelta(t, 0.7, body["temperature"], 1e-6)
	require.EqualValues(t, 64, body["max_tokens"])
}

func TestLMStudioProviderWrapsTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider, err := NewLMStudioProvider(ProviderConfig{BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = provider.ScoreAnswer(context.Background(), testCriteria())
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.False(t, provider.HealthCheck(context.Background()))
}

func TestLMStudioProviderTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	provider, err := NewLMStudioProvider(ProviderConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	_, err = provider.GenerateResponse(context.Background(), "hi", GenerateOptions{})
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestHostedOpenAIProvidersRequireCredentials(t *testing.T) {
	_, err := NewOpenAIProvider(ProviderConfig{}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewAzureOpenAIProvider(ProviderConfig{BaseURL: "https://example.openai.azure.com"}, zerolog.Nop())
	require.Error(t, err)

	provider, err := NewAzureOpenAIProvider(ProviderConfig{
		BaseURL:    "https://example.openai.azure.com",
		APIKey:     "key",
		Deployment: "grader",
	}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, ProviderAzureOpenAI, provider.Type())
	require.Equal(t, "grader", provider.Info().Model)
}
