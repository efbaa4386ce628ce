package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "PM Scoring Engine", cfg.AppName)
	require.Equal(t, ":8001", cfg.HTTPAddress())
	require.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	require.Empty(t, cfg.RedisURL)
	require.Equal(t, 10*time.Minute, cfg.CacheTTL)
	require.Equal(t, []llm.ProviderType{llm.ProviderLMStudio}, cfg.LLMProviders)
	require.Equal(t, 0.1, cfg.LLMTemperature)
	require.Equal(t, 2000, cfg.LLMMaxTokens)
	require.Equal(t, 1500, cfg.LLMScoringTokens)
	require.Equal(t, 120*time.Second, cfg.LLMTimeout)
	require.Equal(t, 30*time.Second, cfg.ScoringTimeout)
	require.Equal(t, 60, cfg.RateLimitMax)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
	require.Equal(t, "local-model", cfg.LMStudioModel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SCORING_APP_PORT", ":9000")
	t.Setenv("SCORING_LOG_LEVEL", "DEBUG")
	t.Setenv("SCORING_LLM_PROVIDERS", " Ollama, gemini,ollama,, ")
	t.Setenv("SCORING_SCORING_TIMEOUT", "5s")
	t.Setenv("SCORING_GEMINI_API_KEY", "secret")
	t.Setenv("SCORING_OLLAMA_EMBED_MODEL", "nomic-embed-text")
	t.Setenv("SCORING_RATE_LIMIT_MAX", "5")
	t.Setenv("SCORING_RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.HTTPAddress())
	require.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	require.Equal(t, []llm.ProviderType{llm.ProviderOllama, llm.ProviderGemini}, cfg.LLMProviders)
	require.Equal(t, 5*time.Second, cfg.ScoringTimeout)
	require.Equal(t, "nomic-embed-text", cfg.OllamaEmbedModel)
	require.Equal(t, 5, cfg.RateLimitMax)
	require.Equal(t, 30*time.Second, cfg.RateLimitWindow)

	providers := cfg.ProviderConfigs()
	require.Len(t, providers, 2)
	require.Equal(t, "http://localhost:11434", providers[0].BaseURL)
	require.Equal(t, "llama3.1", providers[0].Model)
	require.Equal(t, "secret", providers[1].APIKey)
	require.Equal(t, "gemini-2.0-flash", providers[1].Model)
	require.Equal(t, 120*time.Second, providers[1].Timeout)
	require.Equal(t, 1500, providers[1].ScoringMaxTokens)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SCORING_CACHE_TTL":         "ten minutes",
		"SCORING_LLM_TIMEOUT":       "-1s",
		"SCORING_SCORING_TIMEOUT":   "soon",
		"SCORING_LOG_LEVEL":         "loud",
		"SCORING_LLM_TEMPERATURE":   "3.5",
		"SCORING_RATE_LIMIT_MAX":    "-1",
		"SCORING_RATE_LIMIT_WINDOW": "0s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestProviderConfigAzure(t *testing.T) {
	cfg := Config{
		AzureOpenAIEndpoint:   "https://example.openai.azure.com",
		AzureOpenAIAPIKey:     "key",
		AzureOpenAIDeployment: "gpt4o",
		LLMTimeout:            time.Minute,
	}

	provider := cfg.ProviderConfig(llm.ProviderAzureOpenAI)

	require.Equal(t, llm.ProviderAzureOpenAI, provider.Type)
	require.Equal(t, "https://example.openai.azure.com", provider.BaseURL)
	require.Equal(t, "gpt4o", provider.Deployment)
	require.Equal(t, time.Minute, provider.Timeout)
}
