package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

// Config holds runtime configuration values for the scoring service.
type Config struct {
	AppName  string
	AppEnv   string
	AppPort  string
	LogLevel zerolog.Level

	RedisURL string
	CacheTTL time.Duration

	LLMProviders     []llm.ProviderType
	LLMTemperature   float64
	LLMMaxTokens     int
	LLMScoringTokens int
	LLMTimeout       time.Duration
	ScoringTimeout   time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	LMStudioURL   string
	LMStudioModel string

	OllamaURL        string
	OllamaModel      string
	OllamaEmbedModel string

	GeminiAPIKey string
	GeminiModel  string

	AzureOpenAIEndpoint   string
	AzureOpenAIAPIKey     string
	AzureOpenAIDeployment string

	OpenAIAPIKey string
	OpenAIModel  string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ProviderConfig builds the backend configuration for one provider type.
func (c Config) ProviderConfig(providerType llm.ProviderType) llm.ProviderConfig {
	cfg := llm.ProviderConfig{
		Type:               providerType,
		Timeout:            c.LLMTimeout,
		MaxTokens:          c.LLMMaxTokens,
		Temperature:        float32(c.LLMTemperature),
		ScoringTemperature: float32(c.LLMTemperature),
		ScoringMaxTokens:   c.LLMScoringTokens,
	}

	switch providerType {
	case llm.ProviderLMStudio:
		cfg.BaseURL, cfg.Model = c.LMStudioURL, c.LMStudioModel
	case llm.ProviderOllama:
		cfg.BaseURL, cfg.Model = c.OllamaURL, c.OllamaModel
	case llm.ProviderGemini:
		cfg.APIKey, cfg.Model = c.GeminiAPIKey, c.GeminiModel
	case llm.ProviderAzureOpenAI:
		cfg.BaseURL, cfg.APIKey, cfg.Deployment = c.AzureOpenAIEndpoint, c.AzureOpenAIAPIKey, c.AzureOpenAIDeployment
	case llm.ProviderOpenAI:
		cfg.APIKey, cfg.Model = c.OpenAIAPIKey, c.OpenAIModel
	}

	return cfg
}

// ProviderConfigs returns the configuration of every enabled provider in precedence order.
func (c Config) ProviderConfigs() []llm.ProviderConfig {
	configs := make([]llm.ProviderConfig, 0, len(c.LLMProviders))
	for _, providerType := range c.LLMProviders {
		configs = append(configs, c.ProviderConfig(providerType))
	}
	return configs
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SCORING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "PM Scoring Engine")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8001")
	v.SetDefault("log.level", "info")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("llm.providers", "lmstudio")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.scoring_max_tokens", 1500)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("scoring.timeout", "30s")
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("lmstudio.url", "http://localhost:1234")
	v.SetDefault("lmstudio.model", "local-model")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("openai.model", "gpt-4o-mini")

	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString("log.level")))
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level: %w", err)
	}

	cacheTTL, err := parseDuration(v, "cache.ttl")
	if err != nil {
		return Config{}, err
	}
	llmTimeout, err := parseDuration(v, "llm.timeout")
	if err != nil {
		return Config{}, err
	}
	scoringTimeout, err := parseDuration(v, "scoring.timeout")
	if err != nil {
		return Config{}, err
	}
	rateLimitWindow, err := parseDuration(v, "rate_limit.window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		LogLevel:              level,
		RedisURL:              v.GetString("redis.url"),
		CacheTTL:              cacheTTL,
		LLMProviders:          parseProviders(v.GetString("llm.providers")),
		LLMTemperature:        v.GetFloat64("llm.temperature"),
		LLMMaxTokens:          v.GetInt("llm.max_tokens"),
		LLMScoringTokens:      v.GetInt("llm.scoring_max_tokens"),
		LLMTimeout:            llmTimeout,
		ScoringTimeout:        scoringTimeout,
		RateLimitMax:          v.GetInt("rate_limit.max"),
		RateLimitWindow:       rateLimitWindow,
		LMStudioURL:           v.GetString("lmstudio.url"),
		LMStudioModel:         v.GetString("lmstudio.model"),
		OllamaURL:             v.GetString("ollama.url"),
		OllamaModel:           v.GetString("ollama.model"),
		OllamaEmbedModel:      v.GetString("ollama.embed_model"),
		GeminiAPIKey:          v.GetString("gemini.api_key"),
		GeminiModel:           v.GetString("gemini.model"),
		AzureOpenAIEndpoint:   v.GetString("azure_openai.endpoint"),
		AzureOpenAIAPIKey:     v.GetString("azure_openai.api_key"),
		AzureOpenAIDeployment: v.GetString("azure_openai.deployment"),
		OpenAIAPIKey:          v.GetString("openai.api_key"),
		OpenAIModel:           v.GetString("openai.model"),
	}

	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return Config{}, fmt.Errorf("llm temperature must be within 0..2, got %v", cfg.LLMTemperature)
	}

	if cfg.RateLimitMax < 0 {
		return Config{}, fmt.Errorf("rate limit max must not be negative, got %d", cfg.RateLimitMax)
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}

func parseProviders(raw string) []llm.ProviderType {
	seen := make(map[llm.ProviderType]struct{})
	providers := make([]llm.ProviderType, 0, 2)
	for _, part := range strings.Split(raw, ",") {
		name := llm.ProviderType(strings.ToLower(strings.TrimSpace(part)))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		providers = append(providers, name)
	}
	return providers
}
