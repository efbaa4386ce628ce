package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Constructor builds a provider from its configuration.
type Constructor func(ctx context.Context, cfg ProviderConfig, logger zerolog.Logger) (Provider, error)

// Factory maps provider tags to constructors so new backends plug in without touching callers.
type Factory struct {
	mu           sync.RWMutex
	constructors map[ProviderType]Constructor
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{constructors: make(map[ProviderType]Constructor)}
}

// DefaultFactory returns a factory with every built-in backend registered.
func DefaultFactory() *Factory {
	factory := NewFactory()
	factory.Register(ProviderLMStudio, func(_ context.Context, cfg ProviderConfig, logger zerolog.Logger) (Provider, error) {
		return NewLMStudioProvider(cfg, logger)
	})
	factory.Register(ProviderOpenAI, func(_ context.Context, cfg ProviderConfig, logger zerolog.Logger) (Provider, error) {
		return NewOpenAIProvider(cfg, logger)
	})
	factory.Register(ProviderAzureOpenAI, func(_ context.Context, cfg ProviderConfig, logger zerolog.Logger) (Provider, error) {
		return NewAzureOpenAIProvider(cfg, logger)
	})
	factory.Register(ProviderOllama, func(_ context.Context, cfg ProviderConfig, logger zerolog.Logger) (Provider, error) {
		return NewOllamaProvider(cfg, logger)
	})
	factory.Register(ProviderGemini, func(ctx context.Context, cfg ProviderConfig, logger zerolog.Logger) (Provider, error) {
		return NewGeminiProvider(ctx, cfg, logger)
	})
	return factory
}

// Register adds or replaces the constructor for a provider tag.
func (f *Factory) Register(providerType ProviderType, constructor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[providerType] = constructor
}

// Create builds a provider for cfg.Type.
func (f *Factory) Create(ctx context.Context, cfg ProviderConfig, logger zerolog.Logger) (Provider, error) {
	f.mu.RLock()
	constructor, ok := f.constructors[cfg.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Type)
	}

	provider, err := constructor(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Type, err)
	}
	return provider, nil
}

// Supported lists the registered provider tags in lexical order.
func (f *Factory) Supported() []ProviderType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]ProviderType, 0, len(f.constructors))
	for providerType := range f.constructors {
		types = append(types, providerType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
