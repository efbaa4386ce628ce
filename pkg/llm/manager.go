package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Manager owns the initialized providers and the default selection. It is populated at startup
// and read concurrently afterwards.
type Manager struct {
	mu          sync.RWMutex
	factory     *Factory
	providers   map[ProviderType]Provider
	order       []ProviderType
	defaultType ProviderType
	logger      zerolog.Logger
}

// NewManager creates an empty manager that builds providers through factory.
func NewManager(factory *Factory, logger zerolog.Logger) *Manager {
	if factory == nil {
		factory = DefaultFactory()
	}
	return &Manager{
		factory:   factory,
		providers: make(map[ProviderType]Provider),
		logger:    logger.With().Str("component", "llm_manager").Logger(),
	}
}

// InitializeProvider builds the provider described by cfg and registers it if it passes its health
// check. It reports false instead of failing so startup can continue with the remaining backends.
func (m *Manager) InitializeProvider(ctx context.Context, cfg ProviderConfig) bool {
	provider, err := m.factory.Create(ctx, cfg, m.logger)
	if err != nil {
		m.logger.Warn().Err(err).Str("provider", cfg.Type.String()).Msg("provider initialization failed")
		return false
	}
	return m.AddProvider(ctx, provider)
}

// AddProvider health-checks an already built provider and registers it on success. The first
// registered provider becomes the default.
func (m *Manager) AddProvider(ctx context.Context, provider Provider) bool {
	providerType := provider.Type()
	if !safeHealthCheck(ctx, provider) {
		m.logger.Warn().
			Err(fmt.Errorf("%w: %s", ErrProviderUnhealthy, providerType)).
			Str("provider", providerType.String()).
			Msg("provider rejected by health check")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.providers[providerType]; !exists {
		m.order = append(m.order, providerType)
	}
	m.providers[providerType] = provider
	if m.defaultType == "" {
		m.defaultType = providerType
	}
	m.logger.Info().
		Str("provider", providerType.String()).
		Bool("default", m.defaultType == providerType).
		Msg("provider initialized")
	return true
}

// SetDefaultProvider switches the default to an already initialized provider.
func (m *Manager) SetDefaultProvider(providerType ProviderType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[providerType]; !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotConfigured, providerType)
	}
	m.defaultType = providerType
	return nil
}

// DefaultProvider returns the default tag, or "" when nothing is initialized.
func (m *Manager) DefaultProvider() ProviderType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultType
}

// HasProviders reports whether at least one provider is usable.
func (m *Manager) HasProviders() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.providers) > 0
}

// GetProvider returns the provider for providerType, or the default when providerType is empty.
func (m *Manager) GetProvider(providerType ProviderType) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if providerType == "" {
		providerType = m.defaultType
	}
	if providerType == "" {
		return nil, fmt.Errorf("%w: no default provider", ErrProviderNotConfigured)
	}
	provider, ok := m.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, providerType)
	}
	return provider, nil
}

// GenerateResponse forwards to the selected provider.
func (m *Manager) GenerateResponse(ctx context.Context, prompt string, opts GenerateOptions, providerType ProviderType) (Response, error) {
	provider, err := m.GetProvider(providerType)
	if err != nil {
		return Response{}, err
	}
	return provider.GenerateResponse(ctx, prompt, opts)
}

// ScoreAnswer runs rubric scoring on the selected provider.
func (m *Manager) ScoreAnswer(ctx context.Context, criteria ScoringCriteria, providerType ProviderType) (ScoringResult, error) {
	provider, err := m.GetProvider(providerType)
	if err != nil {
		return ScoringResult{}, err
	}
	return provider.ScoreAnswer(ctx, criteria)
}

// HealthCheckAll probes every initialized provider concurrently. Failures are reported as false.
func (m *Manager) HealthCheckAll(ctx context.Context) map[ProviderType]bool {
	m.mu.RLock()
	providers := make(map[ProviderType]Provider, len(m.providers))
	for providerType, provider := range m.providers {
		providers[providerType] = provider
	}
	m.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[ProviderType]bool, len(providers))
	)
	for providerType, provider := range providers {
		wg.Add(1)
		go func(providerType ProviderType, provider Provider) {
			defer wg.Done()
			healthy := safeHealthCheck(ctx, provider)
			mu.Lock()
			results[providerType] = healthy
			mu.Unlock()
		}(providerType, provider)
	}
	wg.Wait()
	return results
}

// AvailableProviders lists the initialized providers in initialization order.
func (m *Manager) AvailableProviders() []ProviderType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ProviderType(nil), m.order...)
}

// SupportedProviders lists every provider tag the manager's factory can build.
func (m *Manager) SupportedProviders() []ProviderType {
	return m.factory.Supported()
}

// ProviderInfo describes the selected provider.
func (m *Manager) ProviderInfo(providerType ProviderType) (ProviderInfo, error) {
	provider, err := m.GetProvider(providerType)
	if err != nil {
		return ProviderInfo{}, err
	}

	info := ProviderInfo{Provider: provider.Type()}
	if described, ok := provider.(ModelInfo); ok {
		info = described.Info()
	}
	info.Default = info.Provider == m.DefaultProvider()
	info.AvailableProviders = m.AvailableProviders()
	return info, nil
}

// safeHealthCheck turns a panicking health check into an unhealthy result.
func safeHealthCheck(ctx context.Context, provider Provider) (healthy bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			healthy = false
		}
	}()
	return provider.HealthCheck(ctx)
}
