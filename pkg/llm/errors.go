package llm

import "errors"

// ErrGenerationFailed wraps every failure of the underlying model call: transport errors,
// timeouts, non-2xx responses and empty completions.
var ErrGenerationFailed = errors.New("generation failed")

// ErrProviderNotConfigured indicates the requested or default provider was never initialized.
var ErrProviderNotConfigured = errors.New("provider not configured")

// ErrUnsupportedProvider indicates the factory has no constructor for a provider type.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ErrProviderUnhealthy indicates a provider failed its startup health check.
var ErrProviderUnhealthy = errors.New("provider unhealthy")
