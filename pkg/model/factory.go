package model

import (
	"context"
	"errors"
	"fmt"

	"zenith/pkg/domain"
)

// ErrNoAPIKey indicates the selected provider has no API key configured.
var ErrNoAPIKey = errors.New("no API key configured")

// GroqBaseURL is the OpenAI-compatible endpoint served by Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Constructors decouples the factory from the concrete provider packages so
// they can import this package for the shared types.
type Constructors struct {
	// Gemini builds a Google provider from an API key.
	Gemini func(ctx context.Context, apiKey string) (Provider, error)
	// OpenAICompatible builds a provider for an OpenAI-style endpoint.
	OpenAICompatible func(name, baseURL, apiKey string) Provider
}

// Factory builds providers from settings.
type Factory struct {
	ctors Constructors
}

// NewFactory creates a Factory using the given constructors.
func NewFactory(ctors Constructors) *Factory {
	return &Factory{ctors: ctors}
}

// Provider returns a provider for the settings' active selection.
func (f *Factory) Provider(ctx context.Context, settings domain.Settings) (Provider, error) {
	return f.ProviderFor(ctx, settings, settings.Provider)
}

// ProviderFor returns a provider for a specific provider name, regardless of
// the active selection. Used for model listing across all configured
// providers.
func (f *Factory) ProviderFor(ctx context.Context, settings domain.Settings, name string) (Provider, error) {
	switch name {
	case domain.ProviderGoogle:
		if settings.Google.APIKey == "" {
			return nil, fmt.Errorf("google: %w", ErrNoAPIKey)
		}
		return f.ctors.Gemini(ctx, settings.Google.APIKey)

	case domain.ProviderGroq:
		if settings.Groq.APIKey == "" {
			return nil, fmt.Errorf("groq: %w", ErrNoAPIKey)
		}
		return f.ctors.OpenAICompatible(domain.ProviderGroq, GroqBaseURL, settings.Groq.APIKey), nil

	case domain.ProviderOpenAI:
		if settings.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrNoAPIKey)
		}
		baseURL := settings.OpenAI.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return f.ctors.OpenAICompatible(domain.ProviderOpenAI, baseURL, settings.OpenAI.APIKey), nil

	default:
		return nil, fmt.Errorf("unknown provider: %q", name)
	}
}
