package llm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/erp/gestao/internal/domain/agent"
	"github.com/erp/gestao/internal/infrastructure/config"
	"go.uber.org/zap"
)

var (
	ErrEmptyResponse   = errors.New("empty model response")
	ErrUnknownProvider = errors.New("llm: provider not configured")
)

// APIError is a non-success answer of a vendor API
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: status %d: %s: %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Providers holds the configured providers and the default one
type Providers struct {
	byName   map[string]agent.Provider
	fallback string
}

// NewProviders creates a provider for every vendor with an API key
func NewProviders(cfg config.LLMConfig, logger *zap.Logger) *Providers {
	p := &Providers{byName: map[string]agent.Provider{}, fallback: cfg.DefaultProvider}
	if cfg.OpenAIAPIKey != "" {
		p.Add(NewOpenAIProvider(OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.Timeout,
		}, logger))
	}
	if cfg.AnthropicAPIKey != "" {
		p.Add(NewAnthropicProvider(AnthropicOptions{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			BaseURL: cfg.AnthropicBaseURL,
			Timeout: cfg.Timeout,
		}, logger))
	}
	return p
}

// Add registers a provider under its name
func (p *Providers) Add(provider agent.Provider) {
	p.byName[provider.Name()] = provider
}

// Get returns the named provider. An empty name selects the default one, or the first
// provider by name when the default has no key. A named provider is never substituted.
func (p *Providers) Get(name string) (agent.Provider, error) {
	if name != "" {
		if provider, ok := p.byName[name]; ok {
			return provider, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if provider, ok := p.byName[p.fallback]; ok {
		return provider, nil
	}
	if names := p.Names(); len(names) > 0 {
		return p.byName[names[0]], nil
	}
	return nil, fmt.Errorf("%w: no provider has an API key", ErrUnknownProvider)
}

// Names lists configured providers
func (p *Providers) Names() []string {
	out := make([]string, 0, len(p.byName))
	for name := range p.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
