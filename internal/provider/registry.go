package provider

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/pkg/types"
)

// Registry manages all available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *types.Config
}

// NewRegistry creates a new provider registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		config:    config,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all providers sorted by ID.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].ID() < providers[j].ID()
	})
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, model := range provider.Models() {
		if model.ID == modelID {
			return &model, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// FindModel locates a bare model ID in any provider's catalog.
func (r *Registry) FindModel(modelID string) (*types.Model, error) {
	for _, p := range r.List() {
		for _, model := range p.Models() {
			if model.ID == modelID {
				return &model, nil
			}
		}
	}
	return nil, fmt.Errorf("model not found: %s", modelID)
}

// DefaultModel returns the configured model, then Claude Sonnet, then the
// first model of the first provider.
func (r *Registry) DefaultModel() (*types.Model, error) {
	if r.config != nil && r.config.Model != "" {
		providerID, modelID := ParseModelString(r.config.Model)
		if providerID == "" {
			return r.FindModel(modelID)
		}
		return r.GetModel(providerID, modelID)
	}

	model, err := r.GetModel("anthropic", DefaultAnthropicModel)
	if err == nil {
		return model, nil
	}

	for _, p := range r.List() {
		if models := p.Models(); len(models) > 0 {
			return &models[0], nil
		}
	}
	return nil, fmt.Errorf("no models available")
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// InitializeProviders creates and registers every provider that has
// credentials in config or the environment. Providers that fail to
// initialize are logged and skipped.
func InitializeProviders(ctx context.Context, config *types.Config) (*Registry, error) {
	registry := NewRegistry(config)

	providerConfig := func(id string) (types.ProviderConfig, bool) {
		var cfg types.ProviderConfig
		if config != nil {
			cfg = config.Provider[id]
		}
		return cfg, !cfg.Disable
	}

	if cfg, ok := providerConfig("anthropic"); ok && (cfg.APIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != "") {
		p, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
		register(registry, "anthropic", p, err)
	}

	if cfg, ok := providerConfig("openai"); ok && (cfg.APIKey != "" || os.Getenv("OPENAI_API_KEY") != "") {
		p, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
		register(registry, "openai", p, err)
	}

	if cfg, ok := providerConfig("ark"); ok && (cfg.APIKey != "" || os.Getenv("ARK_API_KEY") != "") {
		p, err := NewArkProvider(ctx, &ArkConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
		register(registry, "ark", p, err)
	}

	return registry, nil
}

func register[P Provider](registry *Registry, id string, p P, err error) {
	if err != nil {
		logging.Warn().Err(err).Str("provider", id).Msg("Provider unavailable")
		return
	}
	registry.Register(p)
	logging.Debug().Str("provider", id).Msg("Provider registered")
}
