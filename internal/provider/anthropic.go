package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/subagents/pkg/types"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider serves Claude models.
type AnthropicProvider struct {
	chatProvider
}

// AnthropicConfig holds configuration for Anthropic provider.
type AnthropicConfig struct {
	// ID is the provider identifier. Defaults to "anthropic".
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewAnthropicProvider creates an Anthropic provider. Unset fields fall back
// to ANTHROPIC_API_KEY, ANTHROPIC_MODEL and ANTHROPIC_BASE_URL.
func NewAnthropicProvider(ctx context.Context, config *AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := setting(config.APIKey, "", "ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, &MissingSettingError{Provider: "anthropic", Env: "ANTHROPIC_API_KEY"}
	}
	modelID := setting(config.Model, DefaultAnthropicModel, "ANTHROPIC_MODEL")

	cfg := &claude.Config{
		APIKey:    apiKey,
		Model:     modelID,
		MaxTokens: orDefault(config.MaxTokens, 8192),
	}
	if baseURL := setting(config.BaseURL, "", "ANTHROPIC_BASE_URL"); baseURL != "" {
		cfg.BaseURL = &baseURL
	}

	chatModel, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	return &AnthropicProvider{newChatProvider(config.ID, "anthropic", modelID, chatModel)}, nil
}

// Name returns the human-readable provider name.
func (p *AnthropicProvider) Name() string { return "Anthropic" }

// Models lists the Claude models offered for delegation.
func (p *AnthropicProvider) Models() []types.Model {
	return p.catalog([]types.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextLength: 200000, MaxOutputTokens: 64000, SupportsTools: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextLength: 200000, MaxOutputTokens: 32000, SupportsTools: true},
		{ID: "claude-haiku-4-5", Name: "Claude 4.5 Haiku", ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true},
	})
}

// CreateCompletion opens a streaming turn.
func (p *AnthropicProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	return streamChat(ctx, p.chatModel, requestModelID(req, p.modelID), req, opts...)
}
