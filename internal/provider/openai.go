package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/subagents/pkg/types"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIProvider serves OpenAI and OpenAI-compatible endpoints.
type OpenAIProvider struct {
	chatProvider
}

// OpenAIConfig holds configuration for OpenAI provider.
type OpenAIConfig struct {
	// ID is the provider identifier (e.g., "openai", "qwen", "ollama").
	// Defaults to "openai".
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewOpenAIProvider creates an OpenAI provider. Unset fields fall back to
// OPENAI_API_KEY, OPENAI_MODEL_ID and OPENAI_BASE_URL.
func NewOpenAIProvider(ctx context.Context, config *OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := setting(config.APIKey, "", "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, &MissingSettingError{Provider: "openai", Env: "OPENAI_API_KEY"}
	}
	modelID := setting(config.Model, DefaultOpenAIModel, "OPENAI_MODEL_ID")
	maxTokens := orDefault(config.MaxTokens, 4096)

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               modelID,
		BaseURL:             setting(config.BaseURL, "", "OPENAI_BASE_URL"),
		MaxCompletionTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	return &OpenAIProvider{newChatProvider(config.ID, "openai", modelID, chatModel)}, nil
}

// Name returns the human-readable provider name.
func (p *OpenAIProvider) Name() string { return "OpenAI" }

// Models lists the GPT models offered for delegation.
func (p *OpenAIProvider) Models() []types.Model {
	return p.catalog([]types.Model{
		{ID: "gpt-5", Name: "GPT-5", ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true},
		{ID: "gpt-5-mini", Name: "GPT-5 Mini", ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true},
		{ID: "gpt-4o", Name: "GPT-4o", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
	})
}

// CreateCompletion opens a streaming turn. Token limits are sent as
// max_completion_tokens, which GPT-5 requires.
func (p *OpenAIProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, openai.WithMaxCompletionTokens(req.MaxTokens))
	}
	return streamChat(ctx, p.chatModel, requestModelID(req, p.modelID), req, opts...)
}
