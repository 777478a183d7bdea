package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/subagents/pkg/types"
)

// ArkProvider serves a single Volcengine ARK endpoint.
type ArkProvider struct {
	chatProvider
}

// ArkConfig holds configuration for ARK provider.
type ArkConfig struct {
	APIKey    string
	BaseURL   string
	Model     string // Endpoint ID on ARK platform
	MaxTokens int
}

// NewArkProvider creates an ARK provider. Unset fields fall back to
// ARK_API_KEY, ARK_MODEL_ID and ARK_BASE_URL. An endpoint is required.
func NewArkProvider(ctx context.Context, config *ArkConfig) (*ArkProvider, error) {
	apiKey := setting(config.APIKey, "", "ARK_API_KEY")
	if apiKey == "" {
		return nil, &MissingSettingError{Provider: "ark", Env: "ARK_API_KEY"}
	}
	endpointID := setting(config.Model, "", "ARK_MODEL_ID")
	if endpointID == "" {
		return nil, &MissingSettingError{Provider: "ark", Env: "ARK_MODEL_ID"}
	}
	maxTokens := orDefault(config.MaxTokens, 4096)

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:    apiKey,
		Model:     endpointID,
		BaseURL:   setting(config.BaseURL, "", "ARK_BASE_URL"),
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("ark: %w", err)
	}

	return &ArkProvider{newChatProvider("", "ark", endpointID, chatModel)}, nil
}

// Name returns the human-readable provider name.
func (p *ArkProvider) Name() string { return "ARK" }

// Models returns the configured endpoint as the only model.
func (p *ArkProvider) Models() []types.Model {
	return p.catalog([]types.Model{{
		ID:              p.modelID,
		Name:            "ARK Model",
		ContextLength:   128000,
		MaxOutputTokens: 4096,
		SupportsTools:   true,
	}})
}

// CreateCompletion opens a streaming turn. ARK endpoints are fixed per key,
// so the model reference is not forwarded.
func (p *ArkProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	return streamChat(ctx, p.chatModel, "", req, opts...)
}
