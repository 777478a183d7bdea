package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/subagents/pkg/types"
)

// Provider represents an LLM provider with Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	// Model is a "provider/model" reference. Empty selects the default.
	Model       string             `json:"model,omitempty"`
	Messages    []*schema.Message  `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int                `json:"maxTokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk. It returns io.EOF once the turn ends.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// streamChat binds the request tools and opens a stream on chatModel.
// modelID is passed as an override only when it is set.
func streamChat(ctx context.Context, chatModel model.ToolCallingChatModel, modelID string, req *CompletionRequest, opts ...model.Option) (*CompletionStream, error) {
	if len(req.Tools) > 0 {
		var err error
		chatModel, err = chatModel.WithTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	if modelID != "" {
		opts = append(opts, model.WithModel(modelID))
	}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	stream, err := chatModel.Stream(ctx, req.Messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return NewCompletionStream(stream), nil
}

// requestModelID returns the model part of the request reference when it
// names something other than the provider default.
func requestModelID(req *CompletionRequest, defaultID string) string {
	_, modelID := ParseModelString(req.Model)
	if modelID == "" || modelID == defaultID {
		return ""
	}
	return modelID
}

// MissingSettingError reports a provider setting found neither in config nor
// in the environment.
type MissingSettingError struct {
	Provider string
	Env      string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("%s: %s not set", e.Provider, e.Env)
}

// setting returns value, else the first set environment variable, else
// fallback.
func setting(value, fallback string, envKeys ...string) string {
	if value != "" {
		return value
	}
	for _, key := range envKeys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return fallback
}

func orDefault(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}

// chatProvider holds what every eino-backed provider shares.
type chatProvider struct {
	id        string
	modelID   string
	chatModel model.ToolCallingChatModel
}

func newChatProvider(id, defaultID, modelID string, chatModel model.ToolCallingChatModel) chatProvider {
	if id == "" {
		id = defaultID
	}
	return chatProvider{id: id, modelID: modelID, chatModel: chatModel}
}

// ID returns the provider identifier.
func (p *chatProvider) ID() string { return p.id }

// ChatModel returns the Eino ChatModel.
func (p *chatProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }

// catalog returns models tagged with the provider ID, including the
// configured model when the list lacks it.
func (p *chatProvider) catalog(models []types.Model) []types.Model {
	return withProvider(ensureModel(models, p.modelID), p.id)
}

// ensureModel appends the configured model when the catalog lacks it.
func ensureModel(models []types.Model, modelID string) []types.Model {
	for _, m := range models {
		if m.ID == modelID {
			return models
		}
	}
	return append(models, types.Model{ID: modelID, Name: modelID, SupportsTools: true})
}

func withProvider(models []types.Model, providerID string) []types.Model {
	for i := range models {
		models[i].ProviderID = providerID
	}
	return models
}
