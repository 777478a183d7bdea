package provider

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/subagents/pkg/types"
)

// fakeChatModel streams canned chunks and records what it was given.
type fakeChatModel struct {
	chunks    []*schema.Message
	boundWith []*schema.ToolInfo
	options   *model.Options
	input     []*schema.Message
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.ConcatMessages(m.chunks)
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.input = input
	m.options = model.GetCommonOptions(&model.Options{}, opts...)
	return schema.StreamReaderFromArray(m.chunks), nil
}

func (m *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.boundWith = tools
	return m, nil
}

// stubProvider is a registry entry with a fixed catalog.
type stubProvider struct {
	id        string
	models    []types.Model
	chatModel *fakeChatModel
	failures  int
	calls     int
	lastReq   *CompletionRequest
}

func (p *stubProvider) ID() string   { return p.id }
func (p *stubProvider) Name() string { return p.id }
func (p *stubProvider) Models() []types.Model {
	return withProvider(append([]types.Model(nil), p.models...), p.id)
}
func (p *stubProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }
func (p *stubProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	p.calls++
	p.lastReq = req
	if p.calls <= p.failures {
		return nil, errors.New("503 overloaded")
	}
	if p.chatModel == nil {
		p.chatModel = &fakeChatModel{chunks: []*schema.Message{schema.AssistantMessage("ok", nil)}}
	}
	return streamChat(ctx, p.chatModel, requestModelID(req, ""), req)
}

func drain(t *testing.T, stream *CompletionStream) string {
	t.Helper()
	defer stream.Close()

	var out string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out += chunk.Content
	}
}

func TestParseModelString(t *testing.T) {
	tests := []struct {
		input    string
		provider string
		model    string
	}{
		{"anthropic/claude-sonnet-4-20250514", "anthropic", "claude-sonnet-4-20250514"},
		{"openai/gpt-4o", "openai", "gpt-4o"},
		{"gpt-4o", "", "gpt-4o"},
		{"openrouter/meta/llama-3", "openrouter", "meta/llama-3"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, m := ParseModelString(tt.input)
			assert.Equal(t, tt.provider, p)
			assert.Equal(t, tt.model, m)
		})
	}
}

func TestStreamChat_BindsToolsAndOptions(t *testing.T) {
	chatModel := &fakeChatModel{chunks: []*schema.Message{
		schema.AssistantMessage("Guide ", nil),
		schema.AssistantMessage("drafted.", nil),
	}}
	tools := []*schema.ToolInfo{{Name: "edit", Desc: "Edit a file"}}

	stream, err := streamChat(context.Background(), chatModel, "claude-opus-4-20250514", &CompletionRequest{
		Messages:    []*schema.Message{schema.UserMessage("hi")},
		Tools:       tools,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "Guide drafted.", drain(t, stream))
	assert.Equal(t, tools, chatModel.boundWith)
	require.NotNil(t, chatModel.options.Model)
	assert.Equal(t, "claude-opus-4-20250514", *chatModel.options.Model)
	require.NotNil(t, chatModel.options.Temperature)
	assert.InDelta(t, 0.2, *chatModel.options.Temperature, 0.0001)
}

func TestStreamChat_NoToolsNoOverride(t *testing.T) {
	chatModel := &fakeChatModel{chunks: []*schema.Message{schema.AssistantMessage("x", nil)}}

	stream, err := streamChat(context.Background(), chatModel, "", &CompletionRequest{})
	require.NoError(t, err)
	drain(t, stream)

	assert.Nil(t, chatModel.boundWith)
	assert.Nil(t, chatModel.options.Model)
	assert.Nil(t, chatModel.options.Temperature)
}

func TestRequestModelID(t *testing.T) {
	assert.Equal(t, "", requestModelID(&CompletionRequest{}, "gpt-4o"))
	assert.Equal(t, "", requestModelID(&CompletionRequest{Model: "openai/gpt-4o"}, "gpt-4o"))
	assert.Equal(t, "gpt-5", requestModelID(&CompletionRequest{Model: "openai/gpt-5"}, "gpt-4o"))
}

func TestEnsureModel(t *testing.T) {
	models := []types.Model{{ID: "a"}}
	assert.Len(t, ensureModel(models, "a"), 1)

	extended := ensureModel(models, "custom")
	require.Len(t, extended, 2)
	assert.Equal(t, "custom", extended[1].ID)
	assert.True(t, extended[1].SupportsTools)
}

func TestStreamer_RetriesStartFailures(t *testing.T) {
	registry := NewRegistry(nil)
	p := &stubProvider{id: "anthropic", models: []types.Model{{ID: DefaultAnthropicModel}}, failures: 2}
	registry.Register(p)

	streamer := NewStreamer(registry, "")
	streamer.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}

	stream, err := streamer.Stream(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", drain(t, stream))
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, "anthropic/"+DefaultAnthropicModel, p.lastReq.Model)
}

func TestStreamer_GivesUp(t *testing.T) {
	registry := NewRegistry(nil)
	p := &stubProvider{id: "openai", models: []types.Model{{ID: "gpt-4o"}}, failures: 10}
	registry.Register(p)

	streamer := NewStreamer(registry, "openai/gpt-4o")
	streamer.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}

	_, err := streamer.Stream(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503 overloaded")
	assert.Equal(t, 3, p.calls)
}

func TestStreamer_CancelledContextNotRetried(t *testing.T) {
	registry := NewRegistry(nil)
	p := &stubProvider{id: "openai", models: []types.Model{{ID: "gpt-4o"}}, failures: 10}
	registry.Register(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	streamer := NewStreamer(registry, "openai/gpt-4o")
	_, err := streamer.Stream(ctx, &CompletionRequest{})
	require.Error(t, err)
	assert.LessOrEqual(t, p.calls, 1)
}

func TestStreamer_Resolve(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&stubProvider{id: "openai", models: []types.Model{{ID: "gpt-4o"}, {ID: "gpt-5"}}})
	registry.Register(&stubProvider{id: "anthropic", models: []types.Model{{ID: DefaultAnthropicModel}}})

	streamer := NewStreamer(registry, "")

	t.Run("explicit reference", func(t *testing.T) {
		p, ref, err := streamer.Resolve("openai/gpt-5")
		require.NoError(t, err)
		assert.Equal(t, "openai", p.ID())
		assert.Equal(t, "openai/gpt-5", ref)
	})

	t.Run("bare model ID", func(t *testing.T) {
		p, ref, err := streamer.Resolve("gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "openai", p.ID())
		assert.Equal(t, "openai/gpt-4o", ref)
	})

	t.Run("registry default", func(t *testing.T) {
		p, ref, err := streamer.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.ID())
		assert.Equal(t, "anthropic/"+DefaultAnthropicModel, ref)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, _, err := streamer.Resolve("gemini/flash")
		assert.Error(t, err)
	})

	t.Run("unknown bare model", func(t *testing.T) {
		_, _, err := streamer.Resolve("llama")
		assert.Error(t, err)
	})
}
