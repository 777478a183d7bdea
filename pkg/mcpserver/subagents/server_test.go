package subagents

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/subagents/internal/agent"
	mcpclient "github.com/opencode-ai/subagents/internal/mcp"
	"github.com/opencode-ai/subagents/internal/provider"
	"github.com/opencode-ai/subagents/internal/subagent"
	"github.com/opencode-ai/subagents/internal/tool"
)

type replyStreamer struct{ reply string }

func (s replyStreamer) Stream(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	return provider.NewCompletionStream(schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(s.reply, nil),
	})), nil
}

func newManager(t *testing.T, opts ...subagent.Option) *subagent.Manager {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs-writer.md"),
		[]byte("---\ndescription: writes docs\n---\nYou write docs.\n"), 0644))

	registry, err := agent.Discover(agent.Sources{ProjectDir: dir})
	require.NoError(t, err)

	manager := subagent.NewManager(registry, subagent.NewRunner(replyStreamer{reply: "Guide drafted."}, tool.NewRegistry()), opts...)
	t.Cleanup(func() { manager.Bus().Close() })
	return manager
}

func call(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	served := s.GetTool(name)
	require.NotNil(t, served, "tool %s should exist", name)

	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args

	result, err := served.Handler(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "content should be text")
	return content.Text
}

func TestServer_Tools(t *testing.T) {
	s := NewServer(newManager(t), "test")

	for _, name := range []string{"subagent_list", "subagent_describe", "subagent_run"} {
		served := s.GetTool(name)
		require.NotNil(t, served, name)
		assert.NotEmpty(t, served.Tool.Description)
	}
	assert.Contains(t, string(s.GetTool("subagent_run").Tool.RawInputSchema), `"task"`)
}

func TestServer_List(t *testing.T) {
	s := NewServer(newManager(t), "test")

	result := call(t, s, "subagent_list", nil)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `[{"name":"docs-writer","description":"writes docs"}]`, text(t, result))
}

func TestServer_Describe(t *testing.T) {
	s := NewServer(newManager(t), "test")

	result := call(t, s, "subagent_describe", map[string]any{"name": "ghost"})
	assert.Equal(t, "Agent not found: Sub-agent 'ghost' not found", text(t, result))

	result = call(t, s, "subagent_describe", map[string]any{})
	assert.True(t, result.IsError)
	assert.Equal(t, "missing required argument: name", text(t, result))
}

func TestServer_Run(t *testing.T) {
	s := NewServer(newManager(t), "test")

	result := call(t, s, "subagent_run", map[string]any{"name": "docs-writer", "task": "write"})
	assert.False(t, result.IsError)

	var out subagent.Result
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "Guide drafted.", out.Output)

	result = call(t, s, "subagent_run", map[string]any{"name": "docs-writer"})
	assert.True(t, result.IsError)
	assert.Equal(t, "missing required argument: task", text(t, result))
}

func TestServer_Disabled(t *testing.T) {
	s := NewServer(newManager(t, subagent.WithEnabled(false)), "test")
	assert.Nil(t, s.GetTool("subagent_run"))
}

// TestServer_MCPClient drives the server through the MCP client used for
// external tools, so the meta-tools arrive as external capabilities.
func TestServer_MCPClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stdioServer := server.NewStdioServer(NewServer(newManager(t), "test"))

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()
	go func() {
		_ = stdioServer.Listen(ctx, serverReader, serverWriter)
	}()
	defer func() {
		cancel()
		clientWriter.Close()
		serverWriter.Close()
	}()

	client := mcpclient.NewClient()
	defer client.Close()
	require.NoError(t, client.AddTransport(ctx, "remote", &sdkmcp.IOTransport{Reader: clientReader, Writer: clientWriter}))

	registry := tool.NewRegistry()
	assert.Equal(t, 3, mcpclient.RegisterTools(client, registry))
	assert.Equal(t, []string{"remote_subagent_describe", "remote_subagent_list", "remote_subagent_run"}, registry.IDs())

	result, err := registry.Dispatch(ctx, tool.Call{
		Name:      "remote_subagent_run",
		Arguments: json.RawMessage(`{"name":"docs-writer","task":"write"}`),
	}, nil)
	require.NoError(t, err)

	var out subagent.Result
	require.NoError(t, json.Unmarshal([]byte(result.Output), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "Guide drafted.", out.Output)
}
