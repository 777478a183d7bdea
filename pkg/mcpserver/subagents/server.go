// Package subagents serves the sub-agent meta-tools over MCP, so any MCP
// host can list, describe and run the agents of a project.
package subagents

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/internal/subagent"
	"github.com/opencode-ai/subagents/internal/tool"
)

// ServerName is the implementation name announced to clients.
const ServerName = "subagents"

// NewServer creates an MCP server whose tools are manager's meta-tools.
// A disabled manager yields a server without tools.
func NewServer(manager *subagent.Manager, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)

	if !manager.Enabled() {
		logging.Info().Msg("Sub-agents disabled, MCP server exposes no tools")
		return s
	}

	for _, t := range manager.MetaTools() {
		s.AddTool(mcp.NewToolWithRawSchema(t.ID(), t.Description(), t.Parameters()), handler(t, manager.SessionID()))
	}
	return s
}

// handler adapts a registry tool to an MCP tool handler. Tool errors become
// error results so the client sees the message.
func handler(t tool.Tool, sessionID string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		input, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := t.Execute(ctx, input, &tool.Context{SessionID: sessionID})
		if err != nil {
			logging.Debug().Err(err).Str("tool", t.ID()).Msg("MCP tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result.Output), nil
	}
}

// ServeStdio serves manager over stdin and stdout until the input closes.
func ServeStdio(manager *subagent.Manager, version string) error {
	return server.ServeStdio(NewServer(manager, version))
}
