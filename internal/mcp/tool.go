package mcp

import (
	"context"
	"encoding/json"

	"github.com/opencode-ai/subagents/internal/tool"
)

// ExternalTool exposes one server tool through the tool registry.
type ExternalTool struct {
	info   Tool
	client *Client
}

// NewExternalTool wraps a prefixed server tool.
func NewExternalTool(info Tool, client *Client) *ExternalTool {
	return &ExternalTool{info: info, client: client}
}

func (t *ExternalTool) ID() string                  { return t.info.Name }
func (t *ExternalTool) Description() string         { return t.info.Description }
func (t *ExternalTool) Parameters() json.RawMessage { return t.info.InputSchema }

// Execute forwards the call to the owning server.
func (t *ExternalTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	output, err := t.client.ExecuteTool(ctx, t.info.Name, input)
	if err != nil {
		return nil, err
	}
	return &tool.Result{
		Title:  t.info.Name,
		Output: output,
		Metadata: map[string]any{
			"type": "mcp",
			"tool": t.info.Name,
		},
	}, nil
}

// RegisterTools registers every connected server tool and returns how many
// were added. Names that collide with a built-in are skipped.
func RegisterTools(client *Client, registry *tool.Registry) int {
	if client == nil || registry == nil {
		return 0
	}

	count := 0
	for _, info := range client.Tools() {
		if !tool.Parse(info.Name).IsExternal() {
			continue
		}
		if _, exists := registry.Get(info.Name); exists {
			continue
		}
		registry.Register(NewExternalTool(info, client))
		count++
	}
	return count
}
