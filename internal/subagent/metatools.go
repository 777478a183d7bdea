package subagent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/opencode-ai/subagents/internal/tool"
)

const (
	listDescription     = "List available sub-agents with their names and descriptions"
	describeDescription = "Get detailed information about a specific sub-agent including tools and prompt"
	runDescription      = "Execute a sub-agent with a specific task"
)

var (
	listParameters = json.RawMessage(`{"type":"object","properties":{}}`)

	describeParameters = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Name of the sub-agent to describe"}
		},
		"required": ["name"]
	}`)

	runParameters = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Name of the sub-agent to run"},
			"task": {"type": "string", "description": "Task for the sub-agent to perform"},
			"model": {"type": "string", "description": "Optional model override, provider/model"}
		},
		"required": ["name", "task"]
	}`)
)

// MetaTools returns the list, describe and run tools backed by m.
func (m *Manager) MetaTools() []tool.Tool {
	return []tool.Tool{
		tool.NewBaseTool(tool.Builtin(tool.KindSubagentList).Name(), listDescription, listParameters, m.executeList),
		tool.NewBaseTool(tool.Builtin(tool.KindSubagentDescribe).Name(), describeDescription, describeParameters, m.executeDescribe),
		tool.NewBaseTool(tool.Builtin(tool.KindSubagentRun).Name(), runDescription, runParameters, m.executeRun),
	}
}

// Register adds the meta-tools to registry when the feature is enabled.
func (m *Manager) Register(registry *tool.Registry) {
	if !m.enabled {
		return
	}
	for _, t := range m.MetaTools() {
		registry.Register(t)
	}
}

func (m *Manager) executeList(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	if !m.enabled {
		return disabledResult(), nil
	}

	agents := m.HandleList()
	data, err := json.Marshal(agents)
	if err != nil {
		return nil, err
	}
	return &tool.Result{
		Title:    "Sub-agents",
		Output:   string(data),
		Metadata: map[string]any{"count": len(agents)},
	}, nil
}

func (m *Manager) executeDescribe(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	if !m.enabled {
		return disabledResult(), nil
	}

	var args DescribeArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, &ArgumentError{Err: err}
	}
	if args.Name == "" {
		return nil, &ArgumentError{Field: "name"}
	}

	desc, err := m.HandleDescribe(args.Name)
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return &tool.Result{Title: args.Name, Output: "Agent not found: " + err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return nil, err
	}
	return &tool.Result{Title: desc.Name, Output: string(data)}, nil
}

func (m *Manager) executeRun(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	if !m.enabled {
		return disabledResult(), nil
	}

	result, err := m.HandleRun(ctx, input)
	if err != nil {
		return nil, err
	}
	return &tool.Result{
		Title:  result.AgentName,
		Output: result.JSON(),
		Metadata: map[string]any{
			"subID":   result.SubID,
			"success": result.Success,
		},
	}, nil
}

func disabledResult() *tool.Result {
	return &tool.Result{Output: ErrDisabled.Error()}
}
