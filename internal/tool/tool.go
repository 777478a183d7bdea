// Package tool provides capabilities, the allowlist filter, and tool dispatch.
package tool

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cloudwego/eino/schema"
)

// ErrToolNotFound is returned by Dispatch for an unregistered tool name.
var ErrToolNotFound = errors.New("tool not found")

// Tool defines the interface for all tools.
type Tool interface {
	// ID returns the tool name presented to the model.
	ID() string

	// Description returns the tool description.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() json.RawMessage

	// Execute executes the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// Context provides execution context to tools.
type Context struct {
	SessionID string
	CallID    string
	Agent     string
	WorkDir   string
}

// Result represents the output of a tool execution.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Call is one tool invocation requested by the model.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Dispatcher executes tool calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, call Call, toolCtx *Context) (*Result, error)
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, call Call, toolCtx *Context) (*Result, error)

func (f DispatchFunc) Dispatch(ctx context.Context, call Call, toolCtx *Context) (*Result, error) {
	return f(ctx, call, toolCtx)
}

// BaseTool provides a base implementation for tools.
type BaseTool struct {
	id          string
	description string
	parameters  json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool creates a new base tool.
func NewBaseTool(id, description string, params json.RawMessage, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{
		id:          id,
		description: description,
		parameters:  params,
		execute:     execute,
	}
}

func (t *BaseTool) ID() string                  { return t.id }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}

// Info returns the eino schema for a tool.
func Info(t Tool) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        t.ID(),
		Desc:        t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(ParseJSONSchema(t.Parameters())),
	}
}

type jsonSchemaProperty struct {
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Enum        []string            `json:"enum"`
	Items       *jsonSchemaProperty `json:"items"`
}

// ParseJSONSchema converts a JSON Schema object to eino parameter info.
func ParseJSONSchema(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]*jsonSchemaProperty `json:"properties"`
		Required   []string                       `json:"required"`
	}

	if len(schemaJSON) == 0 {
		return map[string]*schema.ParameterInfo{}
	}
	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		if prop == nil {
			continue
		}
		info := paramInfo(prop)
		info.Required = requiredSet[name]
		params[name] = info
	}

	return params
}

func paramInfo(prop *jsonSchemaProperty) *schema.ParameterInfo {
	paramType := schema.String
	switch prop.Type {
	case "integer":
		paramType = schema.Integer
	case "number":
		paramType = schema.Number
	case "boolean":
		paramType = schema.Boolean
	case "array":
		paramType = schema.Array
	case "object":
		paramType = schema.Object
	}

	info := &schema.ParameterInfo{
		Type: paramType,
		Desc: prop.Description,
		Enum: prop.Enum,
	}
	if paramType == schema.Array && prop.Items != nil {
		info.ElemInfo = paramInfo(prop.Items)
	}
	return info
}
