package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/subagents/internal/logging"
)

// Registry manages tool registration and lookup. It is the Dispatcher shared
// by the primary loop and nested runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any tool with the same ID.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", t.ID()).Str("kind", Parse(t.ID()).Kind().String()).Msg("registering tool")
	r.tools[t.ID()] = t
}

// Unregister removes a tool.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, id)
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns all registered tools sorted by ID.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].ID() < tools[j].ID()
	})
	return tools
}

// IDs returns all tool IDs sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Capabilities returns the set of registered tool names.
func (r *Registry) Capabilities() Set {
	return SetOf(r.IDs()...)
}

// ToolInfos returns eino schemas for the registered tools in set, sorted by name.
func (r *Registry) ToolInfos(set Set) []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(set))
	for _, name := range set.Names() {
		if t, ok := r.tools[name]; ok {
			infos = append(infos, Info(t))
		}
	}
	return infos
}

// Dispatch executes call with the tool registered under call.Name.
func (r *Registry) Dispatch(ctx context.Context, call Call, toolCtx *Context) (*Result, error) {
	t, ok := r.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}
	if toolCtx == nil {
		toolCtx = &Context{}
	}
	if toolCtx.CallID == "" {
		toolCtx.CallID = call.ID
	}
	return t.Execute(ctx, call.Arguments, toolCtx)
}

// RegisterBuiltins registers the shell family, edit and web_fetch tools.
func RegisterBuiltins(r *Registry, workDir string) {
	for _, kind := range []Kind{KindShell, KindLocalShell, KindExecCommand} {
		r.Register(NewShellTool(kind, workDir))
	}
	r.Register(NewEditTool(workDir))
	r.Register(NewWebFetchTool())
}
