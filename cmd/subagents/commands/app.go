package commands

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/subagents/internal/agent"
	"github.com/opencode-ai/subagents/internal/config"
	"github.com/opencode-ai/subagents/internal/event"
	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/internal/mcp"
	"github.com/opencode-ai/subagents/internal/provider"
	"github.com/opencode-ai/subagents/internal/storage"
	"github.com/opencode-ai/subagents/internal/subagent"
	"github.com/opencode-ai/subagents/internal/tool"
	"github.com/opencode-ai/subagents/pkg/types"
)

// app holds the components shared by the run, serve, and mcp commands.
type app struct {
	workDir string
	config  *types.Config

	agents  *agent.Registry
	tools   *tool.Registry
	mcp     *mcp.Client
	rollout *storage.Rollout
	manager *subagent.Manager
	watcher *agent.Watcher
}

// loadAgents loads configuration and discovers agent definitions. It is all
// the agent subcommands need.
func loadAgents(dir string) (string, *types.Config, *agent.Registry, error) {
	dir, err := GetWorkDir(dir)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	agents, err := agent.Discover(config.AgentSources(cfg, dir))
	if err != nil {
		// Discovery still returns the documents it could read.
		logging.Warn().Err(err).Msg("Agent discovery incomplete")
	}
	return dir, cfg, agents, nil
}

// newApp wires providers, tools, MCP servers, storage, and the sub-agent
// manager for dir.
func newApp(ctx context.Context, dir string, watch bool) (*app, error) {
	dir, cfg, agents, err := loadAgents(dir)
	if err != nil {
		return nil, err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	providers, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	tools := tool.NewRegistry()
	tool.RegisterBuiltins(tools, dir)

	mcpClient := mcp.NewClient()
	for name, serverCfg := range cfg.MCP {
		if err := mcpClient.AddServer(ctx, name, mcp.ConfigFrom(serverCfg)); err != nil {
			logging.Warn().Err(err).Str("server", name).Msg("MCP server unavailable")
		}
	}
	if n := mcp.RegisterTools(mcpClient, tools); n > 0 {
		logging.Info().Int("count", n).Msg("Registered MCP tools")
	}

	sessionID := "ses_" + ulid.Make().String()
	rollout := storage.NewRollout(storage.New(paths.StoragePath()), sessionID)

	runner := subagent.NewRunner(
		provider.NewStreamer(providers, cfg.Model),
		tools,
		subagent.WithMaxTurns(config.MaxTurns(cfg)),
	)
	manager := subagent.NewManager(agents, runner,
		subagent.WithSink(rollout),
		subagent.WithEnabled(config.SubagentsEnabled(cfg)),
		subagent.WithSessionID(sessionID),
	)
	manager.Register(tools)

	a := &app{
		workDir: dir,
		config:  cfg,
		agents:  agents,
		tools:   tools,
		mcp:     mcpClient,
		rollout: rollout,
		manager: manager,
	}

	if watch && config.WatchAgents(cfg) {
		if err := a.watch(); err != nil {
			logging.Warn().Err(err).Msg("Agent watcher not started")
		}
	}

	logging.Info().
		Str("directory", dir).
		Str("session", sessionID).
		Int("agents", agents.Count()).
		Int("tools", len(tools.IDs())).
		Bool("enabled", manager.Enabled()).
		Msg("Sub-agent host ready")

	return a, nil
}

func (a *app) watch() error {
	w, err := agent.NewWatcher(a.agents, agent.DefaultDebounce)
	if err != nil {
		return err
	}
	w.OnReload = func(err error) {
		data := event.AgentsReloadedData{Count: a.agents.Count()}
		if err != nil {
			data.Error = err.Error()
		}
		a.manager.Bus().Publish(event.Event{Type: event.AgentsReloaded, Data: data})
	}
	w.Start()
	a.watcher = w
	return nil
}

// Close stops the watcher and disconnects MCP servers.
func (a *app) Close() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			logging.Warn().Err(err).Msg("Failed to stop agent watcher")
		}
	}
	if err := a.mcp.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close MCP client")
	}
	if err := a.manager.Bus().Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close event bus")
	}
}
