package config

import (
	"path/filepath"

	"github.com/opencode-ai/subagents/internal/agent"
	"github.com/opencode-ai/subagents/pkg/types"
)

// AgentsDirName is the directory holding definition documents in each scope.
const AgentsDirName = "agents"

// UserAgentsDir returns the user scope directory.
func UserAgentsDir() string {
	return filepath.Join(GetConfigDir(), AgentsDirName)
}

// ProjectAgentsDir returns the project scope directory of directory.
func ProjectAgentsDir(directory string) string {
	return filepath.Join(directory, ".opencode", AgentsDirName)
}

// AgentSources returns the scope directories for a project, honoring the
// subagents.userDir and subagents.projectDir overrides. Relative overrides
// resolve against directory.
func AgentSources(config *types.Config, directory string) agent.Sources {
	src := agent.Sources{
		UserDir: UserAgentsDir(),
	}
	if directory != "" {
		src.ProjectDir = ProjectAgentsDir(directory)
	}

	if config == nil || config.Subagents == nil {
		return src
	}
	if dir := config.Subagents.UserDir; dir != "" {
		src.UserDir = resolvePath(dir, directory)
	}
	if dir := config.Subagents.ProjectDir; dir != "" {
		src.ProjectDir = resolvePath(dir, directory)
	}
	return src
}

// SubagentsEnabled reports the feature toggle. It defaults to true.
func SubagentsEnabled(config *types.Config) bool {
	if config == nil || config.Subagents == nil || config.Subagents.Enabled == nil {
		return true
	}
	return *config.Subagents.Enabled
}

// WatchAgents reports whether definition changes should trigger a reload.
func WatchAgents(config *types.Config) bool {
	return config != nil && config.Subagents != nil && config.Subagents.Watch
}

// MaxTurns returns the configured turn limit, or zero for the default.
func MaxTurns(config *types.Config) int {
	if config == nil || config.Subagents == nil {
		return 0
	}
	return config.Subagents.MaxTurns
}
