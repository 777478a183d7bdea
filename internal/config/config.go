package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/pkg/types"
)

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.opencode/)
// 2. Global config (~/.config/opencode/ - XDG compatible)
// 3. Project config (opencode.json[c], .opencode/opencode.json[c])
// 4. OPENCODE_CONFIG file
// 5. OPENCODE_CONFIG_CONTENT inline JSON
// 6. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return
		}
		err = loadConfigFile(path, config, baseDir)
		if err == nil {
			loaded[absPath] = true
			logging.Debug().Str("path", absPath).Msg("Loaded config file")
			return
		}
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", absPath).Msg("Skipping invalid config file")
		}
	}

	if home := os.Getenv("HOME"); home != "" {
		dir := filepath.Join(home, ".opencode")
		loadOnce(filepath.Join(dir, "opencode.json"), dir)
		loadOnce(filepath.Join(dir, "opencode.jsonc"), dir)
	}

	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "opencode.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "opencode.jsonc"), globalPath)

	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".opencode")
		loadOnce(filepath.Join(directory, "opencode.json"), directory)
		loadOnce(filepath.Join(directory, "opencode.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "opencode.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "opencode.jsonc"), projectConfigDir)
	}

	if configPath := os.Getenv("OPENCODE_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	if configContent := os.Getenv("OPENCODE_CONFIG_CONTENT"); configContent != "" {
		var inline types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(configContent)), &inline); err != nil {
			logging.Warn().Err(err).Msg("Ignoring invalid OPENCODE_CONFIG_CONTENT")
		} else {
			mergeConfig(config, &inline)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := resolvePath(filePattern.FindStringSubmatch(match)[1], baseDir)

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match
		}

		// Marshal yields a quoted JSON string; drop the quotes.
		escaped, _ := json.Marshal(strings.TrimRight(string(content), "\n"))
		return string(escaped[1 : len(escaped)-1])
	})

	return []byte(str)
}

// resolvePath expands ~/ and makes relative paths relative to baseDir.
func resolvePath(path, baseDir string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(os.Getenv("HOME"), path[2:])
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		return filepath.Join(baseDir, path)
	}
	return path
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Model != "" {
		target.Model = source.Model
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]types.MCPConfig)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}

	if source.Subagents != nil {
		if target.Subagents == nil {
			target.Subagents = &types.SubagentsConfig{}
		}
		mergeSubagents(target.Subagents, source.Subagents)
	}

	if source.Server != nil {
		target.Server = source.Server
	}
}

// mergeSubagents merges field by field so a project file can flip one
// setting without restating the rest.
func mergeSubagents(target, source *types.SubagentsConfig) {
	if source.Enabled != nil {
		enabled := *source.Enabled
		target.Enabled = &enabled
	}
	if source.UserDir != "" {
		target.UserDir = source.UserDir
	}
	if source.ProjectDir != "" {
		target.ProjectDir = source.ProjectDir
	}
	if source.Watch {
		target.Watch = true
	}
	if source.MaxTurns > 0 {
		target.MaxTurns = source.MaxTurns
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"ark":       "ARK_API_KEY",
	}

	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if config.Provider == nil {
				config.Provider = make(map[string]types.ProviderConfig)
			}
			p := config.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				config.Provider[provider] = p
			}
		}
	}

	if model := os.Getenv("OPENCODE_MODEL"); model != "" {
		config.Model = model
	}

	if toggle := os.Getenv("OPENCODE_SUBAGENTS"); toggle != "" {
		if config.Subagents == nil {
			config.Subagents = &types.SubagentsConfig{}
		}
		enabled := !isFalse(toggle)
		config.Subagents.Enabled = &enabled
	}
}

func isFalse(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "off":
		return true
	}
	return false
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the config directory to use.
// Prefers OPENCODE_CONFIG_DIR, then ~/.opencode, then ~/.config/opencode.
func GetConfigDir() string {
	if dir := os.Getenv("OPENCODE_CONFIG_DIR"); dir != "" {
		return dir
	}

	if home := os.Getenv("HOME"); home != "" {
		dir := filepath.Join(home, ".opencode")
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}

	return GetPaths().Config
}
