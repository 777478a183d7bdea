package types

// Config represents the sub-agent host configuration.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	// Default model for delegated runs, "provider/model".
	Model string `json:"model,omitempty"`

	// Provider configs
	Provider map[string]ProviderConfig `json:"provider,omitempty"`

	// MCP server configs. Their tools join the capability set as external tools.
	MCP map[string]MCPConfig `json:"mcp,omitempty"`

	// Sub-agent settings
	Subagents *SubagentsConfig `json:"subagents,omitempty"`

	// HTTP server settings
	Server *ServerConfig `json:"server,omitempty"`
}

// ProviderConfig holds configuration for a specific provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`

	// Model or endpoint ID. ARK addresses models by endpoint.
	Model string `json:"model,omitempty"`

	MaxTokens int `json:"maxTokens,omitempty"`

	// Disable provider
	Disable bool `json:"disable,omitempty"`
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Type        string            `json:"type,omitempty"` // "local"|"remote"
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
}

// SubagentsConfig controls discovery and delegation.
type SubagentsConfig struct {
	// Enabled toggles the sub-agent meta-tools. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty"`

	// UserDir overrides <configDir>/agents.
	UserDir string `json:"userDir,omitempty"`

	// ProjectDir overrides <project>/.opencode/agents.
	ProjectDir string `json:"projectDir,omitempty"`

	// Watch reloads the registry when definition files change.
	Watch bool `json:"watch,omitempty"`

	// MaxTurns bounds model turns per delegated run. Zero means the default.
	MaxTurns int `json:"maxTurns,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `json:"port,omitempty"`
}

// Model represents an LLM model available from a provider.
type Model struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProviderID      string `json:"providerID"`
	ContextLength   int    `json:"contextLength"`
	MaxOutputTokens int    `json:"maxOutputTokens,omitempty"`
	SupportsTools   bool   `json:"supportsTools"`
}
