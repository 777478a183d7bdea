package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opencode-ai/subagents/internal/logging"
)

// ConnectRetries is the number of reconnect attempts after a failed connect.
const ConnectRetries = 2

// Client manages MCP server connections using the official MCP SDK.
type Client struct {
	mu        sync.RWMutex
	servers   map[string]*mcpServer
	sdkClient *sdkmcp.Client

	// NewBackOff returns the reconnect policy. Tests replace it.
	NewBackOff func() backoff.BackOff
}

type mcpServer struct {
	name    string
	config  *Config
	session *sdkmcp.ClientSession
	tools   []Tool
	status  Status
	error   string
	version string
}

// NewClient creates a new MCP client.
func NewClient() *Client {
	sdkClient := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "subagents",
		Version: "1.0.0",
	}, nil)

	return &Client{
		servers:    make(map[string]*mcpServer),
		sdkClient:  sdkClient,
		NewBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithMaxRetries(b, ConnectRetries)
}

// AddServer connects to the server described by config and lists its tools.
// A failed server stays registered with StatusFailed.
func (c *Client) AddServer(ctx context.Context, name string, config *Config) error {
	if err := c.reserve(name, config); err != nil {
		return err
	}

	if !config.Enabled {
		c.store(&mcpServer{name: name, config: config, status: StatusDisabled})
		return nil
	}

	var session *sdkmcp.ClientSession
	err := backoff.Retry(func() error {
		s, err := c.dial(ctx, config)
		if err != nil {
			var cfgErr *configError
			if errors.As(err, &cfgErr) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			logging.Debug().Err(err).Str("server", name).Msg("MCP connect attempt failed")
			return err
		}
		session = s
		return nil
	}, backoff.WithContext(c.NewBackOff(), ctx))

	if err != nil {
		c.store(&mcpServer{name: name, config: config, status: StatusFailed, error: err.Error()})
		logging.Warn().Err(err).Str("server", name).Msg("MCP server unavailable")
		return err
	}

	return c.attach(ctx, name, config, session)
}

// AddTransport connects to a server over an already built transport, such as
// one end of an in-memory pair.
func (c *Client) AddTransport(ctx context.Context, name string, transport sdkmcp.Transport) error {
	config := &Config{Enabled: true, Type: TransportTypeLocal, Timeout: DefaultTimeout}
	if err := c.reserve(name, config); err != nil {
		return err
	}

	session, err := c.sdkClient.Connect(ctx, transport, nil)
	if err != nil {
		err = fmt.Errorf("failed to connect: %w", err)
		c.store(&mcpServer{name: name, config: config, status: StatusFailed, error: err.Error()})
		return err
	}
	return c.attach(ctx, name, config, session)
}

func (c *Client) reserve(name string, config *Config) error {
	if config == nil {
		return fmt.Errorf("missing config for server: %s", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.servers[name]; ok {
		return fmt.Errorf("server already exists: %s", name)
	}
	c.servers[name] = &mcpServer{name: name, config: config, status: StatusConnecting}
	return nil
}

func (c *Client) store(server *mcpServer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers[server.name] = server
}

// attach lists the session's tools and marks the server connected.
func (c *Client) attach(ctx context.Context, name string, config *Config, session *sdkmcp.ClientSession) error {
	server := &mcpServer{name: name, config: config, session: session}
	if initResult := session.InitializeResult(); initResult != nil && initResult.ServerInfo != nil {
		server.version = initResult.ServerInfo.Version
	}

	listCtx, cancel := context.WithTimeout(ctx, time.Duration(config.Timeout)*time.Millisecond)
	defer cancel()

	if err := server.listTools(listCtx); err != nil {
		session.Close()
		err = fmt.Errorf("failed to list tools: %w", err)
		c.store(&mcpServer{name: name, config: config, status: StatusFailed, error: err.Error()})
		return err
	}

	server.status = StatusConnected
	c.store(server)

	logging.Info().Str("server", name).Int("tools", len(server.tools)).Msg("MCP server connected")
	return nil
}

// configError marks a connect failure that retrying cannot fix.
type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

func (c *Client) dial(ctx context.Context, config *Config) (*sdkmcp.ClientSession, error) {
	timeout := time.Duration(config.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeout * time.Millisecond
	}

	switch config.Type {
	case TransportTypeRemote:
		if config.URL == "" {
			return nil, &configError{msg: "empty url"}
		}
		httpClient := httpClientWithHeaders(config.Headers)
		transports := []struct {
			name      string
			transport sdkmcp.Transport
		}{
			{name: "streamable", transport: &sdkmcp.StreamableClientTransport{Endpoint: config.URL, HTTPClient: httpClient}},
			{name: "sse", transport: &sdkmcp.SSEClientTransport{Endpoint: config.URL, HTTPClient: httpClient}},
		}

		var lastErr error
		for _, candidate := range transports {
			connectCtx, cancel := context.WithTimeout(ctx, timeout)
			session, err := c.sdkClient.Connect(connectCtx, candidate.transport, nil)
			cancel()
			if err != nil {
				lastErr = fmt.Errorf("%s transport: %w", candidate.name, err)
				continue
			}
			return session, nil
		}
		return nil, lastErr

	case TransportTypeLocal, TransportTypeStdio:
		if len(config.Command) == 0 {
			return nil, &configError{msg: "empty command"}
		}

		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.Command(config.Command[0], config.Command[1:]...)
		cmd.Env = os.Environ()
		for k, v := range config.Environment {
			cmd.Env = append(cmd.Env, k+"="+v)
		}

		session, err := c.sdkClient.Connect(connectCtx, &sdkmcp.CommandTransport{Command: cmd}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
		return session, nil

	default:
		return nil, &configError{msg: fmt.Sprintf("unknown transport type: %s", config.Type)}
	}
}

func httpClientWithHeaders(headers map[string]string) *http.Client {
	client := &http.Client{}
	if len(headers) == 0 {
		return client
	}
	client.Transport = &headerRoundTripper{headers: headers, next: http.DefaultTransport}
	return client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}

func (s *mcpServer) listTools(ctx context.Context) error {
	result, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return err
	}

	s.tools = make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		schemaJSON, err := json.Marshal(t.InputSchema)
		if err != nil || string(schemaJSON) == "null" {
			schemaJSON = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		s.tools = append(s.tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaJSON,
		})
	}
	return nil
}

// Tools returns the tools of every connected server under prefixed names,
// sorted by name.
func (c *Client) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []Tool
	for name, server := range c.servers {
		if server.status != StatusConnected {
			continue
		}
		for _, t := range server.tools {
			all = append(all, Tool{
				Name:        ToolName(name, t.Name),
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// ToolName returns the registered name of a server tool.
func ToolName(server, tool string) string {
	return sanitizeToolName(server) + "_" + sanitizeToolName(tool)
}

// ExecuteTool calls the prefixed tool on its server and returns its text
// content.
func (c *Client) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	server, original, ok := c.lookup(toolName)
	if !ok {
		return "", fmt.Errorf("no server found for tool: %s", toolName)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("failed to parse arguments: %w", err)
		}
	}

	result, err := server.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      original,
		Arguments: argsMap,
	})
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			output.WriteString(text.Text)
		}
	}

	if result.IsError {
		if output.Len() == 0 {
			return "", errors.New("tool execution failed")
		}
		return "", fmt.Errorf("tool error: %s", output.String())
	}
	return output.String(), nil
}

// lookup resolves a prefixed tool name to its server and original name.
func (c *Client) lookup(toolName string) (*mcpServer, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, server := range c.servers {
		if server.status != StatusConnected || server.session == nil {
			continue
		}
		for _, t := range server.tools {
			if ToolName(name, t.Name) == toolName {
				return server, t.Name, true
			}
		}
	}
	return nil, "", false
}

// Status returns the status of every server sorted by name.
func (c *Client) Status() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make([]ServerStatus, 0, len(c.servers))
	for _, server := range c.servers {
		status = append(status, server.snapshot())
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}

// GetServer returns the status of one server.
func (c *Client) GetServer(name string) (*ServerStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	server, ok := c.servers[name]
	if !ok {
		return nil, fmt.Errorf("server not found: %s", name)
	}
	s := server.snapshot()
	return &s, nil
}

func (s *mcpServer) snapshot() ServerStatus {
	out := ServerStatus{
		Name:      s.name,
		Status:    s.status,
		ToolCount: len(s.tools),
		Version:   s.version,
	}
	if s.error != "" {
		msg := s.error
		out.Error = &msg
	}
	return out
}

// RemoveServer removes and disconnects a server.
func (c *Client) RemoveServer(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	server, ok := c.servers[name]
	if !ok {
		return fmt.Errorf("server not found: %s", name)
	}
	if server.session != nil {
		server.session.Close()
	}
	delete(c.servers, name)
	return nil
}

// Close disconnects all servers.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, server := range c.servers {
		if server.session != nil {
			server.session.Close()
		}
	}
	c.servers = make(map[string]*mcpServer)
	return nil
}

// ServerCount returns the number of configured servers.
func (c *Client) ServerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.servers)
}

// ConnectedCount returns the number of connected servers.
func (c *Client) ConnectedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, server := range c.servers {
		if server.status == StatusConnected {
			count++
		}
	}
	return count
}

// sanitizeToolName replaces non-alphanumeric chars with underscore.
func sanitizeToolName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}
