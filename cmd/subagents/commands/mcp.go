package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/subagents/internal/logging"
	mcpsubagents "github.com/opencode-ai/subagents/pkg/mcpserver/subagents"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the sub-agent tools over MCP stdio",
	Long: `Serve subagent_list, subagent_describe, and subagent_run as MCP tools on
stdin and stdout so other MCP hosts can delegate to these agents.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background(), workDir, true)
	if err != nil {
		return err
	}
	defer a.Close()

	logging.Info().Str("version", Version).Msg("Serving MCP on stdio")
	return mcpsubagents.ServeStdio(a.manager, Version)
}
