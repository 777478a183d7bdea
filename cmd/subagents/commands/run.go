package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/internal/subagent"
)

var (
	runModel  string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run <agent> <task...>",
	Short: "Delegate a task to a sub-agent",
	Long: `Delegate a task to a sub-agent and print its output.

The agent runs in an isolated conversation seeded with its system prompt and
the task, restricted to the tools its definition allows.`,
	Example: `  subagents run docs-writer "write a setup guide for the CLI"
  subagents run reviewer --model anthropic/claude-sonnet-4-20250514 review the last commit`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (format: provider/model)")
	runCmd.Flags().StringVar(&runOutput, "format", "text", "Output format: text or json")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, workDir, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.manager.Enabled() {
		return subagent.ErrDisabled
	}

	result := a.manager.Run(ctx, subagent.RunArgs{
		Name:  args[0],
		Task:  strings.Join(args[1:], " "),
		Model: runModel,
	})

	if result.SubID != "" {
		if err := a.rollout.SaveResult(context.WithoutCancel(ctx), result.SubID, result); err != nil {
			logging.Warn().Err(err).Str("subID", result.SubID).Msg("Failed to save run result")
		}
	}

	out := cmd.OutOrStdout()
	switch runOutput {
	case "json":
		fmt.Fprintln(out, result.JSON())
	case "text":
		if result.Success {
			fmt.Fprintln(out, result.Output)
		}
	default:
		return fmt.Errorf("unknown format %q", runOutput)
	}

	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	return nil
}
