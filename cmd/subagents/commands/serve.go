package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sub-agent HTTP server",
	Long: `Start an HTTP server that lists agents, runs delegated tasks, and
streams lifecycle events over SSE at /event.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config or 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, workDir, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := server.DefaultConfig()
	if a.config.Server != nil && a.config.Server.Port > 0 {
		cfg.Port = a.config.Server.Port
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	srv := server.New(cfg, a.manager, a.agents)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", cfg.Port).Str("version", Version).Msg("Server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logging.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Server shutdown error")
	}

	logging.Info().Msg("Server stopped")
	return nil
}
