package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/orquestator/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the JSON-RPC tool server on stdio",
	Long:  "Serves workflow.start, run.status, run.list and workflow.list over stdin/stdout. Interrupted runs are resumed on startup.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if ids, err := a.engine.Recover(ctx); err != nil {
			a.logger.Warn("recovering runs", "error", err)
		} else if len(ids) > 0 {
			a.logger.Info("resumed runs", "count", len(ids))
		}

		srv := mcp.NewServer(a.engine, a.logger, Version)
		err = srv.Serve(ctx, os.Stdin, os.Stdout)
		a.engine.Wait()
		return err
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
