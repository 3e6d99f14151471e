package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/orquestator/internal/state"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue runs left pending or running by a previous process",
	Long:  "Re-dispatches every pending or running run. Each run continues at its current step, which runs again.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		ids, err := a.engine.Recover(ctx)
		if err != nil {
			return err
		}
		a.engine.Wait()

		runs := make([]*state.Run, 0, len(ids))
		failed := 0
		for _, id := range ids {
			run, err := a.engine.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			if run.Status == state.StatusFailed {
				failed++
			}
			runs = append(runs, run)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(out, runs); err != nil {
				return err
			}
		} else if len(runs) == 0 {
			fmt.Fprintln(out, dimStyle.Render("Nothing to resume."))
		} else {
			printRunTable(out, runs)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d resumed runs failed", failed, len(runs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
