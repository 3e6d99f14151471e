package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/orquestator/internal/state"
)

var runPoll time.Duration

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Start a workflow run and follow it to the end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		id, err := a.engine.Start(ctx, args[0])
		if err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Fprintf(out, "%s %s\n", titleStyle.Render("Started run"), id)
		}

		run, err := follow(ctx, a, id, out)
		a.engine.Wait()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("interrupted; continue with `orquestator resume`")
			}
			return err
		}
		return report(out, run)
	},
}

// follow polls the run until it is terminal, printing each new log entry.
func follow(ctx context.Context, a *app, id string, out io.Writer) (*state.Run, error) {
	ticker := time.NewTicker(runPoll)
	defer ticker.Stop()

	printed := 0
	for {
		run, err := a.engine.Status(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		if !jsonOutput {
			for ; printed < len(run.Log); printed++ {
				printEntry(out, printed, run.Log[printed])
			}
		}
		if run.Status.IsTerminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// report prints the final record and turns a failed run into an error.
func report(out io.Writer, run *state.Run) error {
	if jsonOutput {
		if err := printJSON(out, run); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Run %s %s\n", run.ID, renderStatus(run.Status))
	}
	if run.Status == state.StatusFailed {
		name := ""
		if last, ok := run.LastResult(); ok {
			name = last.StepName
		}
		return fmt.Errorf("run %s failed at step %d (%s)", run.ID, run.Current, name)
	}
	return nil
}

func init() {
	runCmd.Flags().DurationVar(&runPoll, "poll", 500*time.Millisecond, "Status poll interval")
	rootCmd.AddCommand(runCmd)
}
