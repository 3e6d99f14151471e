package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the stored record of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		run, err := a.engine.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), run)
		}
		printRun(cmd.OutOrStdout(), run)
		return nil
	},
}

var runsStatus []string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter store.Filter
		for _, s := range runsStatus {
			st := state.Status(s)
			if !st.Valid() {
				return fmt.Errorf("unknown status %q (want pending, running, failed or completed)", s)
			}
			filter.Status = append(filter.Status, st)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		runs, err := a.engine.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			if runs == nil {
				runs = []*state.Run{}
			}
			return printJSON(cmd.OutOrStdout(), runs)
		}
		printRunTable(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().StringSliceVar(&runsStatus, "status", nil, "Only runs with these statuses")
	rootCmd.AddCommand(statusCmd, runsCmd)
}
