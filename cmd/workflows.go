package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/orquestator/internal/workflow"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List workflows in the workflows directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		names, err := workflow.NewDirSource(cfg.WorkflowsDir(baseDir)).List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			if names == nil {
				names = []string{}
			}
			return printJSON(out, names)
		}
		if len(names) == 0 {
			fmt.Fprintln(out, dimStyle.Render("No workflows in "+cfg.WorkflowsDir(baseDir)))
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workflowsCmd)
}
