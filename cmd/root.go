package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is reported by the tool server. Set at build time.
var Version = "dev"

var (
	jsonOutput bool
	configPath string
	workDir    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "orquestator",
	Short:         "Background workflow runner with durable run state",
	Long:          "orquestator starts declarative workflows, follows their runs and resumes them after a restart.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output raw JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <workdir>/orquestator.toml, or $ORQUESTATOR_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "Working directory for workflows, runs and step commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}
