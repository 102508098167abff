// Command selfimprove runs the evaluate, diagnose, patch and re-measure loop
// against an agent and inspects or replays recorded runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "selfimprove",
	Short: "Iteratively patch an agent until its evaluation stops failing",
	Long: "selfimprove evaluates an agent, diagnoses failing categories, has a proposer\n" +
		"draft a patch, runs it past a challenger and a three-reviewer panel, applies it,\n" +
		"re-evaluates and reverts it if any category regressed.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env SELFIMPROVE_* overrides it)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
