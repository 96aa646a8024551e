package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool

	version = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, ver, commit, buildDate string) error {
	version = ver
	rootCmd := newRootCommand(ver, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ironbar",
		Short: "ironbar - reactive dynamic strings for status bars",
		Long: `ironbar renders dynamic strings: templates mixing static text with
command output and named variables that re-render whenever any part changes.

Template syntax:
  {{cmd}}             command output, polled every 5s
  {{once:cmd}}        run once
  {{1000:cmd}}        poll every 1000ms
  {{watch:cmd}}       one render per output line
  #name               value of variable name
  ##                  a literal #`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newRunCommand())

	return rootCmd
}
