// Command dcf77 decodes DCF77 time telegrams from the command line and runs
// the decoding service.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errRejected signals a telegram that did not decode. The message has
// already been printed, so main only sets the exit status.
var errRejected = errors.New("telegram rejected")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dcf77",
		Short: "DCF77 time telegram decoder",
		Long: `dcf77 validates and decodes 59-bit DCF77 minute telegrams.

Commands:
  decode    Decode one telegram and print the report
  encode    Build a valid telegram from date and time fields
  serve     Run the HTTP decoding service`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newDecodeCommand())
	rootCmd.AddCommand(newEncodeCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dcf77 %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
