// Package main provides the entry point for the scrutinizer CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scrutinizer/cmd/scrutinizer/commands"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		var exitErr *commands.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.Err)
			}

			os.Exit(exitErr.Code)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitFatal)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scrutinizer",
		Short: "Scrutinizer - configurable static analysis runner",
		Long: `Scrutinizer runs a configured set of analyzers over a project tree and
collects their comments, metrics, code elements and proposed fixes.

Commands:
  run               Analyze a project directory
  config-reference  Print every configuration key with its default
  version           Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.AddSettingsFlag(rootCmd)

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewConfigReferenceCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
