package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬ ┬┌─┐┌┬┐┌┐ ┬─┐┬┌┬┐┌─┐┌─┐
  ├─┤│ │ │ ├┴┐├┬┘│ │││ ┬├┤
  ┴ ┴└─┘ ┴ └─┘┴└─┴─┴┘└─┘└─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "hotbridge",
		Short: "Hot-reloading API gateway for local development",
		Long: `Hotbridge is a development-time HTTP gateway for Go APIs.

It watches your project, rebuilds the handler when a source change
affects it, and swaps the new handler in without dropping the
listener. Features include:

  • Dependency-aware rebuilds (unrelated edits are ignored)
  • Atomic handler swaps; the last good handler keeps serving
  • Bounded, binary-safe request body collection
  • Optional supervised backend process
  • Prometheus metrics and OpenTelemetry traces`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		devCmd(),
		initCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the hotbridge ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
