/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the workfacts server.

COMMANDS:
  server [serve]           Run the HTTP API (default when no subcommand)
  server summary <user>    Print one user's summary from the configured store

CONFIGURATION (lowest to highest precedence):
  1. Built-in defaults (config.Default)
  2. --config YAML file
  3. .env file, then environment variables (DATABASE_URL, LOG_LEVEL, ...)
  4. Command-line flags

EXAMPLES:
  # SQLite file database on the default port
  ./server

  # PostgreSQL
  DATABASE_URL=postgres://localhost/workfacts?sslmode=disable ./server

  # Throwaway in-memory store on port 3000
  ./server --db-driver=memory --port=3000

SEE ALSO:
  - serve.go: server startup and graceful shutdown
  - config/config.go: configuration keys
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var flags globalFlags

	serveCmd := newServeCmd(&flags)
	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Per-user workplace facts and leave approval service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	flags.register(rootCmd)

	rootCmd.AddCommand(
		serveCmd,
		newSummaryCmd(&flags),
	)

	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
