// Package main provides the entry point for the dump loader CLI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree. Each call returns fresh flag state.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stderr: stderr}

	root := &cobra.Command{
		Use:           "dump_loader",
		Short:         "Load a published data dump into a relational store",
		Long:          "dump_loader downloads a compressed archive of CSV files, unpacks it, and loads the organizations and customers tables in batches into SQLite or PostgreSQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	opts.bindPersistent(root.PersistentFlags())

	root.AddCommand(
		newLoadCommand(opts),
		newFetchCommand(opts),
		newInitSchemaCommand(opts),
		newCountCommand(opts),
	)
	return root
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
