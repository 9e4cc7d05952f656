package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/dump-loader/internal/db"
	"github.com/jonathan/dump-loader/internal/logging"
	"github.com/jonathan/dump-loader/internal/observability"
	"github.com/jonathan/dump-loader/internal/pipeline"
)

func newInitSchemaCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Create the destination tables",
		Long:  "Create the destination tables if they do not exist. Tables that exist with a different definition are reported but left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitSchema(cmd, opts)
		},
	}
}

func runInitSchema(cmd *cobra.Command, opts *rootOptions) error {
	datasets, err := opts.datasets()
	if err != nil {
		return err
	}

	ctx := logging.WithLogger(cmd.Context(), opts.logger)
	store, err := db.Open(ctx, opts.database())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	warnings := pipeline.EnsureSchemas(ctx, store, datasets)

	tables := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		tables = append(tables, ds.Table())
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSchemaResults(tables, warnings)
	return nil
}
