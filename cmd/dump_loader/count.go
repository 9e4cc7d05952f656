package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/dump-loader/internal/db"
	"github.com/jonathan/dump-loader/internal/observability"
)

func newCountCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the row count of each table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, opts)
		},
	}
}

func runCount(cmd *cobra.Command, opts *rootOptions) error {
	datasets, err := opts.datasets()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := db.Open(ctx, opts.database())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	counts := make([]observability.TableCount, 0, len(datasets))
	for _, ds := range datasets {
		n, err := store.CountRows(ctx, ds.Table())
		counts = append(counts, observability.TableCount{Table: ds.Table(), Rows: n, Err: err})
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintCounts(store.Backend(), counts)
	return nil
}
