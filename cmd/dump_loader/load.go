package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/dump-loader/internal/observability"
	"github.com/jonathan/dump-loader/internal/pipeline"
)

func newLoadCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fetch, extract and load the dump",
		Long:  "Download the archive, unpack it, ensure the destination tables exist, and load every selected table in batches.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts)
		},
	}

	opts.bindSource(cmd.Flags())
	opts.bindLoad(cmd.Flags())
	return cmd
}

func runLoad(cmd *cobra.Command, opts *rootOptions) error {
	cfg := opts.cfg
	if cfg.SourceURL == "" {
		return fmt.Errorf("source URL is required: pass --url, set source_url in the config file, or set DUMP_SOURCE_URL")
	}

	datasets, err := opts.datasets()
	if err != nil {
		return err
	}
	fetchOpts, err := opts.fetchOptions()
	if err != nil {
		return err
	}

	report, runErr := pipeline.Run(cmd.Context(), pipeline.RunOptions{
		SourceURL:   cfg.SourceURL,
		WorkDir:     cfg.WorkDir,
		Database:    opts.database(),
		Datasets:    datasets,
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		Fetch:       fetchOpts,
		Reset:       opts.reset,
		KeepWorkDir: cfg.KeepWork(),
		Logger:      opts.logger,
	})

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if report != nil {
		printer.PrintArchive(report.Fetch, report.Extract)
		printer.PrintReport(report)
	}

	if runErr != nil {
		return fmt.Errorf("load failed: %w", runErr)
	}
	return nil
}
