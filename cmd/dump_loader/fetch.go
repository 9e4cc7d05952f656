package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/dump-loader/internal/logging"
	"github.com/jonathan/dump-loader/internal/observability"
	"github.com/jonathan/dump-loader/internal/pipeline"
	"github.com/jonathan/dump-loader/internal/types"
)

func newFetchCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and extract the archive without loading it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts)
		},
	}

	opts.bindSource(cmd.Flags())
	return cmd
}

func runFetch(cmd *cobra.Command, opts *rootOptions) error {
	cfg := opts.cfg
	if cfg.SourceURL == "" {
		return fmt.Errorf("source URL is required: pass --url, set source_url in the config file, or set DUMP_SOURCE_URL")
	}

	fetchOpts, err := opts.fetchOptions()
	if err != nil {
		return err
	}

	job := types.NewArchiveJob(cfg.SourceURL, cfg.WorkDir)
	ctx := logging.WithLogger(cmd.Context(), opts.logger.With("job_id", job.ID.String()))
	fetched, extracted, err := pipeline.Prepare(ctx, job, pipeline.RunOptions{Fetch: fetchOpts})

	observability.NewPrinter(cmd.OutOrStdout()).PrintArchive(fetched, extracted)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	return nil
}
