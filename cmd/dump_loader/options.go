package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonathan/dump-loader/internal/config"
	"github.com/jonathan/dump-loader/internal/dataset"
	"github.com/jonathan/dump-loader/internal/db"
	"github.com/jonathan/dump-loader/internal/fetch"
	"github.com/jonathan/dump-loader/internal/logging"
)

// retryWaitMin is the first backoff interval of the retrying client.
var retryWaitMin = time.Second

// rootOptions carries flag values and the resolved configuration shared by
// every subcommand.
type rootOptions struct {
	stderr io.Writer

	configPath string
	flags      config.Config
	keepWork   bool
	reset      bool

	cfg    config.Config
	logger *slog.Logger
}

func (o *rootOptions) bindPersistent(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configPath, "config", "c", "", "Path to JSON config file")
	flags.StringVar(&o.flags.WorkDir, "work-dir", config.DefaultWorkDir, "Directory for the downloaded archive and its extracted tree")
	flags.StringVar(&o.flags.OutDir, "out-dir", config.DefaultOutDir, "Directory holding the SQLite database")
	flags.StringVar(&o.flags.DatabasePath, "db-path", "", "SQLite database file (default <out-dir>/database.sqlite)")
	flags.StringVar(&o.flags.DatabaseURL, "database-url", "", "PostgreSQL URL; overrides --db-path (env DATABASE_URL)")
	flags.StringSliceVar(&o.flags.Tables, "tables", nil, "Tables to process (organizations, customers); default all")
	flags.StringVar(&o.flags.LogLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.StringVar(&o.flags.LogFormat, "log-format", config.DefaultLogFormat, "Log format: text or json")
}

func (o *rootOptions) bindSource(flags *pflag.FlagSet) {
	flags.StringVarP(&o.flags.SourceURL, "url", "u", "", "Archive URL (env DUMP_SOURCE_URL)")
	flags.StringVar(&o.flags.FetchTimeout, "fetch-timeout", config.DefaultFetchTimeout.String(), "Timeout for the whole download")
	flags.IntVar(&o.flags.FetchRetries, "retries", 0, "Retry attempts for the download")
}

func (o *rootOptions) bindLoad(flags *pflag.FlagSet) {
	flags.IntVarP(&o.flags.BatchSize, "batch-size", "b", config.DefaultBatchSize, "Records committed per batch")
	flags.IntVar(&o.flags.Concurrency, "concurrency", config.DefaultConcurrency, "Table pipelines run in parallel (1 or 2)")
	flags.BoolVar(&o.keepWork, "keep-work-dir", true, "Keep the archive and extracted files after a successful run")
	flags.BoolVar(&o.reset, "reset", false, "Drop the tables before loading")
}

// flagSetters copy a changed flag into the configuration.
var flagSetters = map[string]func(dst *config.Config, o *rootOptions){
	"work-dir":      func(dst *config.Config, o *rootOptions) { dst.WorkDir = o.flags.WorkDir },
	"out-dir":       func(dst *config.Config, o *rootOptions) { dst.OutDir = o.flags.OutDir },
	"db-path":       func(dst *config.Config, o *rootOptions) { dst.DatabasePath = o.flags.DatabasePath },
	"database-url":  func(dst *config.Config, o *rootOptions) { dst.DatabaseURL = o.flags.DatabaseURL },
	"tables":        func(dst *config.Config, o *rootOptions) { dst.Tables = o.flags.Tables },
	"log-level":     func(dst *config.Config, o *rootOptions) { dst.LogLevel = o.flags.LogLevel },
	"log-format":    func(dst *config.Config, o *rootOptions) { dst.LogFormat = o.flags.LogFormat },
	"url":           func(dst *config.Config, o *rootOptions) { dst.SourceURL = o.flags.SourceURL },
	"fetch-timeout": func(dst *config.Config, o *rootOptions) { dst.FetchTimeout = o.flags.FetchTimeout },
	"retries":       func(dst *config.Config, o *rootOptions) { dst.FetchRetries = o.flags.FetchRetries },
	"batch-size":    func(dst *config.Config, o *rootOptions) { dst.BatchSize = o.flags.BatchSize },
	"concurrency":   func(dst *config.Config, o *rootOptions) { dst.Concurrency = o.flags.Concurrency },
	"keep-work-dir": func(dst *config.Config, o *rootOptions) { keep := o.keepWork; dst.KeepWorkDir = &keep },
}

// resolve builds the effective configuration: flags override the config
// file, which overrides the environment, which overrides built-in defaults.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	env, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	cfg := env.MergeWithDefaults(config.Defaults())

	if o.configPath != "" {
		file, err := config.LoadConfig(o.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = file.MergeWithDefaults(cfg)
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		if set, ok := flagSetters[f.Name]; ok {
			set(&cfg, o)
		}
	})

	if err := cfg.Validate(); err != nil {
		return err
	}

	o.cfg = cfg
	o.logger = logging.Setup(o.stderr, cfg.LogLevel, cfg.LogFormat)
	return nil
}

func (o *rootOptions) datasets() ([]dataset.Dataset, error) {
	return dataset.Select(o.cfg.Tables)
}

func (o *rootOptions) database() db.Options {
	return db.Options{Path: o.cfg.ResolvedDatabasePath(), URL: o.cfg.DatabaseURL}
}

// fetchOptions builds the transfer options. Retries are a caller policy, so
// the retrying client is only installed when retries were requested.
func (o *rootOptions) fetchOptions() (*fetch.Options, error) {
	timeout, err := o.cfg.Timeout()
	if err != nil {
		return nil, err
	}

	opts := fetch.DefaultOptions()
	opts.Timeout = timeout
	if o.cfg.FetchRetries > 0 {
		opts.Client = retryingClient(o.cfg.FetchRetries, timeout, o.logger)
	}
	return opts, nil
}

func retryingClient(retries int, timeout time.Duration, logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = retryWaitMin
	rc.Logger = logging.Leveled{Logger: logger.With("component", "retryablehttp")}
	rc.HTTPClient.Timeout = timeout
	return rc.StandardClient()
}
