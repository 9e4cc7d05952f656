// Package pipeline provides the high-level orchestration of a dump load:
// fetch, extract, ensure tables, then one parse and batch-write pipeline per table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/dump-loader/internal/archive"
	"github.com/jonathan/dump-loader/internal/batch"
	"github.com/jonathan/dump-loader/internal/dataset"
	"github.com/jonathan/dump-loader/internal/db"
	"github.com/jonathan/dump-loader/internal/fetch"
	"github.com/jonathan/dump-loader/internal/logging"
	"github.com/jonathan/dump-loader/internal/records"
	"github.com/jonathan/dump-loader/internal/types"
)

var (
	// ErrTransfer marks a run that failed while downloading the archive.
	// No table is written after a transfer failure.
	ErrTransfer = errors.New("archive transfer failed")
	// ErrExtract marks a run that failed while unpacking the archive.
	ErrExtract = errors.New("archive extraction failed")
)

// Stage names used in progress events and log entries.
const (
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageSchema  = "schema"
	StageLoad    = "load"
	StageDone    = "done"
)

// DefaultConcurrency is the number of table pipelines run in parallel.
const DefaultConcurrency = 2

// DefaultWorkDir holds the archive and its extracted tree.
const DefaultWorkDir = "tmp"

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Table   string `json:"table,omitempty"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	SourceURL string
	WorkDir   string

	// Store receives the rows. When nil, Run opens Database after the archive
	// has been extracted and closes it before returning.
	Store    db.Store
	Database db.Options

	Datasets    []dataset.Dataset // empty means every dataset
	BatchSize   int
	Concurrency int
	Fetch       *fetch.Options

	// Reset drops the selected tables before loading.
	Reset bool
	// KeepWorkDir leaves the archive and extracted tree in place after a
	// successful run.
	KeepWorkDir bool

	// Logger is tagged with the job ID and stored in the context handed to
	// every stage. Defaults to slog.Default.
	Logger     *slog.Logger
	OnProgress ProgressCallback
}

// TableReport describes one table pipeline.
type TableReport struct {
	Table      string
	File       string
	Rows       int
	Batches    int
	BatchSizes []int
	Duration   time.Duration
	// SchemaWarning is set when ensuring the table failed. The load is still attempted.
	SchemaWarning error
	Err           error
}

// Report summarizes a run.
type Report struct {
	Job      *types.ArchiveJob
	Backend  string
	Fetch    *fetch.Result
	Extract  *archive.Summary
	Tables   []TableReport
	Duration time.Duration
}

// Rows returns the number of rows committed across all tables.
func (r *Report) Rows() int {
	total := 0
	for _, t := range r.Tables {
		total += t.Rows
	}
	return total
}

// Failed returns the tables whose load did not complete.
func (r *Report) Failed() []TableReport {
	var failed []TableReport
	for _, t := range r.Tables {
		if t.Err != nil {
			failed = append(failed, t)
		}
	}
	return failed
}

func (o *RunOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *RunOptions) emit(job *types.ArchiveJob, stage, table, message string, content any) {
	if o.OnProgress == nil {
		return
	}
	ev := ProgressEvent{Stage: stage, Table: table, Message: message, Content: content}
	if job != nil {
		ev.JobID = job.ID.String()
	}
	o.OnProgress(ev)
}

// Run executes the whole load.
//
// The returned Report is non-nil whenever a job was created, including on
// failure. Transfer and extraction failures wrap ErrTransfer and ErrExtract and
// stop the run before any table is touched. Table failures do not stop sibling
// tables; their errors are joined into the returned error.
func Run(ctx context.Context, opts RunOptions) (*Report, error) {
	if opts.SourceURL == "" {
		return nil, fmt.Errorf("source URL is required")
	}
	if opts.WorkDir == "" {
		opts.WorkDir = DefaultWorkDir
	}
	datasets := opts.Datasets
	if len(datasets) == 0 {
		datasets = dataset.All()
	}

	start := time.Now()
	job := types.NewArchiveJob(opts.SourceURL, opts.WorkDir)
	logger := opts.logger().With("job_id", job.ID.String())
	ctx = logging.WithLogger(ctx, logger)
	report := &Report{Job: job}

	logger.Info("run started", "source_url", job.SourceURL, "work_dir", opts.WorkDir, "tables", len(datasets))

	fetched, extracted, err := Prepare(ctx, job, opts)
	report.Fetch = fetched
	report.Extract = extracted
	if err != nil {
		report.Duration = time.Since(start)
		return report, err
	}

	store := opts.Store
	if store == nil {
		store, err = db.Open(ctx, opts.Database)
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("failed to close database", "error", cerr)
			}
		}()
	}
	report.Backend = store.Backend()

	if opts.Reset {
		if err := ResetTables(ctx, store, datasets); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
	}

	warnings := EnsureSchemas(ctx, store, datasets)
	opts.emit(job, StageSchema, "", fmt.Sprintf("Ensured %d tables", len(datasets)), nil)

	report.Tables = LoadTables(ctx, store, job, datasets, opts)
	for i := range report.Tables {
		report.Tables[i].SchemaWarning = warnings[report.Tables[i].Table]
	}

	var errs []error
	for _, t := range report.Tables {
		if t.Err != nil {
			errs = append(errs, t.Err)
		}
	}

	if len(errs) == 0 && !opts.KeepWorkDir {
		if err := Cleanup(job); err != nil {
			logger.Warn("failed to remove work files", "error", err)
		}
	}

	report.Duration = time.Since(start)
	logger.Info("run finished",
		"stage", StageDone,
		"rows", report.Rows(),
		"failed_tables", len(errs),
		"duration", report.Duration.Round(time.Millisecond))
	opts.emit(job, StageDone, "", fmt.Sprintf("Loaded %d rows", report.Rows()), report)

	return report, errors.Join(errs...)
}

// Prepare downloads the job's archive and unpacks it into a fresh extraction
// directory. Any extraction directory left by an earlier run is removed first.
// It logs through the logger stored in ctx.
func Prepare(ctx context.Context, job *types.ArchiveJob, opts RunOptions) (*fetch.Result, *archive.Summary, error) {
	logger := logging.FromContext(ctx)

	logger.Info("fetching archive", "stage", StageFetch, "url", job.SourceURL, "dest", job.ArchivePath)
	fetched, err := fetch.ToFile(ctx, job.SourceURL, job.ArchivePath, opts.Fetch)
	if err != nil {
		logger.Error("archive transfer failed", "stage", StageFetch, "error", err)
		return fetched, nil, fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	logger.Info("archive fetched", "stage", StageFetch, "bytes", fetched.Bytes, "duration", fetched.Duration.Round(time.Millisecond))
	opts.emit(job, StageFetch, "", fmt.Sprintf("Fetched %d bytes", fetched.Bytes), fetched)

	if err := os.RemoveAll(job.ExtractDir); err != nil {
		return fetched, nil, fmt.Errorf("%w: failed to clear %s: %w", ErrExtract, job.ExtractDir, err)
	}

	logger.Info("extracting archive", "stage", StageExtract, "dest", job.ExtractDir)
	summary, err := archive.Extract(ctx, job.ArchivePath, job.ExtractDir)
	if err != nil {
		logger.Error("archive extraction failed", "stage", StageExtract, "error", err)
		return fetched, summary, fmt.Errorf("%w: %w", ErrExtract, err)
	}
	logger.Info("archive extracted", "stage", StageExtract, "files", summary.Files, "dirs", summary.Dirs, "bytes", summary.Bytes)
	opts.emit(job, StageExtract, "", fmt.Sprintf("Extracted %d files", summary.Files), summary)

	return fetched, summary, nil
}

// EnsureSchemas creates every dataset's table. Failures are logged and
// returned per table; they never stop the caller.
func EnsureSchemas(ctx context.Context, store db.Store, datasets []dataset.Dataset) map[string]error {
	logger := logging.FromContext(ctx)
	warnings := make(map[string]error)
	for _, ds := range datasets {
		err := store.EnsureTable(ctx, ds.Schema)
		switch {
		case err == nil:
			logger.Debug("table ready", "stage", StageSchema, "table", ds.Table())
		case errors.Is(err, db.ErrIncompatibleSchema):
			logger.Warn("table exists with a different definition, continuing", "stage", StageSchema, "table", ds.Table(), "error", err)
			warnings[ds.Table()] = err
		default:
			logger.Warn("failed to ensure table, continuing", "stage", StageSchema, "table", ds.Table(), "error", err)
			warnings[ds.Table()] = err
		}
	}
	return warnings
}

// ResetTables drops every dataset's table.
func ResetTables(ctx context.Context, store db.Store, datasets []dataset.Dataset) error {
	logger := logging.FromContext(ctx)
	for _, ds := range datasets {
		if err := store.DropTable(ctx, ds.Table()); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", ds.Table(), err)
		}
		logger.Info("table dropped", "stage", StageSchema, "table", ds.Table())
	}
	return nil
}

// LoadTables runs one pipeline per dataset, at most opts.Concurrency at a
// time. Reports are returned in dataset order. A failing table does not
// cancel the others.
func LoadTables(ctx context.Context, store db.Store, job *types.ArchiveJob, datasets []dataset.Dataset, opts RunOptions) []TableReport {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	reports := make([]TableReport, len(datasets))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, ds := range datasets {
		g.Go(func() error {
			reports[i] = LoadTable(ctx, store, job, ds, opts)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

// LoadTable streams one dataset's file from the extracted tree into its table.
func LoadTable(ctx context.Context, store db.Store, job *types.ArchiveJob, ds dataset.Dataset, opts RunOptions) TableReport {
	start := time.Now()
	table := ds.Table()
	logger := logging.WithFields(ctx, "stage", StageLoad, "table", table)
	report := TableReport{Table: table, File: job.Path(ds.File)}

	reader, err := records.Open(report.File, ds.Columns())
	if err != nil {
		report.Err = fmt.Errorf("loading %s: %w", table, err)
		report.Duration = time.Since(start)
		logger.Error("table load failed", "error", err)
		return report
	}
	defer func() { _ = reader.Close() }()

	writer := batch.NewWriter(store, ds.Schema,
		batch.WithSize(opts.BatchSize),
		batch.WithProgress(func(info batch.Info) {
			logger.Debug("batch committed", "batch", info.Seq, "size", info.Size, "rows", info.Total)
			opts.emit(job, StageLoad, table, fmt.Sprintf("Committed batch %d (%d rows)", info.Seq, info.Size), info)
		}))

	logger.Info("table load started", "file", report.File, "batch_size", writer.Size())
	result, err := writer.Write(ctx, reader)
	report.Rows = result.Rows
	report.Batches = result.Batches
	report.BatchSizes = result.Sizes
	report.Duration = time.Since(start)

	if err != nil {
		report.Err = fmt.Errorf("loading %s: %w", table, err)
		logger.Error("table load failed", "rows_committed", result.Rows, "batches", result.Batches, "error", err)
		return report
	}

	logger.Info("table loaded", "rows", result.Rows, "batches", result.Batches, "duration", report.Duration.Round(time.Millisecond))
	return report
}

// Cleanup removes the job's archive and extraction directory.
func Cleanup(job *types.ArchiveJob) error {
	return errors.Join(
		os.RemoveAll(job.ExtractDir),
		removeIfExists(job.ArchivePath),
	)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
