// Package observability provides formatted summaries printed by the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jonathan/dump-loader/internal/archive"
	"github.com/jonathan/dump-loader/internal/fetch"
	"github.com/jonathan/dump-loader/internal/pipeline"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
)

// Printer handles formatted output for run summaries
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintArchive outputs what was downloaded and unpacked.
func (p *Printer) PrintArchive(fetched *fetch.Result, extracted *archive.Summary) {
	if fetched == nil && extracted == nil {
		return
	}

	var sb strings.Builder
	if fetched != nil {
		sb.WriteString(fmt.Sprintf("Source:    %s\n", fetched.URL))
		sb.WriteString(fmt.Sprintf("Saved to:  %s\n", fetched.Path))
		sb.WriteString(fmt.Sprintf("Size:      %s in %s\n", humanize.Bytes(uint64(fetched.Bytes)), fetched.Duration.Round(time.Millisecond)))
	}
	if extracted != nil {
		sb.WriteString(fmt.Sprintf("Extracted: %d files, %d dirs (%s)\n",
			extracted.Files, extracted.Dirs, humanize.Bytes(uint64(extracted.Bytes))))
		if extracted.Skipped > 0 {
			sb.WriteString(fmt.Sprintf("Skipped:   %d entries\n", extracted.Skipped))
		}
	}

	p.printBox("ARCHIVE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintReport outputs the per-table result of a load.
func (p *Printer) PrintReport(report *pipeline.Report) {
	if report == nil || len(report.Tables) == 0 {
		return
	}

	var sb strings.Builder
	if report.Job != nil {
		sb.WriteString(fmt.Sprintf("Job:      %s\n", report.Job.ID))
	}
	if report.Backend != "" {
		sb.WriteString(fmt.Sprintf("Backend:  %s\n", report.Backend))
	}
	sb.WriteString("\n")

	for _, t := range report.Tables {
		status := "✓"
		if t.Err != nil {
			status = "✗"
		}
		sb.WriteString(fmt.Sprintf("%s %-14s %s rows in %s\n",
			status, t.Table, humanize.Comma(int64(t.Rows)), pluralize(t.Batches, "batch", "batches")))
		if t.SchemaWarning != nil {
			sb.WriteString(fmt.Sprintf("  ⚠ schema: %v\n", t.SchemaWarning))
		}
		if t.Err != nil {
			sb.WriteString(fmt.Sprintf("  %v\n", t.Err))
		}
	}

	sb.WriteString(fmt.Sprintf("\nTotal:    %s rows in %s", humanize.Comma(int64(report.Rows())), report.Duration.Round(time.Millisecond)))

	p.printBox("LOAD SUMMARY", sb.String())
}

// TableCount is one line of PrintCounts.
type TableCount struct {
	Table string
	Rows  int
	Err   error
}

// PrintCounts outputs the row count of each table.
func (p *Printer) PrintCounts(backend string, counts []TableCount) {
	if len(counts) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Backend: %s\n\n", backend))
	for _, c := range counts {
		if c.Err != nil {
			sb.WriteString(fmt.Sprintf("%-14s error: %v\n", c.Table, c.Err))
			continue
		}
		sb.WriteString(fmt.Sprintf("%-14s %s\n", c.Table, humanize.Comma(int64(c.Rows))))
	}

	p.printBox("ROW COUNTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSchemaResults outputs the outcome of ensuring each table.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSchemaResults(tables []string, warnings map[string]error) {
	if len(warnings) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, fmt.Sprintf("✅ %s READY", pluralize(len(tables), "TABLE", "TABLES")))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	for _, table := range tables {
		if err, ok := warnings[table]; ok {
			sb.WriteString(fmt.Sprintf("⚠ %s\n  %v\n", table, err))
			continue
		}
		sb.WriteString(fmt.Sprintf("✓ %s\n", table))
	}

	p.printBox("SCHEMA", strings.TrimSuffix(sb.String(), "\n"))
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
