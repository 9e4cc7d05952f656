package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/dump-loader/internal/archive"
	"github.com/jonathan/dump-loader/internal/fetch"
	"github.com/jonathan/dump-loader/internal/pipeline"
	"github.com/jonathan/dump-loader/internal/types"
)

func TestPrintArchive(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintArchive(
		&fetch.Result{URL: "https://example.com/dump.tar.gz", Path: "tmp/dump.tar.gz", Bytes: 2_500_000, Duration: 1500 * time.Millisecond},
		&archive.Summary{Files: 2, Dirs: 1, Skipped: 1, Bytes: 4_000_000},
	)
	output := buf.String()

	assert.Contains(t, output, "ARCHIVE")
	assert.Contains(t, output, "https://example.com/dump.tar.gz")
	assert.Contains(t, output, "2.5 MB")
	assert.Contains(t, output, "2 files, 1 dirs (4.0 MB)")
	assert.Contains(t, output, "Skipped:   1 entries")
}

func TestPrintArchive_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintArchive(nil, nil)
	assert.Empty(t, buf.String())
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	report := &pipeline.Report{
		Job:     &types.ArchiveJob{},
		Backend: "sqlite",
		Tables: []pipeline.TableReport{
			{Table: "organizations", Rows: 1000, Batches: 10},
			{Table: "customers", Rows: 120, Batches: 2, Err: errors.New("line 122: got 11 fields")},
		},
		Duration: 2 * time.Second,
	}

	p.PrintReport(report)
	output := buf.String()

	assert.Contains(t, output, "LOAD SUMMARY")
	assert.Contains(t, output, "sqlite")
	assert.Contains(t, output, "✓ organizations")
	assert.Contains(t, output, "1,000 rows in 10 batches")
	assert.Contains(t, output, "✗ customers")
	assert.Contains(t, output, "line 122")
	assert.Contains(t, output, "1,120 rows")
}

func TestPrintReport_SchemaWarning(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintReport(&pipeline.Report{
		Tables: []pipeline.TableReport{{Table: "customers", Rows: 1, Batches: 1, SchemaWarning: errors.New("incompatible")}},
	})

	assert.Contains(t, buf.String(), "1 batch")
	assert.Contains(t, buf.String(), "schema: incompatible")
}

func TestPrintReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintReport(nil)
	p.PrintReport(&pipeline.Report{})

	assert.Empty(t, buf.String())
}

func TestPrintCounts(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCounts("postgres", []TableCount{
		{Table: "organizations", Rows: 12345},
		{Table: "customers", Err: errors.New("no such table")},
	})
	output := buf.String()

	assert.Contains(t, output, "ROW COUNTS")
	assert.Contains(t, output, "postgres")
	assert.Contains(t, output, "12,345")
	assert.Contains(t, output, "no such table")
}

func TestPrintSchemaResults(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSchemaResults([]string{"organizations", "customers"}, nil)
	assert.Contains(t, buf.String(), "2 TABLES READY")

	buf.Reset()
	p.PrintSchemaResults([]string{"organizations", "customers"}, map[string]error{"customers": errors.New("incompatible")})
	output := buf.String()
	assert.Contains(t, output, "✓ organizations")
	assert.Contains(t, output, "⚠ customers")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 100))
}
