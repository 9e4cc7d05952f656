// Package batch groups streamed records into fixed-size batches and commits
// each batch to a store in a single write.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonathan/dump-loader/internal/types"
)

// DefaultSize is the number of records committed per write.
const DefaultSize = 100

// Source yields records in order and returns io.EOF when exhausted.
type Source interface {
	Next() (types.RawRecord, error)
}

// Sink commits a batch atomically.
type Sink interface {
	InsertBatch(ctx context.Context, schema types.TableSchema, rows []types.RawRecord) error
}

// Info describes a committed batch.
type Info struct {
	Table string
	Seq   int
	Size  int
	// Total is the number of rows committed so far, including this batch.
	Total int
}

// Result summarizes one table's write run.
type Result struct {
	Table   string
	Rows    int
	Batches int
	Sizes   []int
}

// WriteError reports a batch the sink rejected. The whole batch is the unit of failure.
type WriteError struct {
	Table     string
	Seq       int
	Size      int
	FirstLine int
	LastLine  int
	Cause     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("batch %d of %s failed (%d records, lines %d-%d): %v",
		e.Seq, e.Table, e.Size, e.FirstLine, e.LastLine, e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// Buffer is the ordered, bounded set of records awaiting commit. It belongs to
// a single Write call and is never shared.
type Buffer struct {
	records  []types.RawRecord
	capacity int
}

// NewBuffer creates an empty buffer holding up to capacity records.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{records: make([]types.RawRecord, 0, capacity), capacity: capacity}
}

// Add appends a record and reports whether the buffer is now full.
func (b *Buffer) Add(rec types.RawRecord) bool {
	b.records = append(b.records, rec)
	return len(b.records) >= b.capacity
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int { return len(b.records) }

// Records returns the buffered records in insertion order.
func (b *Buffer) Records() []types.RawRecord { return b.records }

// Reset empties the buffer. The previous backing array is released to the
// sink that received it.
func (b *Buffer) Reset() {
	b.records = make([]types.RawRecord, 0, b.capacity)
}

// Option configures a Writer.
type Option func(*Writer)

// WithSize sets the batch capacity. Values below 1 are ignored.
func WithSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.size = n
		}
	}
}

// WithProgress registers a callback invoked after every committed batch.
func WithProgress(fn func(Info)) Option {
	return func(w *Writer) { w.onCommit = fn }
}

// Writer commits the records of one table.
type Writer struct {
	sink     Sink
	schema   types.TableSchema
	size     int
	onCommit func(Info)
}

// NewWriter creates a writer for schema's table.
func NewWriter(sink Sink, schema types.TableSchema, opts ...Option) *Writer {
	w := &Writer{sink: sink, schema: schema, size: DefaultSize}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Size returns the batch capacity.
func (w *Writer) Size() int { return w.size }

// Write drains src into the sink.
//
// Records are buffered and committed whenever the buffer reaches capacity;
// the final partial buffer is committed once src is exhausted. Each commit
// completes before the next record is read, so at most one batch is in flight.
//
// A failed commit stops the run with a *WriteError. A source error stops the
// run too: records already buffered are committed first, so the store holds
// exactly the rows that preceded the failure. The returned Result is never nil
// and counts committed rows only.
func (w *Writer) Write(ctx context.Context, src Source) (*Result, error) {
	result := &Result{Table: w.schema.Name}
	buf := NewBuffer(w.size)

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("writing %s cancelled after %d rows: %w", result.Table, result.Rows, err)
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if flushErr := w.flush(ctx, buf, result); flushErr != nil {
				return result, errors.Join(err, flushErr)
			}
			return result, fmt.Errorf("reading %s stopped after %d rows: %w", result.Table, result.Rows, err)
		}

		if buf.Add(rec) {
			if err := w.flush(ctx, buf, result); err != nil {
				return result, err
			}
		}
	}

	if err := w.flush(ctx, buf, result); err != nil {
		return result, err
	}
	return result, nil
}

func (w *Writer) flush(ctx context.Context, buf *Buffer, result *Result) error {
	if buf.Len() == 0 {
		return nil
	}

	rows := buf.Records()
	seq := result.Batches + 1
	if err := w.sink.InsertBatch(ctx, w.schema, rows); err != nil {
		return &WriteError{
			Table:     w.schema.Name,
			Seq:       seq,
			Size:      len(rows),
			FirstLine: rows[0].Line,
			LastLine:  rows[len(rows)-1].Line,
			Cause:     err,
		}
	}

	result.Batches = seq
	result.Rows += len(rows)
	result.Sizes = append(result.Sizes, len(rows))
	buf.Reset()

	if w.onCommit != nil {
		w.onCommit(Info{Table: w.schema.Name, Seq: seq, Size: len(rows), Total: result.Rows})
	}
	return nil
}
