// Package records streams delimited text files as positional records.
//
// A Reader holds at most one line of parsed state at a time, so memory use is
// independent of file size. The first line of every file is a header and is
// discarded; the declared column list decides how fields are interpreted.
package records

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/jonathan/dump-loader/internal/types"
)

// Delimiter is the field separator of the dump files.
const Delimiter = ','

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// MalformedRecordError reports a line that does not match the declared layout.
type MalformedRecordError struct {
	Path     string
	Line     int
	Got      int
	Expected int
	Cause    error
}

func (e *MalformedRecordError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed record at %s:%d: %v", e.Path, e.Line, e.Cause)
	}
	return fmt.Sprintf("malformed record at %s:%d: got %d fields, expected %d", e.Path, e.Line, e.Got, e.Expected)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Cause
}

// Reader yields the data lines of one file as RawRecords, in file order.
// It is single-pass and not safe for concurrent use.
type Reader struct {
	path    string
	columns []string
	closer  io.Closer
	csv     *csv.Reader

	headerDone bool
	count      int
	err        error
}

// Open opens the file at path for streaming with the given column layout.
func Open(path string, columns []string) (*Reader, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns declared for %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r := NewReader(f, columns)
	r.path = path
	r.closer = f
	return r, nil
}

// NewReader streams records from src. The caller owns src.
func NewReader(src io.Reader, columns []string) *Reader {
	br := bufio.NewReader(src)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comma = Delimiter
	// Field counts are checked here so a bad line surfaces as MalformedRecordError.
	cr.FieldsPerRecord = -1

	return &Reader{
		path:    "<stream>",
		columns: columns,
		csv:     cr,
	}
}

// Count returns the number of records yielded so far.
func (r *Reader) Count() int {
	return r.count
}

// Next returns the next data record. It returns io.EOF once the file is
// exhausted and a *MalformedRecordError for a line whose field count differs
// from the declared layout. Errors are sticky: later calls return the same error.
func (r *Reader) Next() (types.RawRecord, error) {
	if r.err != nil {
		return types.RawRecord{}, r.err
	}

	if !r.headerDone {
		r.headerDone = true
		if _, err := r.csv.Read(); err != nil {
			r.err = r.wrap(err)
			return types.RawRecord{}, r.err
		}
	}

	fields, err := r.csv.Read()
	if err != nil {
		r.err = r.wrap(err)
		return types.RawRecord{}, r.err
	}

	line, _ := r.csv.FieldPos(0)
	if len(fields) != len(r.columns) {
		r.err = &MalformedRecordError{
			Path:     r.path,
			Line:     line,
			Got:      len(fields),
			Expected: len(r.columns),
		}
		return types.RawRecord{}, r.err
	}

	r.count++
	return types.RawRecord{Line: line, Fields: fields}, nil
}

// All adapts the reader to a range-over-func sequence. Iteration stops after
// the first error, which is yielded; io.EOF is not yielded.
func (r *Reader) All() iter.Seq2[types.RawRecord, error] {
	return func(yield func(types.RawRecord, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the underlying file, if the reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) wrap(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &MalformedRecordError{
			Path:     r.path,
			Line:     parseErr.StartLine,
			Expected: len(r.columns),
			Cause:    err,
		}
	}
	return fmt.Errorf("failed to read %s: %w", r.path, err)
}
