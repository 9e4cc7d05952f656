// Package archive unpacks gzip-compressed tar archives onto the local filesystem.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrDestinationNotEmpty is returned when the extraction directory already has contents.
var ErrDestinationNotEmpty = errors.New("extraction directory is not empty")

// Error represents an extraction failure for a single archive.
type Error struct {
	Archive string
	Entry   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("extract error for %s", e.Archive)
	if e.Entry != "" {
		msg += fmt.Sprintf(" (entry %s)", e.Entry)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Summary reports what an extraction wrote.
type Summary struct {
	Files   int
	Dirs    int
	Skipped int
	Bytes   int64
}

// Extract unpacks the gzip-compressed tar at archivePath into destDir.
//
// The decompressed stream feeds the tar reader directly; no uncompressed copy
// of the archive is written. destDir is created when absent and must be empty
// when present. Extract returns only after every entry has been written.
func Extract(ctx context.Context, archivePath, destDir string) (*Summary, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, &Error{Archive: archivePath, Message: "failed to open archive", Cause: err}
	}
	defer func() { _ = f.Close() }()

	if err := prepareDir(destDir); err != nil {
		return nil, &Error{Archive: archivePath, Message: "failed to prepare extraction directory", Cause: err}
	}

	summary, err := ExtractReader(ctx, f, destDir)
	if err != nil {
		var extractErr *Error
		if errors.As(err, &extractErr) {
			extractErr.Archive = archivePath
			return summary, extractErr
		}
		return summary, &Error{Archive: archivePath, Message: "extraction failed", Cause: err}
	}
	return summary, nil
}

// ExtractReader unpacks a gzip-compressed tar stream into destDir, which must exist.
func ExtractReader(ctx context.Context, r io.Reader, destDir string) (*Summary, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, &Error{Message: "failed to open gzip stream", Cause: err}
	}
	defer func() { _ = gz.Close() }()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, &Error{Message: "failed to resolve extraction directory", Cause: err}
	}

	summary := &Summary{}
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return summary, &Error{Message: "extraction cancelled", Cause: err}
		}

		header, err := tr.Next()
		if err == io.EOF {
			// The gzip trailer is only verified once the stream is read to its end.
			if _, err := io.Copy(io.Discard, gz); err != nil {
				return summary, &Error{Message: "corrupt gzip stream", Cause: err}
			}
			break
		}
		if err != nil {
			return summary, &Error{Message: "failed to read tar entry", Cause: err}
		}

		target, err := entryPath(root, header.Name)
		if err != nil {
			return summary, &Error{Entry: header.Name, Message: "unsafe entry path", Cause: err}
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(header)); err != nil {
				return summary, &Error{Entry: header.Name, Message: "failed to create directory", Cause: err}
			}
			summary.Dirs++
		case tar.TypeReg:
			n, err := writeEntry(target, tr, fileMode(header))
			if err != nil {
				return summary, &Error{Entry: header.Name, Message: "failed to write file", Cause: err}
			}
			summary.Files++
			summary.Bytes += n
		default:
			slog.Debug("skipping tar entry", "entry", header.Name, "type", string(header.Typeflag))
			summary.Skipped++
		}
	}
	return summary, nil
}

func prepareDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrDestinationNotEmpty, dir)
	}
	return nil
}

// entryPath resolves an entry name below root, rejecting names that escape it.
func entryPath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("absolute path %q", name)
	}
	target := filepath.Join(root, clean)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes %s", name, root)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return n, err
	}
	return n, f.Close()
}

func fileMode(h *tar.Header) os.FileMode {
	mode := os.FileMode(h.Mode) & 0o777
	if mode == 0 {
		mode = 0o644
	}
	return mode | 0o200
}

func dirMode(h *tar.Header) os.FileMode {
	mode := os.FileMode(h.Mode) & 0o777
	if mode == 0 {
		mode = 0o755
	}
	return mode | 0o700
}
