// Package fetch downloads remote archives to local storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds a whole transfer, including reading the body.
const DefaultTimeout = 10 * time.Minute

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "dump-loader/1.0"

// partialSuffix is appended to the destination while the transfer is in flight.
const partialSuffix = ".part"

// Result describes a completed (or failed) transfer.
type Result struct {
	URL         string
	Path        string
	Bytes       int64
	ContentType string
	StatusCode  int
	Duration    time.Duration
}

// Error represents an error during an archive transfer.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// Client overrides the HTTP client. Timeout is ignored when set.
	// Callers that want retries pass a retrying client here.
	Client *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{Timeout: o.Timeout}
}

// ToFile streams the resource at urlStr into dest.
//
// The body is written to dest+".part" and renamed into place only after the
// whole body has been received. On any failure the partial file is removed and
// dest does not exist afterwards. No retries are attempted.
func ToFile(ctx context.Context, urlStr, dest string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create destination directory", Cause: err}
	}
	// A stale archive from an earlier run must not survive a failed transfer.
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &Error{URL: urlStr, Message: "failed to remove previous archive", Cause: err}
	}

	start := time.Now()
	result := &Result{URL: urlStr, Path: dest}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &Error{URL: urlStr, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	n, err := writeFile(dest, resp.Body, resp.ContentLength)
	result.Bytes = n
	result.Duration = time.Since(start)
	if err != nil {
		return result, &Error{URL: urlStr, Message: "transfer failed", Cause: err}
	}
	return result, nil
}

// writeFile copies body into dest via a temporary partial file.
// expected is the declared length, or -1 when unknown.
func writeFile(dest string, body io.Reader, expected int64) (n int64, err error) {
	part := dest + partialSuffix
	f, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", part, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(part)
		}
	}()

	n, err = io.Copy(f, body)
	if err != nil {
		return n, fmt.Errorf("failed after %d bytes: %w", n, err)
	}
	if expected >= 0 && n != expected {
		return n, fmt.Errorf("short body: got %d of %d bytes", n, expected)
	}
	if err = f.Sync(); err != nil {
		return n, fmt.Errorf("failed to sync %s: %w", part, err)
	}
	if err = f.Close(); err != nil {
		return n, fmt.Errorf("failed to close %s: %w", part, err)
	}
	if err = os.Rename(part, dest); err != nil {
		return n, fmt.Errorf("failed to move %s into place: %w", part, err)
	}
	return n, nil
}
