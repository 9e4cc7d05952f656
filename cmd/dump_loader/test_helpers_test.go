package main

import (
	"archive/tar"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI in-process and returns what it printed to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCommand(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// isolate clears environment variables that would leak into the resolved configuration.
func isolate(t *testing.T) (workDir, outDir string) {
	t.Helper()
	t.Setenv("DUMP_SOURCE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DUMP_BATCH_SIZE", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	dir := t.TempDir()
	return filepath.Join(dir, "tmp"), filepath.Join(dir, "out")
}

func dumpArchive(t *testing.T, organizations, customers int) []byte {
	t.Helper()

	var orgs strings.Builder
	orgs.WriteString("Index,Organization Id,Name,Website,Country,Description,Founded,Industry,Number of employees\n")
	for i := 1; i <= organizations; i++ {
		fmt.Fprintf(&orgs, "%d,ORG%d,Org %d,https://org%d.example,Peru,Things,1990,Retail,%d\n", i, i, i, i, i)
	}

	var custs strings.Builder
	custs.WriteString("Index,Customer Id,First Name,Last Name,Company,City,Country,Phone 1,Phone 2,Email,Subscription Date,Website\n")
	for i := 1; i <= customers; i++ {
		fmt.Fprintf(&custs, "%d,CUST%d,First,Last,,Lima,Peru,555,,c%d@example.com,2020-02-02,https://c.example\n", i, i, i)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range map[string]string{
		"dump/organizations.csv": orgs.String(),
		"dump/customers.csv":     custs.String(),
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func serveArchive(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}
