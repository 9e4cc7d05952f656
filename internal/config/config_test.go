package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))
	return tmpFile
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"source_url": "https://example.com/dump.tar.gz",
		"work_dir": "scratch",
		"batch_size": 50,
		"concurrency": 1,
		"keep_work_dir": false,
		"tables": ["customers"]
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://example.com/dump.tar.gz", cfg.SourceURL)
	assert.Equal(t, "scratch", cfg.WorkDir)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.False(t, cfg.KeepWork())
	assert.Equal(t, []string{"customers"}, cfg.Tables)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{ invalid json }`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_SchemaMismatch(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{"batch_size": -4, "unknown": true}`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.SourceURL = "https://example.com/dump.tar.gz"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadValues(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"url", Config{SourceURL: "not a url"}, "source_url"},
		{"batch size", Config{BatchSize: -1}, "batch_size"},
		{"concurrency", Config{Concurrency: 3}, "concurrency"},
		{"timeout", Config{FetchTimeout: "soon"}, "fetch_timeout"},
		{"negative timeout", Config{FetchTimeout: "-1m"}, "fetch_timeout"},
		{"table", Config{Tables: []string{"invoices"}}, "tables"},
		{"duplicate table", Config{Tables: []string{"customers", "customers"}}, "tables"},
		{"log format", Config{LogFormat: "xml"}, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_DatabaseURLMustBePostgres(t *testing.T) {
	cfg := Config{DatabaseURL: "mysql://localhost/db"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		SourceURL: "https://example.com/custom.tar.gz",
		BatchSize: 25,
	}

	merged := partial.MergeWithDefaults(Defaults())

	// Custom values should be preserved
	assert.Equal(t, "https://example.com/custom.tar.gz", merged.SourceURL)
	assert.Equal(t, 25, merged.BatchSize)

	// Default values should fill in empty fields
	assert.Equal(t, DefaultWorkDir, merged.WorkDir)
	assert.Equal(t, DefaultOutDir, merged.OutDir)
	assert.Equal(t, DefaultConcurrency, merged.Concurrency)
	assert.Equal(t, "10m0s", merged.FetchTimeout)
	assert.True(t, merged.KeepWork())
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{SourceURL: "https://example.com/a.tar.gz"}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "https://example.com/a.tar.gz", merged.SourceURL)
	assert.Empty(t, merged.WorkDir)
}

func TestResolvedDatabasePath(t *testing.T) {
	cfg := Config{OutDir: "results"}
	assert.Equal(t, filepath.Join("results", "database.sqlite"), cfg.ResolvedDatabasePath())

	cfg.DatabasePath = "/data/dump.sqlite"
	assert.Equal(t, "/data/dump.sqlite", cfg.ResolvedDatabasePath())

	assert.Equal(t, filepath.Join("out", "database.sqlite"), (&Config{}).ResolvedDatabasePath())
}

func TestTimeout(t *testing.T) {
	d, err := (&Config{}).Timeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultFetchTimeout, d)

	d, err = (&Config{FetchTimeout: "90s"}).Timeout()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = (&Config{FetchTimeout: "later"}).Timeout()
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvSourceURL, "https://example.com/env.tar.gz")
	t.Setenv(EnvDatabaseURL, "postgres://u@localhost/db")
	t.Setenv(EnvBatchSize, "42")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/env.tar.gz", cfg.SourceURL)
	assert.Equal(t, "postgres://u@localhost/db", cfg.DatabaseURL)
	assert.Equal(t, 42, cfg.BatchSize)
}

func TestFromEnv_BadBatchSize(t *testing.T) {
	t.Setenv(EnvBatchSize, "lots")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvBatchSize)
}
