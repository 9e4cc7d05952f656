// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/dump-loader/internal/db"
	"github.com/jonathan/dump-loader/internal/schemas"
)

// Built-in defaults: tmp/ holds the archive and its extracted tree, out/ holds
// the database file.
const (
	DefaultWorkDir      = "tmp"
	DefaultOutDir       = "out"
	DefaultDatabaseFile = "database.sqlite"
	DefaultBatchSize    = 100
	DefaultConcurrency  = 2
	DefaultFetchTimeout = 10 * time.Minute
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// Config represents the loader configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Source
	SourceURL    string `json:"source_url,omitempty" validate:"omitempty,url"`
	FetchTimeout string `json:"fetch_timeout,omitempty" validate:"omitempty,duration"` // bounds the whole transfer
	FetchRetries int    `json:"fetch_retries,omitempty" validate:"gte=0,lte=10"`

	// Paths
	WorkDir      string `json:"work_dir,omitempty"`
	OutDir       string `json:"out_dir,omitempty"`
	DatabasePath string `json:"database_path,omitempty"`                         // defaults to <out_dir>/database.sqlite
	DatabaseURL  string `json:"database_url,omitempty" validate:"omitempty,url"` // selects PostgreSQL

	// Loading
	BatchSize   int      `json:"batch_size,omitempty" validate:"gte=0,lte=10000"`
	Concurrency int      `json:"concurrency,omitempty" validate:"gte=0,lte=2"`
	Tables      []string `json:"tables,omitempty" validate:"unique,dive,oneof=organizations customers"`
	KeepWorkDir *bool    `json:"keep_work_dir,omitempty"`

	// Logging
	LogLevel  string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat string `json:"log_format,omitempty" validate:"omitempty,oneof=text json"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	keep := true
	return Config{
		FetchTimeout: DefaultFetchTimeout.String(),
		WorkDir:      DefaultWorkDir,
		OutDir:       DefaultOutDir,
		BatchSize:    DefaultBatchSize,
		Concurrency:  DefaultConcurrency,
		KeepWorkDir:  &keep,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
	}
}

// LoadConfig loads configuration from a JSON file.
// The document is checked against the bundled JSON Schema before decoding.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to parse config JSON: %s is not valid JSON", path)
	}
	if err := schemas.ValidateConfig(data); err != nil {
		return nil, fmt.Errorf("config file %s does not match schema: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Required fields are checked by the commands that need them.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("'%s' failed '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.DatabaseURL != "" && !db.IsPostgresURL(c.DatabaseURL) {
		return fmt.Errorf("config error: 'database_url' must be a postgres:// URL")
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.SourceURL == "" {
		result.SourceURL = defaults.SourceURL
	}
	if result.FetchTimeout == "" {
		result.FetchTimeout = defaults.FetchTimeout
	}
	if result.WorkDir == "" {
		result.WorkDir = defaults.WorkDir
	}
	if result.OutDir == "" {
		result.OutDir = defaults.OutDir
	}
	if result.DatabasePath == "" {
		result.DatabasePath = defaults.DatabasePath
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}

	// Int fields: use default if zero
	if result.FetchRetries == 0 {
		result.FetchRetries = defaults.FetchRetries
	}
	if result.BatchSize == 0 {
		result.BatchSize = defaults.BatchSize
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}

	if len(result.Tables) == 0 {
		result.Tables = defaults.Tables
	}
	if result.KeepWorkDir == nil {
		result.KeepWorkDir = defaults.KeepWorkDir
	}

	return result
}

// ResolvedDatabasePath returns the SQLite file path, defaulting to <out_dir>/database.sqlite.
func (c *Config) ResolvedDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	outDir := c.OutDir
	if outDir == "" {
		outDir = DefaultOutDir
	}
	return filepath.Join(outDir, DefaultDatabaseFile)
}

// Timeout parses FetchTimeout, falling back to DefaultFetchTimeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.FetchTimeout == "" {
		return DefaultFetchTimeout, nil
	}
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("config error: invalid 'fetch_timeout': %w", err)
	}
	return d, nil
}

// KeepWork reports whether the work directory survives a successful run.
func (c *Config) KeepWork() bool {
	return c.KeepWorkDir == nil || *c.KeepWorkDir
}
