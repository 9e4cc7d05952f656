package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables consulted by FromEnv.
const (
	EnvSourceURL   = "DUMP_SOURCE_URL"
	EnvDatabaseURL = "DATABASE_URL"
	EnvBatchSize   = "DUMP_BATCH_SIZE"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT"
)

// FromEnv builds a partial configuration from environment variables.
// Unset variables leave the corresponding field empty.
func FromEnv() (Config, error) {
	cfg := Config{
		SourceURL:   os.Getenv(EnvSourceURL),
		DatabaseURL: os.Getenv(EnvDatabaseURL),
		LogLevel:    os.Getenv(EnvLogLevel),
		LogFormat:   os.Getenv(EnvLogFormat),
	}

	if s := os.Getenv(EnvBatchSize); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Config{}, fmt.Errorf("%s must be a valid integer: %w", EnvBatchSize, err)
		}
		cfg.BatchSize = n
	}

	return cfg, nil
}
