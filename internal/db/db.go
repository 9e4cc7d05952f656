// Package db provides the relational destination store for loaded records.
//
// Two backends exist: a single-file SQLite database (the default) and
// PostgreSQL. Both create tables idempotently and commit each batch of
// records in one transaction.
package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jonathan/dump-loader/internal/types"
)

var (
	// ErrIncompatibleSchema is returned by EnsureTable when the table exists
	// with a column set that differs from the requested schema.
	ErrIncompatibleSchema = errors.New("table exists with incompatible definition")
	// ErrConstraintViolation marks batch inserts rejected by a table constraint,
	// such as a duplicate primary key.
	ErrConstraintViolation = errors.New("constraint violation")
)

// Store is a destination for batches of records.
// Implementations must tolerate concurrent use by independent table pipelines.
type Store interface {
	// EnsureTable creates the table when absent. An existing table with the same
	// columns is not an error; one with different columns yields ErrIncompatibleSchema.
	EnsureTable(ctx context.Context, schema types.TableSchema) error
	// InsertBatch writes all rows in one transaction: either every row is
	// committed or none is.
	InsertBatch(ctx context.Context, schema types.TableSchema, rows []types.RawRecord) error
	// CountRows returns the number of rows in table.
	CountRows(ctx context.Context, table string) (int, error)
	// DropTable removes table if it exists.
	DropTable(ctx context.Context, table string) error
	// Backend names the store implementation.
	Backend() string
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Path is the SQLite database file. Used when URL is empty.
	Path string
	// URL is a PostgreSQL connection URL. Takes precedence over Path.
	URL string
}

// Open connects to the backend selected by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.URL != "" {
		return ConnectPostgres(ctx, opts.URL)
	}
	return OpenSQLite(ctx, opts.Path)
}

// IsPostgresURL reports whether s looks like a PostgreSQL connection URL.
func IsPostgresURL(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

// liveColumn is a column as reported by the database catalog.
type liveColumn struct {
	Name     string
	Nullable bool
}

// compareColumns checks a live column set against the declared schema.
// Order is not significant; names and nullability are.
func compareColumns(schema types.TableSchema, live []liveColumn) error {
	if len(live) != len(schema.Columns) {
		return incompatible(schema.Name, "has %d columns, expected %d", len(live), len(schema.Columns))
	}
	byName := make(map[string]liveColumn, len(live))
	for _, c := range live {
		byName[c.Name] = c
	}
	for _, want := range schema.Columns {
		got, ok := byName[want.Name]
		if !ok {
			return incompatible(schema.Name, "missing column %s", want.Name)
		}
		// Primary keys are reported nullable by SQLite unless declared NOT NULL,
		// so only a required column that became nullable is a mismatch.
		if !want.Nullable && got.Nullable {
			return incompatible(schema.Name, "column %s is nullable, expected NOT NULL", want.Name)
		}
		if want.Nullable && !got.Nullable {
			return incompatible(schema.Name, "column %s is NOT NULL, expected nullable", want.Name)
		}
	}
	return nil
}
