package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jonathan/dump-loader/internal/types"
)

// BackendSQLite names the SQLite backend.
const BackendSQLite = "sqlite"

// SQLite is a single-file store backed by modernc.org/sqlite.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
// Connections are serialized, so concurrent pipelines queue behind each other.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sqlx.ConnectContext(ctx, "sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	return &SQLite{db: conn}, nil
}

// sqliteDSN builds a file: URI for path. The path is percent-escaped so that
// '?' and '#' in file names are not read as URI delimiters.
func sqliteDSN(path string) string {
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(path),
		OmitHost: true,
		RawQuery: "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	}
	return u.String()
}

// Backend implements Store.
func (s *SQLite) Backend() string { return BackendSQLite }

// DB exposes the underlying handle for ad-hoc queries.
func (s *SQLite) DB() *sqlx.DB { return s.db }

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureTable implements Store.
func (s *SQLite) EnsureTable(ctx context.Context, schema types.TableSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL(schema)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", schema.Name, err)
	}

	var rows []struct {
		Name    string `db:"name"`
		NotNull bool   `db:"notnull"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT name, "notnull" FROM pragma_table_info(?)`, schema.Name); err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", schema.Name, err)
	}

	live := make([]liveColumn, len(rows))
	for i, r := range rows {
		live[i] = liveColumn{Name: r.Name, Nullable: !r.NotNull}
	}
	return compareColumns(schema, live)
}

// InsertBatch implements Store.
func (s *SQLite) InsertBatch(ctx context.Context, schema types.TableSchema, rows []types.RawRecord) error {
	if len(rows) == 0 {
		return nil
	}
	args, err := insertArgs(schema, rows)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // No-op after commit

	width := len(schema.Columns)
	for _, c := range statementChunks(len(rows), width, sqliteMaxParams) {
		query := insertSQL(schema, c[1]-c[0], questionMark)
		if _, err := tx.ExecContext(ctx, query, args[c[0]*width:c[1]*width]...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", schema.Name, classifySQLite(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch into %s: %w", schema.Name, err)
	}
	return nil
}

// CountRows implements Store.
func (s *SQLite) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+quoteIdent(table)); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// DropTable implements Store.
func (s *SQLite) DropTable(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

func classifySQLite(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	}
	return err
}
