package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/dump-loader/internal/types"
)

// BackendPostgres names the PostgreSQL backend.
const BackendPostgres = "postgres"

// Postgres wraps a PostgreSQL connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool to the database.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Backend implements Store.
func (p *Postgres) Backend() string { return BackendPostgres }

// Close closes the connection pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// EnsureTable implements Store.
func (p *Postgres) EnsureTable(ctx context.Context, schema types.TableSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, createTableSQL(schema)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", schema.Name, err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT column_name, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`,
		schema.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", schema.Name, err)
	}
	defer rows.Close()

	var live []liveColumn
	for rows.Next() {
		var name, nullable string
		if err := rows.Scan(&name, &nullable); err != nil {
			return fmt.Errorf("failed to scan column of %s: %w", schema.Name, err)
		}
		live = append(live, liveColumn{Name: name, Nullable: strings.EqualFold(nullable, "YES")})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", schema.Name, err)
	}
	return compareColumns(schema, live)
}

// InsertBatch implements Store.
func (p *Postgres) InsertBatch(ctx context.Context, schema types.TableSchema, rows []types.RawRecord) error {
	if len(rows) == 0 {
		return nil
	}
	args, err := insertArgs(schema, rows)
	if err != nil {
		return err
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op after commit

	width := len(schema.Columns)
	for _, c := range statementChunks(len(rows), width, postgresMaxParams) {
		query := insertSQL(schema, c[1]-c[0], dollar)
		if _, err := tx.Exec(ctx, query, args[c[0]*width:c[1]*width]...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", schema.Name, classifyPostgres(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch into %s: %w", schema.Name, err)
	}
	return nil
}

// CountRows implements Store.
func (p *Postgres) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// DropTable implements Store.
func (p *Postgres) DropTable(ctx context.Context, table string) error {
	if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

func classifyPostgres(err error) error {
	var pgErr *pgconn.PgError
	// Class 23: integrity constraint violation.
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	}
	return err
}
