package db

import (
	"fmt"
	"strings"

	"github.com/jonathan/dump-loader/internal/types"
)

// quoteIdent quotes an identifier; column names such as Index are reserved words.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// createTableSQL renders an idempotent CREATE TABLE statement with TEXT columns.
func createTableSQL(schema types.TableSchema) string {
	defs := make([]string, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		def := quoteIdent(c.Name) + " TEXT"
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.Name == schema.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdent(schema.Name), strings.Join(defs, ",\n\t"))
}

// Bind parameter limits of a single statement.
const (
	sqliteMaxParams   = 32766
	postgresMaxParams = 65535
)

// statementChunks splits n rows of the given width into consecutive
// [start, end) ranges whose parameter count stays within maxParams.
func statementChunks(n, width, maxParams int) [][2]int {
	per := max(maxParams/max(width, 1), 1)
	chunks := make([][2]int, 0, (n+per-1)/per)
	for start := 0; start < n; start += per {
		chunks = append(chunks, [2]int{start, min(start+per, n)})
	}
	return chunks
}

// insertSQL renders a multi-row INSERT for n rows. placeholder receives the
// 1-based argument index.
func insertSQL(schema types.TableSchema, n int, placeholder func(int) string) string {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = quoteIdent(c.Name)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", quoteIdent(schema.Name), strings.Join(cols, ", "))

	arg := 1
	for row := 0; row < n; row++ {
		if row > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for col := range schema.Columns {
			if col > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholder(arg))
			arg++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// insertArgs flattens rows into statement arguments. Empty values in nullable
// columns become NULL.
func insertArgs(schema types.TableSchema, rows []types.RawRecord) ([]any, error) {
	args := make([]any, 0, len(rows)*len(schema.Columns))
	for _, rec := range rows {
		if len(rec.Fields) != len(schema.Columns) {
			return nil, fmt.Errorf("record at line %d has %d fields, table %s has %d columns",
				rec.Line, len(rec.Fields), schema.Name, len(schema.Columns))
		}
		for i, c := range schema.Columns {
			v := rec.Fields[i]
			if c.Nullable && v == "" {
				args = append(args, nil)
				continue
			}
			args = append(args, v)
		}
	}
	return args, nil
}

func incompatible(table, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrIncompatibleSchema, table, fmt.Sprintf(format, args...))
}

func questionMark(int) string { return "?" }

func dollar(i int) string { return fmt.Sprintf("$%d", i) }
