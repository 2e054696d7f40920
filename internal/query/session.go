// Package query runs ad-hoc read-only SQL over a built warehouse. Produced
// tables are exposed as DuckDB views over their CSV files; nothing is
// persisted in DuckDB.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// Session is an in-memory DuckDB connection with one view per produced table.
type Session struct {
	db     *sql.DB
	tables []string
	logger *slog.Logger
}

// Open creates a session over every table present under the layout root.
func Open(ctx context.Context, layout warehouse.Layout, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	s := &Session{db: db, logger: logger}
	for _, e := range warehouse.Catalog {
		path, err := layout.Path(e.Name)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			logger.Debug("table not built, skipping view", "table", e.Name)
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		stmt := fmt.Sprintf( //nolint:gosec // table names come from the catalog
			"CREATE VIEW %s AS SELECT * FROM read_csv_auto('%s', header=true)",
			e.Name, strings.ReplaceAll(abs, "'", "''"))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create view %s: %w", e.Name, err)
		}
		s.tables = append(s.tables, e.Name)
	}
	if len(s.tables) == 0 {
		_ = db.Close()
		return nil, fmt.Errorf("no warehouse tables found under %s", layout.Root)
	}
	logger.Debug("opened query session", "views", len(s.tables))
	return s, nil
}

// Tables returns the names of the available views in catalog order.
func (s *Session) Tables() []string {
	return append([]string(nil), s.tables...)
}

// Close releases the DuckDB connection.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Result is a fully materialized query result with every cell formatted.
type Result struct {
	Columns []string
	Rows    [][]string
	Elapsed time.Duration
}

var readOnlyKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "FROM": true, "VALUES": true, "TABLE": true,
	"DESCRIBE": true, "SHOW": true, "SUMMARIZE": true,
}

// readOnlyPragmas only report on the session.
var readOnlyPragmas = map[string]bool{
	"table_info": true, "show": true, "show_tables": true, "show_tables_expanded": true,
	"database_list": true, "database_size": true, "storage_info": true,
	"version": true, "platform": true, "functions": true,
}

// CheckReadOnly rejects statements that would modify the session.
func CheckReadOnly(query string) error {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	if q == "" {
		return fmt.Errorf("empty query")
	}
	if strings.Contains(q, ";") {
		return fmt.Errorf("only one statement per query is allowed")
	}
	fields := strings.Fields(q)
	first := strings.TrimLeft(strings.ToUpper(fields[0]), "(")
	switch {
	case readOnlyKeywords[first]:
		return nil
	case first == "EXPLAIN":
		rest := fields[1:]
		if len(rest) > 0 && strings.EqualFold(rest[0], "ANALYZE") {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return fmt.Errorf("EXPLAIN needs a statement")
		}
		return CheckReadOnly(strings.Join(rest, " "))
	case first == "PRAGMA":
		return checkPragma(strings.TrimSpace(q[len(fields[0]):]))
	}
	return fmt.Errorf("only read-only statements are allowed, got %s", first)
}

// checkPragma allows reporting pragmas and rejects assignments.
func checkPragma(body string) error {
	if strings.Contains(body, "=") {
		return fmt.Errorf("only read-only statements are allowed, got PRAGMA assignment")
	}
	name := strings.ToLower(strings.TrimSpace(body))
	if i := strings.IndexAny(name, "( "); i >= 0 {
		name = name[:i]
	}
	if !readOnlyPragmas[name] {
		return fmt.Errorf("only read-only statements are allowed, got PRAGMA %s", name)
	}
	return nil
}

// Query runs a read-only statement.
func (s *Session) Query(ctx context.Context, query string) (*Result, error) {
	if err := CheckReadOnly(query); err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	res := &Result{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = formatCell(v)
		}
		res.Rows = append(res.Rows, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	res.Elapsed = time.Since(start)
	s.logger.Debug("query complete", "rows", len(res.Rows), "elapsed", res.Elapsed)
	return res, nil
}

// formatCell renders a driver value the way the warehouse writes it.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		if x.Equal(core.Day(x)) {
			return x.Format(core.DateLayout)
		}
		return x.UTC().Format(table.TimestampLayout)
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
