// Package mssql implements storage.Snapshotter on Microsoft SQL Server.
//
// SQL Server has a hard limit of 2100 bound parameters per statement, far
// below Postgres's 65535, so this backend is where the batch sizing math
// earns its keep: a 60-column load fits only 33 rows per statement here.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"snapload/internal/storage"
)

func init() {
	storage.Register("mssql", New)
}

// We stay comfortably below the 2100-parameter ceiling.
var limits = storage.Limits{ParamBudget: 2000, RowCap: 1000}

// Snapshot implements storage.Snapshotter for SQL Server via database/sql.
type Snapshot struct {
	db *sql.DB
}

// New opens a SQL Server connection and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Snapshotter, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Snapshot{db: db}, nil
}

func (s *Snapshot) Close() { _ = s.db.Close() }

func (s *Snapshot) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// TableColumns reads the live column list from INFORMATION_SCHEMA.
func (s *Snapshot) TableColumns(ctx context.Context, table string) ([]string, error) {
	schema, name := splitQualifiedName(table)
	if schema == "" {
		schema = "dbo"
	}

	const q = `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`

	rows, err := s.db.QueryContext(ctx, q, schema, name)
	if err != nil {
		return nil, fmt.Errorf("TableColumns: query catalog for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("TableColumns: scan %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TableColumns: rows %s: %w", table, err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, storage.ErrNoSuchTable)
	}
	return cols, nil
}

// ReplaceRows truncates and reloads the table in one transaction.
// TRUNCATE TABLE reseeds identity columns on SQL Server, so no explicit
// reseed statement is needed.
func (s *Snapshot) ReplaceRows(ctx context.Context, req storage.ReplaceRequest) (int64, error) {
	if req.Table == "" || len(req.Columns) == 0 {
		return 0, fmt.Errorf("ReplaceRows: table and columns are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ReplaceRows: begin: %w", err)
	}

	total, err := replaceInTx(ctx, tx, req)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ReplaceRows: commit: %w", err)
	}
	return total, nil
}

func replaceInTx(ctx context.Context, tx *sql.Tx, req storage.ReplaceRequest) (int64, error) {
	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+tableIdent(req.Table)); err != nil {
		return 0, fmt.Errorf("ReplaceRows: truncate %s: %w", req.Table, err)
	}

	var total int64
	per := storage.RowsPerBatch(len(req.Columns), limits)
	for _, c := range storage.Chunks(len(req.Rows), per) {
		part := req.Rows[c[0]:c[1]]
		q, args := buildInsertSQL(req.Table, req.Columns, part, req.AuditColumn)

		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("ReplaceRows: insert rows %d..%d into %s: %w", c[0], c[1], req.Table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (s *Snapshot) Exec(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// buildInsertSQL constructs one multi-row INSERT with @pN placeholders.
// The audit column, when present, is filled with SYSDATETIMEOFFSET() inline
// so it never consumes a bound parameter.
func buildInsertSQL(table string, columns []string, rows [][]any, auditColumn string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	if auditColumn != "" {
		b.WriteString(", ")
		b.WriteString(ident(auditColumn))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		if auditColumn != "" {
			b.WriteString(", SYSDATETIMEOFFSET()")
		}
		b.WriteString(")")
	}

	return b.String(), args
}

func ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// tableIdent bracket-quotes a possibly schema-qualified name, e.g.
// "dbo.issues" -> "[dbo].[issues]".
func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = ident(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

var _ storage.Snapshotter = (*Snapshot)(nil)
