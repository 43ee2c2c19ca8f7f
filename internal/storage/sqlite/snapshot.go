// Package sqlite implements storage.Snapshotter on SQLite.
//
// Used for local/file targets: a snapshot load against a .db file needs no
// server at all, which keeps development and CI honest.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"snapload/internal/storage"
)

func init() {
	storage.Register("sqlite", New)
}

// Modern SQLite allows 32766 bound parameters per statement; we budget 30000.
var limits = storage.Limits{ParamBudget: 30000, RowCap: 1000}

// Snapshot implements storage.Snapshotter for SQLite via database/sql.
type Snapshot struct {
	db *sql.DB
}

func New(ctx context.Context, cfg storage.Config) (storage.Snapshotter, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
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

// TableColumns reads the column list via the table_info pragma.
func (s *Snapshot) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
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

	// pragma_table_info returns zero rows for missing tables instead of an
	// error, which folds neatly into the "no discoverable columns" case.
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, storage.ErrNoSuchTable)
	}
	return cols, nil
}

// ReplaceRows replaces the table's contents in one transaction.
//
// SQLite has no TRUNCATE; DELETE without a WHERE clause takes the truncate
// optimization path. The sqlite_sequence reset restores AUTOINCREMENT
// counters, matching the identity restart on the server backends.
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
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+ident(req.Table)); err != nil {
		return 0, fmt.Errorf("ReplaceRows: clear %s: %w", req.Table, err)
	}

	// sqlite_sequence only exists once some table uses AUTOINCREMENT.
	var haveSeq int
	err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'`,
	).Scan(&haveSeq)
	if err != nil {
		return 0, fmt.Errorf("ReplaceRows: check sqlite_sequence: %w", err)
	}
	if haveSeq > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = ?`, req.Table); err != nil {
			return 0, fmt.Errorf("ReplaceRows: reset sequence for %s: %w", req.Table, err)
		}
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

// buildInsertSQL constructs one multi-row INSERT with ? placeholders.
// The audit column is stamped with CURRENT_TIMESTAMP inline.
func buildInsertSQL(table string, columns []string, rows [][]any, auditColumn string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident(table))
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
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, row[j])
		}
		if auditColumn != "" {
			b.WriteString(", CURRENT_TIMESTAMP")
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// ident quotes an identifier; SQLite uses double-quoted identifiers.
func ident(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

var _ storage.Snapshotter = (*Snapshot)(nil)
