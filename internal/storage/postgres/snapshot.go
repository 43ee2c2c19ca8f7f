// Package postgres implements storage.Snapshotter on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"snapload/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

// limits: Postgres caps bound parameters at 65535 per statement. We budget
// 60000 and cap rows per statement at 1000.
var limits = storage.Limits{ParamBudget: 60000, RowCap: 1000}

// PgxPool is the subset of pgxpool.Pool the snapshotter uses. Tests substitute
// pgxmock for it; production always passes the real pool.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// Snapshot implements storage.Snapshotter for Postgres.
type Snapshot struct {
	pool PgxPool
}

// New creates a Postgres-backed Snapshot from a DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Snapshotter, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Snapshot{pool: pool}, nil
}

// NewWithPool wraps an existing pool (or a mock in tests).
func NewWithPool(pool PgxPool) *Snapshot {
	return &Snapshot{pool: pool}
}

func (s *Snapshot) Close() { s.pool.Close() }

func (s *Snapshot) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// TableColumns reads the live column list from information_schema.
//
// No caching: the schema is the authority the column mapper defers to, and it
// may evolve between loads, so every load pays for one catalog read.
func (s *Snapshot) TableColumns(ctx context.Context, table string) ([]string, error) {
	schema, name := splitQualifiedName(table)
	if schema == "" {
		schema = "public"
	}

	const q = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := s.pool.Query(ctx, q, schema, name)
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

// ReplaceRows performs the snapshot replace inside one transaction:
// TRUNCATE ... RESTART IDENTITY followed by batched multi-row inserts.
//
// Batches are issued strictly in order on the same transaction; on any error
// the deferred rollback restores the table to its pre-call contents.
func (s *Snapshot) ReplaceRows(ctx context.Context, req storage.ReplaceRequest) (int64, error) {
	if req.Table == "" || len(req.Columns) == 0 {
		return 0, fmt.Errorf("ReplaceRows: table and columns are required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ReplaceRows: begin: %w", err)
	}

	total, err := replaceInTx(ctx, tx, req)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ReplaceRows: commit: %w", err)
	}
	return total, nil
}

func replaceInTx(ctx context.Context, tx pgx.Tx, req storage.ReplaceRequest) (int64, error) {
	truncate := "TRUNCATE TABLE " + tableIdent(req.Table) + " RESTART IDENTITY"
	if _, err := tx.Exec(ctx, truncate); err != nil {
		return 0, fmt.Errorf("ReplaceRows: truncate %s: %w", req.Table, err)
	}

	var total int64
	per := storage.RowsPerBatch(len(req.Columns), limits)
	for _, c := range storage.Chunks(len(req.Rows), per) {
		part := req.Rows[c[0]:c[1]]
		sql, args := buildInsertSQL(req.Table, req.Columns, part, req.AuditColumn)

		cmd, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("ReplaceRows: insert rows %d..%d into %s: %w", c[0], c[1], req.Table, err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

func (s *Snapshot) Exec(ctx context.Context, sql string) error {
	_, err := s.pool.Exec(ctx, sql)
	return err
}

// buildInsertSQL constructs one multi-row INSERT statement and its args.
//
// It is pure and deterministic so placeholder numbering and audit-column
// handling can be unit tested without a database. When auditColumn is set it
// is appended to the column list and each tuple ends with now() instead of a
// bound parameter, so the audit stamp costs zero parameters per row.
func buildInsertSQL(table string, columns []string, rows [][]any, auditColumn string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	if auditColumn != "" {
		b.WriteString(", ")
		b.WriteString(pgIdent(auditColumn))
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
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		if auditColumn != "" {
			b.WriteString(", now()")
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// pgIdent quotes a single identifier for Postgres.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// tableIdent quotes a possibly schema-qualified table name.
func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = pgIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// splitQualifiedName splits "public.issues" into ("public", "issues").
// Unqualified names return an empty schema. Only a single dot is handled;
// anything more complex is treated as unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

var _ storage.Snapshotter = (*Snapshot)(nil)
