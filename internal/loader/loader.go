// Package loader turns a mapped dataset into one transactional snapshot load.
package loader

import (
	"context"
	"fmt"

	"snapload/internal/mapper"
	"snapload/internal/storage"
)

// Store is the slice of the storage backend the loader uses.
type Store interface {
	ReplaceRows(ctx context.Context, req storage.ReplaceRequest) (int64, error)
}

// Report is what a committed load tells the caller.
type Report struct {
	Rows    int64
	Columns []string
	Ignored []mapper.Ignored
}

type Loader struct {
	Store Store
}

// Load projects rows into the mapping's column order and replaces the
// destination table's contents in one transaction. The store guarantees
// all-or-nothing; the loader just shapes the request.
func (l *Loader) Load(ctx context.Context, schema mapper.TableSchema, m mapper.Mapping, rows [][]any) (Report, error) {
	if len(m.Pairs) == 0 {
		return Report{}, fmt.Errorf("load %s: %w", schema.Table, mapper.ErrNoMappableColumns)
	}

	audit := ""
	if schema.HasAudit {
		audit = schema.AuditColumn
	}

	req := storage.ReplaceRequest{
		Table:       schema.Table,
		Columns:     m.Targets(),
		Rows:        Project(rows, m),
		AuditColumn: audit,
	}

	n, err := l.Store.ReplaceRows(ctx, req)
	if err != nil {
		return Report{}, fmt.Errorf("load %s: %w", schema.Table, err)
	}

	return Report{Rows: n, Columns: m.Targets(), Ignored: m.Ignored}, nil
}

// Project reorders each source row into the mapping's target-column order.
// Unmapped source columns are dropped here; the mapping's Ignored set has
// already accounted for them.
func Project(rows [][]any, m mapper.Mapping) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		projected := make([]any, len(m.Pairs))
		for j, p := range m.Pairs {
			if p.Header.Position < len(row) {
				projected[j] = row[p.Header.Position]
			}
		}
		out[i] = projected
	}
	return out
}
