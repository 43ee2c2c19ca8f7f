// Package mapper matches normalized source headers to destination table
// columns. The destination schema is the authority: headers without a home
// are recorded, never guessed into one.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"snapload/internal/header"
)

// DefaultAuditColumn is the timestamp column the loader stamps on every row
// when the destination table carries it.
const DefaultAuditColumn = "loaded_at"

// Reasons attached to ignored headers. These travel all the way to the
// caller, so they are stable strings rather than error values.
const (
	ReasonEmptyAfterSanitize = "empty-after-sanitize"
	ReasonNoDestination      = "no-matching-destination-column"
)

// ErrNoMappableColumns is returned by Map when not a single header found a
// destination column. Loading nothing is a caller mistake, not a quiet no-op.
var ErrNoMappableColumns = errors.New("no header maps to any destination column")

// Catalog is the slice of the store the mapper needs for schema discovery.
type Catalog interface {
	TableColumns(ctx context.Context, table string) ([]string, error)
}

// TableSchema is the live column set of the destination table, fetched fresh
// per load. The audit column is tracked separately and excluded from the
// mappable set: the loader owns it, source data never writes it.
type TableSchema struct {
	Table       string
	Columns     []string
	AuditColumn string
	HasAudit    bool

	mappable map[string]struct{}
}

// Has reports whether the schema carries a mappable column with that name.
func (s TableSchema) Has(column string) bool {
	_, ok := s.mappable[column]
	return ok
}

// DiscoverSchema reads the destination table's column list from the store's
// catalog. auditColumn defaults to DefaultAuditColumn when empty. The result
// is never cached: the schema may evolve between loads and the mapping must
// follow it.
func DiscoverSchema(ctx context.Context, cat Catalog, table, auditColumn string) (TableSchema, error) {
	if auditColumn == "" {
		auditColumn = DefaultAuditColumn
	}

	cols, err := cat.TableColumns(ctx, table)
	if err != nil {
		return TableSchema{}, fmt.Errorf("discover schema for %s: %w", table, err)
	}

	schema := TableSchema{
		Table:       table,
		Columns:     cols,
		AuditColumn: auditColumn,
		mappable:    make(map[string]struct{}, len(cols)),
	}
	for _, c := range cols {
		if c == auditColumn {
			schema.HasAudit = true
			continue
		}
		schema.mappable[c] = struct{}{}
	}
	return schema, nil
}

// Pair binds one normalized header to the destination column it will feed.
type Pair struct {
	Header header.Normalized
	Target string
}

// Ignored is a header that did not make it into the mapping, with the reason.
type Ignored struct {
	Header header.Normalized
	Reason string
}

// Mapping is the injective header→column assignment for one load. Pairs keep
// header order, which fixes the column order of every insert batch.
type Mapping struct {
	Pairs   []Pair
	Ignored []Ignored
}

// Targets returns the destination columns in pair order.
func (m Mapping) Targets() []string {
	out := make([]string, len(m.Pairs))
	for i, p := range m.Pairs {
		out[i] = p.Target
	}
	return out
}

// Keys returns the parse-time header keys in pair order.
func (m Mapping) Keys() []string {
	out := make([]string, len(m.Pairs))
	for i, p := range m.Pairs {
		out[i] = p.Header.Key
	}
	return out
}

// aliases corrects known spelling mismatches between sanitized source terms
// and destination column names. Spanish Jira exports label the same fields
// differently than the schema does; these pin them down.
var aliases = map[string]string{
	"clave_de_incidencia": "issue_key",
	"resumen":             "summary",
	"estado":              "status",
	"asignado":            "assignee",
	"responsable":         "assignee",
	"puntos_de_historia":  "story_points",
	"creado":              "created_at",
	"fecha_de_creacion":   "created_at",
	"actualizado":         "updated_at",
	"fecha_de_resolucion": "resolved_at",
	"epic_link":           "epic",
	"principal":           "epic",
}

// Map computes the injective assignment from headers to schema columns.
//
// Each header tries an ordered candidate list; the first candidate that
// exists in the schema and is still unclaimed wins. Earlier headers claim
// before later ones, so no column is ever fed twice. Headers that find
// nothing land in Ignored with a reason; only a fully empty mapping is an
// error.
func Map(headers []header.Normalized, schema TableSchema) (Mapping, error) {
	var m Mapping
	claimed := make(map[string]struct{}, len(headers))

	for _, h := range headers {
		if h.Base == "" {
			m.Ignored = append(m.Ignored, Ignored{Header: h, Reason: ReasonEmptyAfterSanitize})
			continue
		}

		target := ""
		for _, cand := range candidatesFor(h) {
			if _, taken := claimed[cand]; taken {
				continue
			}
			if schema.Has(cand) {
				target = cand
				break
			}
		}
		if target == "" {
			m.Ignored = append(m.Ignored, Ignored{Header: h, Reason: ReasonNoDestination})
			continue
		}

		claimed[target] = struct{}{}
		m.Pairs = append(m.Pairs, Pair{Header: h, Target: target})
	}

	if len(m.Pairs) == 0 {
		return m, ErrNoMappableColumns
	}
	return m, nil
}

// candidatesFor lists destination names to try, most specific first.
//
// Repeated headers cover both numbering conventions found in real schemas:
// zero-based (sprint, sprint1, sprint2) and one-based (sprint_1, sprint_2).
func candidatesFor(h header.Normalized) []string {
	var cands []string
	if alias, ok := aliases[h.Base]; ok {
		cands = append(cands, alias)
	}
	if h.Occurrence == 0 {
		return append(cands, h.Base)
	}
	n := strconv.Itoa(h.Occurrence)
	next := strconv.Itoa(h.Occurrence + 1)
	return append(cands,
		h.Base+n,
		h.Base+"_"+n,
		h.Base+next,
		h.Base+"_"+next,
	)
}
