// Package storage defines the backend-agnostic contract for snapshot loads and
// the batch-size arithmetic shared by every backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to construct a Snapshotter.
//
// Kind must match a registered backend kind ("postgres", "mssql", "sqlite").
// DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// ErrNoSuchTable is wrapped by TableColumns when the destination table does
// not exist (or reports no columns, which for this system is the same defect).
var ErrNoSuchTable = errors.New("destination table not found")

// ReplaceRequest describes one full-replacement snapshot load.
//
// Columns is the realized destination column list in insert order; every row
// in Rows is aligned with it. AuditColumn, when non-empty, names an extra
// destination column the backend populates with its own current-timestamp
// expression rather than a bound value.
type ReplaceRequest struct {
	Table       string
	Columns     []string
	Rows        [][]any
	AuditColumn string
}

// Snapshotter is the backend-agnostic interface the ingestion engine needs.
//
// IMPORTANT: This interface is intentionally minimal. Each backend implements
// the same semantics in its own idiomatic way (pgx transactions, database/sql
// transactions, dialect-specific truncate and timestamp expressions).
type Snapshotter interface {
	// Close releases backend resources. Treat as "call once" at shutdown.
	Close()

	// Ping verifies connectivity. Used by health probes.
	Ping(ctx context.Context) error

	// TableColumns returns the live column names of a table, in catalog
	// order, reading the store's metadata catalog. It wraps ErrNoSuchTable
	// when the table is absent or has zero columns.
	TableColumns(ctx context.Context, table string) ([]string, error)

	// ReplaceRows atomically replaces the table's contents: truncate
	// (resetting any identity counter) plus batched multi-row inserts, all
	// inside one transaction. On any error the transaction is rolled back
	// and the table is left exactly as it was. Returns rows inserted.
	ReplaceRows(ctx context.Context, req ReplaceRequest) (int64, error)

	// Exec runs a single statement outside any snapshot transaction.
	// The KPI rebuild stage uses this for view definitions.
	Exec(ctx context.Context, sql string) error
}

// ---- backend factories (one registry entry per storage kind) ----

type factory func(ctx context.Context, cfg Config) (Snapshotter, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a snapshot backend under a kind. Called from init()
// in backend packages. Registering the same kind twice panics, intentionally,
// to fail fast on ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Snapshotter using the registered backend factory.
func New(ctx context.Context, cfg Config) (Snapshotter, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
