package ingest

import "fmt"

// The four error kinds a load request can end with. Each one wraps the
// underlying cause so callers can still errors.Is/As into it; the original
// message is never masked.

// ValidationError means the input itself is unusable: zero rows, or no
// header mapped to any destination column. No work was performed.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validation: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// SchemaError means the destination table is missing or reports no columns.
// Raised before any transaction begins.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("schema %s: %v", e.Table, e.Err) }
func (e *SchemaError) Unwrap() error { return e.Err }

// TransactionError means a statement inside the load transaction failed and
// the whole load rolled back. The destination table is untouched.
type TransactionError struct {
	Table string
	Err   error
}

func (e *TransactionError) Error() string { return fmt.Sprintf("load %s: %v", e.Table, e.Err) }
func (e *TransactionError) Unwrap() error { return e.Err }

// ArtifactError means the post-commit KPI rebuild failed partway. The load
// itself committed and stays committed; Completed lists the artifacts that
// ran before the failure.
type ArtifactError struct {
	Completed []string
	Err       error
}

func (e *ArtifactError) Error() string { return "kpi rebuild: " + e.Err.Error() }
func (e *ArtifactError) Unwrap() error { return e.Err }
