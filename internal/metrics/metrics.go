// Package metrics defines the minimal instrumentation surface the load
// pipeline emits into. Backends live in subpackages; the core only ever
// depends on this interface.
package metrics

// Labels are free-form metric dimensions (e.g. {"stage": "load", "status": "ok"}).
type Labels map[string]string

// Backend receives counter increments and histogram observations. All
// methods must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names emitted by the pipeline.
const (
	LoadsTotal          = "snapload_loads_total"
	RowsTotal           = "snapload_rows_total"
	BatchesTotal        = "snapload_batches_total"
	LoadDurationSeconds = "snapload_load_duration_seconds"
	ArtifactsTotal      = "snapload_kpi_artifacts_total"
)

// Nop discards everything. Useful as a default so callers never nil-check.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
