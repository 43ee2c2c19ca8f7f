// Package ingest runs one CSV snapshot load end to end: header resolution,
// schema discovery, column mapping, the transactional replace, and the
// post-commit KPI rebuild.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"snapload/internal/dataset"
	"snapload/internal/kpi"
	"snapload/internal/loader"
	"snapload/internal/mapper"
	"snapload/internal/metrics"
	"snapload/internal/storage"
)

// Store is the slice of the storage backend one load needs.
type Store interface {
	TableColumns(ctx context.Context, table string) ([]string, error)
	ReplaceRows(ctx context.Context, req storage.ReplaceRequest) (int64, error)
	Exec(ctx context.Context, query string) error
}

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Pipeline holds the per-process collaborators. It is safe for concurrent
// Run calls; all per-load state lives in locals. Note that two concurrent
// loads against the same table serialize only at the database: the later
// commit wins the whole snapshot.
type Pipeline struct {
	Store       Store
	Artifacts   []kpi.Artifact
	Table       string
	AuditColumn string

	Logger  Logger
	Metrics metrics.Backend
}

// Result is the structured outcome of one load request.
//
// OK reports whether the load itself committed. A failed KPI rebuild leaves
// OK true: the rows are in the table regardless.
type Result struct {
	OK           bool
	JobID        string
	Rows         int64
	Columns      []string
	Ignored      []mapper.Ignored
	KpiCompleted []string
	Elapsed      time.Duration
}

func (p *Pipeline) logger() Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return nopLogger{}
}

func (p *Pipeline) metrics() metrics.Backend {
	if p.Metrics != nil {
		return p.Metrics
	}
	return metrics.Nop{}
}

// Run executes one load. Every error is one of the four kinds in errors.go;
// on an *ArtifactError the returned Result is still populated, because the
// load behind it committed.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset) (Result, error) {
	start := time.Now()
	log := p.logger()
	mx := p.metrics()

	res := Result{JobID: uuid.NewString()}

	fail := func(err error) (Result, error) {
		mx.IncCounter(metrics.LoadsTotal, 1, metrics.Labels{"status": "error"})
		mx.ObserveHistogram(metrics.LoadDurationSeconds, time.Since(start).Seconds(),
			metrics.Labels{"stage": "load", "status": "error"})
		res.Elapsed = time.Since(start)
		return res, err
	}

	if ds == nil || ds.Empty() {
		return fail(&ValidationError{Err: errors.New("dataset has no rows")})
	}

	log.Printf("stage=start job=%s table=%s headers=%d rows=%d",
		res.JobID, p.Table, len(ds.Headers), len(ds.Rows))

	schema, err := mapper.DiscoverSchema(ctx, p.Store, p.Table, p.AuditColumn)
	if err != nil {
		return fail(&SchemaError{Table: p.Table, Err: err})
	}
	log.Printf("stage=schema job=%s table=%s columns=%d audit=%v",
		res.JobID, p.Table, len(schema.Columns), schema.HasAudit)

	m, err := mapper.Map(ds.Headers, schema)
	res.Ignored = m.Ignored
	if err != nil {
		return fail(&ValidationError{Err: err})
	}
	log.Printf("stage=map job=%s table=%s mapped=%d ignored=%d",
		res.JobID, p.Table, len(m.Pairs), len(m.Ignored))

	rep, err := (&loader.Loader{Store: p.Store}).Load(ctx, schema, m, ds.Rows)
	if err != nil {
		return fail(&TransactionError{Table: p.Table, Err: err})
	}
	res.OK = true
	res.Rows = rep.Rows
	res.Columns = rep.Columns

	mx.IncCounter(metrics.LoadsTotal, 1, metrics.Labels{"status": "ok"})
	mx.IncCounter(metrics.RowsTotal, float64(rep.Rows), nil)
	mx.ObserveHistogram(metrics.LoadDurationSeconds, time.Since(start).Seconds(),
		metrics.Labels{"stage": "load", "status": "ok"})
	log.Printf("stage=load job=%s table=%s rows=%d columns=%d",
		res.JobID, p.Table, rep.Rows, len(rep.Columns))

	// The load is committed at this point. The rebuild runs outside it and
	// its failure only decorates the result.
	completed, err := kpi.Rebuild(ctx, p.Store, p.Artifacts)
	res.KpiCompleted = completed
	res.Elapsed = time.Since(start)
	if err != nil {
		mx.IncCounter(metrics.ArtifactsTotal, float64(len(completed)), metrics.Labels{"status": "ok"})
		mx.IncCounter(metrics.ArtifactsTotal, 1, metrics.Labels{"status": "error"})
		log.Printf("stage=kpi job=%s completed=%d err=%v", res.JobID, len(completed), err)
		return res, &ArtifactError{Completed: completed, Err: err}
	}
	if n := len(completed); n > 0 {
		mx.IncCounter(metrics.ArtifactsTotal, float64(n), metrics.Labels{"status": "ok"})
	}
	log.Printf("stage=done job=%s table=%s rows=%d elapsed=%s",
		res.JobID, p.Table, res.Rows, res.Elapsed.Round(time.Millisecond))

	return res, nil
}

// Describe renders a one-line human summary, used by the CLI.
func (r Result) Describe() string {
	return fmt.Sprintf("job=%s ok=%v rows=%d columns=%d ignored=%d kpi=%d elapsed=%s",
		r.JobID, r.OK, r.Rows, len(r.Columns), len(r.Ignored), len(r.KpiCompleted),
		r.Elapsed.Round(time.Millisecond))
}
