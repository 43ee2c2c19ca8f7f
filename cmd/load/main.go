// Command load performs one snapshot load from a CSV file on disk and then
// rebuilds the KPI views. Connection settings fall back to the environment
// (same variables the server uses) when the flags are left empty.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"snapload/internal/config"
	"snapload/internal/dataset"
	"snapload/internal/ingest"
	"snapload/internal/kpi"
	"snapload/internal/storage"
	_ "snapload/internal/storage/mssql"
	_ "snapload/internal/storage/postgres"
	_ "snapload/internal/storage/sqlite"
)

func main() {
	var (
		file      = flag.String("file", "", "CSV file to load (required)")
		store     = flag.String("store", "", "storage backend: postgres, mssql, sqlite (default from env)")
		dsn       = flag.String("dsn", "", "connection string (default from env)")
		table     = flag.String("table", "", "destination table (default from env)")
		audit     = flag.String("audit-column", "", "audit timestamp column (default from env)")
		artifacts = flag.String("artifacts", "", "directory of KPI artifacts (default: built-in set)")
		skipKpi   = flag.Bool("skip-kpi", false, "load only, do not rebuild KPI views")
		timeout   = flag.Duration("timeout", 5*time.Minute, "overall deadline")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "load ", log.LstdFlags)

	if *file == "" {
		logger.Println("missing -file")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(logger, *file, *store, *dsn, *table, *audit, *artifacts, *skipKpi, *timeout); err != nil {
		logger.Printf("stage=abort err=%v", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger, file, storeKind, dsn, table, audit, artifactsDir string, skipKpi bool, timeout time.Duration) error {
	cfg, cfgErr := config.Load()
	if storeKind == "" {
		storeKind = cfg.StoreKind
	}
	if storeKind == "" {
		storeKind = "postgres"
	}
	if dsn == "" {
		dsn = cfg.DSN
	}
	if table == "" {
		table = cfg.Table
	}
	if audit == "" {
		audit = cfg.AuditColumn
	}
	if dsn == "" {
		if cfgErr != nil {
			return cfgErr
		}
		return errors.New("no DSN: pass -dsn or set the environment")
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	ds, err := dataset.Decode(content)
	if err != nil {
		return err
	}
	logger.Printf("stage=parse file=%s headers=%d rows=%d", file, len(ds.Headers), len(ds.Rows))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, err := storage.New(ctx, storage.Config{Kind: storeKind, DSN: dsn})
	if err != nil {
		return err
	}
	defer st.Close()

	var arts []kpi.Artifact
	if !skipKpi {
		if artifactsDir != "" {
			arts, err = kpi.LoadArtifacts(os.DirFS(artifactsDir))
		} else {
			arts, err = kpi.Default()
		}
		if err != nil {
			return err
		}
	}

	p := &ingest.Pipeline{
		Store:       st,
		Artifacts:   arts,
		Table:       table,
		AuditColumn: audit,
		Logger:      logger,
	}

	res, err := p.Run(ctx, ds)
	if err != nil {
		var aerr *ingest.ArtifactError
		if errors.As(err, &aerr) {
			// Rows are committed; surface the stale views but exit clean.
			logger.Printf("stage=kpi-warning completed=%d err=%v", len(aerr.Completed), err)
			fmt.Println(res.Describe())
			return nil
		}
		return err
	}

	fmt.Println(res.Describe())
	for _, ig := range res.Ignored {
		logger.Printf("stage=ignored header=%q reason=%s", ig.Header.Original, ig.Reason)
	}
	return nil
}
