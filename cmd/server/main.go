// Command server runs the CSV snapshot load service.
//
// Configuration comes from the environment (and an optional .env file); see
// internal/config. The storage backend, destination table, and KPI artifact
// set are fixed at startup and shared by every request.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snapload/internal/config"
	"snapload/internal/ingest"
	"snapload/internal/kpi"
	"snapload/internal/metrics"
	"snapload/internal/metrics/datadog"
	"snapload/internal/storage"
	_ "snapload/internal/storage/mssql"
	_ "snapload/internal/storage/postgres"
	_ "snapload/internal/storage/sqlite"
	"snapload/internal/web"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, storage.Config{Kind: cfg.StoreKind, DSN: cfg.DSN})
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("store ready", "kind", cfg.StoreKind, "table", cfg.Table)

	artifacts, err := loadArtifacts(cfg.ArtifactsDir)
	if err != nil {
		return err
	}
	log.Info("kpi artifacts loaded", "count", len(artifacts))

	var mx metrics.Backend = metrics.Nop{}
	if cfg.DatadogEnabled {
		dd, err := datadog.NewBackend(ctx, datadog.Options{
			JobName: cfg.DatadogJob,
			Tags:    datadog.ParseTagsCSV(cfg.DatadogTags),
		})
		if err != nil {
			return err
		}
		defer func() { _ = dd.Close() }()
		mx = dd
		log.Info("datadog metrics enabled", "job", cfg.DatadogJob)
	}

	pipeline := &ingest.Pipeline{
		Store:       store,
		Artifacts:   artifacts,
		Table:       cfg.Table,
		AuditColumn: cfg.AuditColumn,
		Logger:      slogPrintf{log},
		Metrics:     mx,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           (&web.Server{Runner: pipeline, Pinger: store, Log: log}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func loadArtifacts(dir string) ([]kpi.Artifact, error) {
	if dir == "" {
		return kpi.Default()
	}
	return kpi.LoadArtifacts(os.DirFS(dir))
}

// slogPrintf adapts slog to the pipeline's Printf-style logger.
type slogPrintf struct {
	log *slog.Logger
}

func (s slogPrintf) Printf(format string, v ...any) {
	s.log.Info(fmt.Sprintf(format, v...))
}
