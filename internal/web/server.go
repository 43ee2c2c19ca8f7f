// Package web exposes the load pipeline over HTTP: one multipart upload
// endpoint and a health probe. Everything interesting happens in ingest;
// this layer only decodes bytes and shapes JSON.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"snapload/internal/dataset"
	"snapload/internal/ingest"
)

// DefaultMaxUploadBytes caps the accepted CSV size.
const DefaultMaxUploadBytes = 32 << 20

// Runner is the pipeline seam; *ingest.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, ds *dataset.Dataset) (ingest.Result, error)
}

// Pinger is the health-probe seam; storage.Snapshotter satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Runner Runner
	Pinger Pinger
	Log    *slog.Logger

	// MaxUploadBytes caps request body size; 0 means DefaultMaxUploadBytes.
	MaxUploadBytes int64
}

func (s *Server) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/loads", s.handleLoad)
	r.Get("/healthz", s.handleHealth)
	return r
}

type ignoredJSON struct {
	Header string `json:"header"`
	Reason string `json:"reason"`
}

type loadResponse struct {
	OK           bool             `json:"ok"`
	JobID        string           `json:"job_id,omitempty"`
	Rows         int64            `json:"rows"`
	Columns      []string         `json:"columns,omitempty"`
	Ignored      []ignoredJSON    `json:"ignored,omitempty"`
	KpiCompleted []string         `json:"kpi_completed,omitempty"`
	KpiError     string           `json:"kpi_error,omitempty"`
	ElapsedMS    int64            `json:"elapsed_ms"`
	Preview      []map[string]any `json:"preview,omitempty"`
	Error        string           `json:"error,omitempty"`
	ErrorKind    string           `json:"error_kind,omitempty"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, loadResponse{
			Error: "multipart field 'file' is required", ErrorKind: "validation",
		})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, loadResponse{
			Error: "read upload: " + err.Error(), ErrorKind: "validation",
		})
		return
	}

	ds, err := dataset.Decode(content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, loadResponse{
			Error: err.Error(), ErrorKind: "validation",
		})
		return
	}

	start := time.Now()
	res, runErr := s.Runner.Run(r.Context(), ds)

	resp := loadResponse{
		OK:           res.OK,
		JobID:        res.JobID,
		Rows:         res.Rows,
		Columns:      res.Columns,
		KpiCompleted: res.KpiCompleted,
		ElapsedMS:    res.Elapsed.Milliseconds(),
	}
	if resp.ElapsedMS == 0 {
		resp.ElapsedMS = time.Since(start).Milliseconds()
	}
	for _, ig := range res.Ignored {
		resp.Ignored = append(resp.Ignored, ignoredJSON{Header: ig.Header.Original, Reason: ig.Reason})
	}

	if runErr != nil {
		var aerr *ingest.ArtifactError
		if errors.As(runErr, &aerr) {
			// The load committed; only the derived views are stale.
			resp.KpiError = runErr.Error()
			resp.Preview = preview(ds)
			s.log().Warn("kpi rebuild failed", "job", res.JobID, "err", runErr)
			writeJSON(w, http.StatusOK, resp)
			return
		}

		status, kind := classify(runErr)
		resp.Error = runErr.Error()
		resp.ErrorKind = kind
		s.log().Error("load failed", "job", res.JobID, "kind", kind, "err", runErr)
		writeJSON(w, status, resp)
		return
	}

	resp.Preview = preview(ds)
	s.log().Info("load completed", "job", res.JobID, "rows", res.Rows,
		"columns", len(res.Columns), "ignored", len(res.Ignored))
	writeJSON(w, http.StatusOK, resp)
}

func classify(err error) (int, string) {
	var verr *ingest.ValidationError
	var serr *ingest.SchemaError
	var terr *ingest.TransactionError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation"
	case errors.As(err, &serr):
		return http.StatusConflict, "schema"
	case errors.As(err, &terr):
		return http.StatusInternalServerError, "transaction"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// preview returns up to three parsed rows keyed by header, so the caller can
// eyeball what the engine actually saw.
func preview(ds *dataset.Dataset) []map[string]any {
	n := len(ds.Rows)
	if n > 3 {
		n = 3
	}
	out := make([]map[string]any, 0, n)
	for _, row := range ds.Rows[:n] {
		m := make(map[string]any, len(ds.Headers))
		for _, h := range ds.Headers {
			if h.Position < len(row) {
				m[h.Key] = row[h.Position]
			}
		}
		out = append(out, m)
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Pinger != nil {
		if err := s.Pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded", "error": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
