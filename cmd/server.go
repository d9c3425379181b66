package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/leadimport"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/monitoring"
	"github.com/sells-group/lead-enrich/internal/pipeline"
	"github.com/sells-group/lead-enrich/internal/store"
)

const maxUploadBytes = 32 << 20

// jobQueue accepts enrichment runs; *pipeline.Runner implements it.
type jobQueue interface {
	Submit(ctx context.Context, listID int64) error
}

// server holds the dependencies of the HTTP API.
type server struct {
	store     store.Store
	queue     jobQueue
	collector *monitoring.Collector
	uploadDir string
	gatherer  prometheus.Gatherer
	metrics   *httpMetrics
}

func newServer(st store.Store, q jobQueue, c *monitoring.Collector, uploadDir string, reg *prometheus.Registry) *server {
	return &server{
		store:     st,
		queue:     q,
		collector: c,
		uploadDir: uploadDir,
		gatherer:  reg,
		metrics:   newHTTPMetrics(reg),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	r.Use(s.metrics.middleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Route("/lists", func(r chi.Router) {
			r.Get("/", s.handleListLists)
			r.Post("/", s.handleUpload)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/status", s.handleStatus)
				r.Get("/leads", s.handleLeads)
				r.Post("/enrich", s.handleEnrich)
			})
		})
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.store.ListLists(r.Context())
	if err != nil {
		s.internalError(w, "list lists", err)
		return
	}
	if lists == nil {
		lists = []model.List{}
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	original := filepath.Base(header.Filename)
	if !leadimport.Supported(original) {
		writeError(w, http.StatusBadRequest, "only .csv and .xlsx files are allowed")
		return
	}

	path, err := s.saveUpload(file, original)
	if err != nil {
		s.internalError(w, "save upload", err)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = original
	}
	res, err := leadimport.Import(r.Context(), s.store, path, leadimport.Options{
		Name:     name,
		Filename: filepath.Base(path),
	})
	if leadimport.IsFileError(err) {
		zap.L().Warn("import rejected", zap.String("file", original), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// saveUpload stores the upload as <uuid hex>_<name> under the upload dir.
func (s *server) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", eris.Wrap(err, "create upload dir")
	}
	stored := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + name
	path := filepath.Join(s.uploadDir, stored)

	dst, err := os.Create(path) //nolint:gosec
	if err != nil {
		return "", eris.Wrap(err, "create upload file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", eris.Wrap(err, "write upload file")
	}
	if err := dst.Close(); err != nil {
		return "", eris.Wrap(err, "close upload file")
	}
	return path, nil
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := listID(w, r)
	if !ok {
		return
	}
	p, err := s.store.ListProgress(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	if err != nil {
		s.internalError(w, "list progress", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleLeads(w http.ResponseWriter, r *http.Request) {
	id, ok := listID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetList(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "list not found")
			return
		}
		s.internalError(w, "get list", err)
		return
	}
	leads, err := s.store.ListLeads(r.Context(), id)
	if err != nil {
		s.internalError(w, "list leads", err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	id, ok := listID(w, r)
	if !ok {
		return
	}
	l, err := s.store.GetList(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	if err != nil {
		s.internalError(w, "get list", err)
		return
	}
	if l.EnrichmentStatus.IsEnriching() {
		writeError(w, http.StatusConflict, "enrichment already running")
		return
	}

	err = s.queue.Submit(r.Context(), id)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, "enrichment already queued")
		return
	case errors.Is(err, pipeline.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "enrichment queue is full")
		return
	case err != nil:
		s.internalError(w, "submit enrichment", err)
		return
	}

	zap.L().Info("enrichment queued", zap.Int64("list_id", id))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"list_id": id,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context())
	if err != nil {
		s.internalError(w, "collect stats", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) internalError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("api: "+op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func listID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid list id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
