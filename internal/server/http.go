package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/ingest"
	"github.com/joseph-ayodele/notetasks/internal/metrics"
)

// JobReader is the read side shared by the HTTP and gRPC transports.
type JobReader interface {
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListTasks(ctx context.Context, jobID uuid.UUID) ([]entity.Task, error)
}

// JobLister backs the job listing endpoint.
type JobLister interface {
	JobReader
	ListJobs(ctx context.Context, status constants.JobStatus, limit int) ([]entity.Job, error)
}

type Uploader interface {
	Upload(ctx context.Context, req ingest.UploadRequest) (ingest.IngestionResult, error)
}

type Exporter interface {
	ExportJobTasksXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error)
}

// HTTPDeps wires the HTTP handlers.
type HTTPDeps struct {
	Jobs     JobLister
	Uploader Uploader
	Exporter Exporter
	// Health reports whether the service can take traffic.
	Health         func(ctx context.Context) error
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type httpHandler struct {
	HTTPDeps
}

const (
	uploadField      = "image"
	defaultListLimit = 50
	maxListLimit     = 500
)

// NewHTTPHandler builds the chi router for the REST API.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = constants.MaxUploadBytesDefault
	}
	h := &httpHandler{HTTPDeps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", h.upload)
		r.Get("/jobs", h.listJobs)
		r.Get("/status/{id}", h.status)
		r.Get("/jobs/{id}", h.jobDetail)
		r.Get("/jobs/{id}/export.xlsx", h.export)
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", h.healthz)
	return r
}

func (h *httpHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		log := h.Logger.With("request_id", reqID)
		ctx := common.WithLogger(common.WithRequestID(r.Context(), reqID), log)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		log.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *httpHandler) upload(w http.ResponseWriter, r *http.Request) {
	log := common.LoggerFromContext(r.Context(), h.Logger)
	// multipart framing on top of the image itself
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+1<<20)

	file, hdr, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, common.NewInvalidInputError(fmt.Sprintf("image exceeds %d bytes", h.MaxUploadBytes)))
			return
		}
		h.writeError(w, r, common.NewInvalidInputError("multipart field \"image\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.MaxUploadBytes+1))
	if err != nil {
		h.writeError(w, r, common.NewInvalidInputError("could not read image: "+err.Error()))
		return
	}

	res, err := h.Uploader.Upload(r.Context(), ingest.UploadRequest{
		Filename: hdr.Filename,
		Data:     data,
		TraceID:  common.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		log.Error("http.upload.failed", "filename", hdr.Filename, "error", err)
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, map[string]any{
		"transaction_id": res.JobID,
		"status":         res.Status,
		"message":        "Image uploaded successfully. Processing started.",
	})
}

func (h *httpHandler) status(w http.ResponseWriter, r *http.Request) {
	job, tasks, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status == constants.JobStatusCompleted {
		h.writeJSON(w, r, http.StatusOK, newJobDetailView(job, tasks))
		return
	}
	h.writeJSON(w, r, http.StatusOK, newJobStatusView(job, len(tasks)))
}

func (h *httpHandler) jobDetail(w http.ResponseWriter, r *http.Request) {
	job, tasks, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, newJobDetailView(job, tasks))
}

func (h *httpHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st := constants.JobStatus(q.Get("status"))
	if st != "" && !st.IsValid() {
		h.writeError(w, r, common.NewInvalidInputError(fmt.Sprintf("unknown status %q", st)))
		return
	}
	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			h.writeError(w, r, common.NewInvalidInputError(fmt.Sprintf("limit must be between 1 and %d", maxListLimit)))
			return
		}
		limit = n
	}
	jobs, err := h.Jobs.ListJobs(r.Context(), st, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]JobStatusView, 0, len(jobs))
	for i := range jobs {
		v := newJobStatusView(&jobs[i], 0)
		v.TaskCount = nil
		out = append(out, v)
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"jobs": out})
}

func (h *httpHandler) export(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.Exporter.ExportJobTasksXLSX(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "tasks-"+id.String()+".xlsx"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		common.LoggerFromContext(r.Context(), h.Logger).Warn("http.export.write_failed", "error", err)
	}
}

func (h *httpHandler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			h.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) loadJob(w http.ResponseWriter, r *http.Request) (*entity.Job, []entity.Task, bool) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return nil, nil, false
	}
	job, err := h.Jobs.GetJob(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, nil, false
	}
	tasks, err := h.Jobs.ListTasks(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, nil, false
	}
	return job, tasks, true
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.NewInvalidInputError(name + " must be a UUID")
	}
	return id, nil
}

func (h *httpHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		common.LoggerFromContext(r.Context(), h.Logger).Error("http.error", "status", code, "error", err)
		msg = http.StatusText(code)
	}
	h.writeJSON(w, r, code, map[string]string{"error": msg})
}

func (h *httpHandler) writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		common.LoggerFromContext(r.Context(), h.Logger).Warn("http.encode.failed", "error", err)
	}
}
