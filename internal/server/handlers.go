package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/filestodata/filestodata/constants"
	"github.com/filestodata/filestodata/internal/common"
	"github.com/filestodata/filestodata/internal/entity"
	"github.com/filestodata/filestodata/internal/metrics"
	"github.com/filestodata/filestodata/internal/queue"
	"github.com/filestodata/filestodata/internal/repository"
	"github.com/filestodata/filestodata/internal/storage"
)

// maxUploadBytes caps multipart upload memory; larger parts spill to disk.
const maxUploadBytes = 32 << 20

// Handler implements the job API: create, list, inspect, edit results.
type Handler struct {
	jobs   repository.JobRepository
	store  storage.ObjectStore
	queue  queue.Queue
	logger *slog.Logger
}

func NewHandler(jobs repository.JobRepository, store storage.ObjectStore, q queue.Queue, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{jobs: jobs, store: store, queue: q, logger: logger}
}

type createJobResponse struct {
	JobID     uuid.UUID           `json:"job_id"`
	Mode      constants.JobMode   `json:"mode"`
	Status    constants.JobStatus `json:"status"`
	FileName  string              `json:"file_name"`
	CreatedAt time.Time           `json:"created_at"`
}

// CreateJob accepts a multipart upload, stores the file, writes a PENDING
// job and enqueues its pointer on the queue matching mode.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	mode := constants.JobModeDocument
	if raw := r.URL.Query().Get("mode"); raw != "" {
		parsed, err := constants.ParseJobMode(raw)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		mode = parsed
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		badRequest(w, "multipart form with a 'file' part is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}
	if len(content) == 0 {
		badRequest(w, "file is empty")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	job := &entity.Job{
		ID:        uuid.New(),
		Mode:      mode,
		FileName:  header.Filename,
		Status:    constants.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.FilePath = fmt.Sprintf("uploads/%s/%s", job.ID, job.FileName)

	if err := h.store.Upload(ctx, job.FilePath, content); err != nil {
		writeError(w, fmt.Errorf("store file: %w", err))
		return
	}
	if err := h.jobs.Create(ctx, job); err != nil {
		writeError(w, fmt.Errorf("create job: %w", err))
		return
	}

	payload, err := json.Marshal(entity.QueueMessage{JobID: job.ID})
	if err != nil {
		writeError(w, fmt.Errorf("marshal queue message: %w", err))
		return
	}
	if err := h.queue.Enqueue(ctx, constants.QueueForMode(mode), payload); err != nil {
		writeError(w, fmt.Errorf("enqueue job: %w", err))
		return
	}

	metrics.JobCreated(string(mode))
	h.logger.Info("api.job.created",
		"job_id", job.ID, "mode", mode, "file_name", job.FileName, "bytes", len(content))

	writeJSON(w, http.StatusCreated, createJobResponse{
		JobID:     job.ID,
		Mode:      job.Mode,
		Status:    job.Status,
		FileName:  job.FileName,
		CreatedAt: job.CreatedAt,
	})
}

type listJobsResponse struct {
	Jobs  []*entity.Job `json:"jobs"`
	Count int           `json:"count"`
}

// ListJobs returns jobs newest first. Unrecognized filter values are
// ignored rather than rejected; listing is a read-only convenience surface.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f repository.JobFilter

	if raw := q.Get("status"); raw != "" {
		if st, err := constants.ParseJobStatus(raw); err == nil {
			f.Status = &st
		}
	}
	if raw := q.Get("mode"); raw != "" {
		if m, err := constants.ParseJobMode(raw); err == nil {
			f.Mode = &m
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	jobs, err := h.jobs.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	writeJSON(w, http.StatusOK, listJobsResponse{Jobs: jobs, Count: len(jobs)})
}

// GetJob returns the full job record with results attached.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		badRequest(w, "malformed job id")
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type updateResultsRequest struct {
	Data json.RawMessage `json:"data"`
}

type updateResultsResponse struct {
	Message string    `json:"message"`
	JobID   uuid.UUID `json:"job_id"`
}

// UpdateResults overwrites a job's results payload. Status is untouched: a
// manual edit after completion is not a state transition.
func (h *Handler) UpdateResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		badRequest(w, "malformed job id")
		return
	}

	var req updateResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if len(req.Data) == 0 || string(req.Data) == "null" {
		badRequest(w, "'data' field is required")
		return
	}

	if err := h.jobs.UpsertResults(r.Context(), id, req.Data); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("api.job.results_updated", "job_id", id, "bytes", len(req.Data))
	writeJSON(w, http.StatusOK, updateResultsResponse{Message: "results updated", JobID: id})
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health reports a static healthy status plus the build version.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Version: common.Version})
}
