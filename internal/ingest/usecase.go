package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/core"
	"github.com/joseph-ayodele/notetasks/internal/core/async"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/storage"
)

// JobCreator persists new jobs and records enqueue failures.
type JobCreator interface {
	CreateJob(ctx context.Context, job *entity.Job) error
	UpdateJob(ctx context.Context, job *entity.Job, fields ...string) error
}

// ImageWriter stores uploaded bytes.
type ImageWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type Usecase struct {
	jobs     JobCreator
	images   ImageWriter
	queue    core.Scheduler
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

func NewUsecase(jobs JobCreator, images ImageWriter, queue core.Scheduler, maxBytes int64, logger *slog.Logger) *Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadBytesDefault
	}
	return &Usecase{
		jobs:     jobs,
		images:   images,
		queue:    queue,
		maxBytes: maxBytes,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates the image, stores it, creates a pending job and enqueues the first attempt.
func (u *Usecase) Upload(ctx context.Context, req UploadRequest) (IngestionResult, error) {
	if err := common.ValidateStruct(req); err != nil {
		return IngestionResult{}, err
	}
	v := common.NewValidator().
		Field("filename", req.Filename, common.ImageFilename).
		Field("image", req.Data, common.Required, common.MaxBytes(u.maxBytes))
	if err := v.Err(); err != nil {
		u.logger.Warn("ingest.upload.rejected", "filename", req.Filename, "bytes", len(req.Data), "error", err)
		return IngestionResult{}, err
	}

	ext := constants.NormalizeExt(filepath.Ext(req.Filename))
	id := uuid.New()
	now := u.now()
	key := storage.UploadKey(now, id, ext)

	if err := u.images.Write(ctx, key, req.Data, constants.MIMETypeForExt(ext)); err != nil {
		u.logger.Error("ingest.store.failed", "key", key, "error", err)
		return IngestionResult{}, fmt.Errorf("store image: %w", err)
	}

	job := &entity.Job{
		ID:               id,
		Status:           constants.JobStatusPending,
		ImagePath:        key,
		OriginalFilename: filepath.Base(req.Filename),
		ImageSize:        int64(len(req.Data)),
		CreatedAt:        now,
	}
	if err := u.jobs.CreateJob(ctx, job); err != nil {
		if derr := u.images.Delete(ctx, key); derr != nil {
			u.logger.Warn("ingest.cleanup.failed", "key", key, "error", derr)
		}
		return IngestionResult{}, fmt.Errorf("create job: %w", err)
	}

	if err := u.queue.Enqueue(ctx, async.NewDelivery(job.ID, req.TraceID)); err != nil {
		u.failUnqueued(ctx, job, err)
		return IngestionResult{JobID: job.ID, Status: job.Status, ImagePath: key, Err: err.Error()},
			fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	u.logger.Info("ingest.upload.accepted", "job_id", job.ID, "filename", job.OriginalFilename, "bytes", job.ImageSize)
	return IngestionResult{JobID: job.ID, Status: job.Status, ImagePath: key}, nil
}

// failUnqueued marks a job that never reached the queue as failed so it does not sit in pending.
func (u *Usecase) failUnqueued(ctx context.Context, job *entity.Job, cause error) {
	now := u.now()
	msg := "enqueue failed: " + cause.Error()
	job.Status = constants.JobStatusFailed
	job.ErrorMessage = &msg
	job.CompletedAt = &now
	err := u.jobs.UpdateJob(context.WithoutCancel(ctx), job,
		entity.JobFieldStatus, entity.JobFieldErrorMessage, entity.JobFieldCompletedAt)
	if err != nil {
		u.logger.Error("ingest.enqueue.mark_failed", "job_id", job.ID, "error", err)
	}
	u.logger.Error("ingest.enqueue.failed", "job_id", job.ID, "error", cause)
}

// IngestPath uploads one file from disk.
func (u *Usecase) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return IngestionResult{SourcePath: path}, fmt.Errorf("abs path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return IngestionResult{SourcePath: abs}, fmt.Errorf("stat: %w", err)
	}
	if info.Size() > u.maxBytes {
		return IngestionResult{SourcePath: abs}, common.NewInvalidInputError(
			fmt.Sprintf("%s is %d bytes, limit is %d", filepath.Base(abs), info.Size(), u.maxBytes))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return IngestionResult{SourcePath: abs}, fmt.Errorf("read: %w", err)
	}

	res, err := u.Upload(ctx, UploadRequest{Filename: filepath.Base(abs), Data: data})
	res.SourcePath = abs
	return res, err
}
