package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/metrics"
)

// RetentionStore lists and removes finished jobs.
type RetentionStore interface {
	ListExpiredJobs(ctx context.Context, before time.Time) ([]entity.Job, error)
	DeleteJobs(ctx context.Context, ids []uuid.UUID) (int, error)
}

// ImageRemover checks and deletes stored images.
type ImageRemover interface {
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

// Cleaner removes finished jobs, their tasks and their images after a retention period.
type Cleaner struct {
	logger *slog.Logger
	jobs   RetentionStore
	images ImageRemover
	now    func() time.Time
}

func NewCleaner(logger *slog.Logger, jobs RetentionStore, images ImageRemover) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		logger: logger,
		jobs:   jobs,
		images: images,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Cleanup deletes completed and failed jobs that finished before now-olderThan.
// Image deletion failures are logged and do not stop the job deletion.
func (c *Cleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := c.now().Add(-olderThan)
	expired, err := c.jobs.ListExpiredJobs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired jobs: %w", err)
	}
	if len(expired) == 0 {
		c.logger.Info("cleanup.nothing_to_do", "cutoff", cutoff)
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, job := range expired {
		ids = append(ids, job.ID)
		if job.ImagePath == "" {
			continue
		}
		exists, err := c.images.Exists(ctx, job.ImagePath)
		if err != nil {
			c.logger.Warn("cleanup.image.stat_failed", "job_id", job.ID, "path", job.ImagePath, "error", err)
			continue
		}
		if !exists {
			continue
		}
		if err := c.images.Delete(ctx, job.ImagePath); err != nil {
			c.logger.Warn("cleanup.image.delete_failed", "job_id", job.ID, "path", job.ImagePath, "error", err)
		}
	}

	deleted, err := c.jobs.DeleteJobs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	metrics.AddCleanupDeletedJobs(deleted)
	c.logger.Info("cleanup.done", "deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}

// Schedule registers Cleanup on a cron expression (five fields or a descriptor such as @daily).
// The caller owns Start and Stop of the returned scheduler.
func (c *Cleaner) Schedule(spec string, retention time.Duration, timeout time.Duration) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched := cron.New(cron.WithParser(parser))
	_, err := sched.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := c.Cleanup(ctx, retention); err != nil {
			c.logger.Error("cleanup.scheduled.failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return sched, nil
}
