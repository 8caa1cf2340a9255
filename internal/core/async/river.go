package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/joseph-ayodele/notetasks/internal/core"
)

const (
	RiverQueueName = "notetasks"
	RiverJobKind   = "notetasks_extract"
)

// DeliveryArgs is a delivery stored in river_job.args.
type DeliveryArgs struct {
	core.Delivery
}

func (DeliveryArgs) Kind() string { return RiverJobKind }

// InsertOpts allows a single river attempt; the lifecycle schedules its own retries.
func (DeliveryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       RiverQueueName,
		MaxAttempts: 1,
	}
}

// DeliveryWorker runs river jobs through the lifecycle handler.
type DeliveryWorker struct {
	river.WorkerDefaults[DeliveryArgs]
	handler Handler
	timeout time.Duration
	logger  *slog.Logger
}

func (w *DeliveryWorker) Timeout(*river.Job[DeliveryArgs]) time.Duration {
	return w.timeout
}

func (w *DeliveryWorker) Work(ctx context.Context, job *river.Job[DeliveryArgs]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := job.Args.Delivery
	res, err := w.handler.Process(ctx, d)
	if err != nil {
		w.logger.Error("river.job.failed", "job_id", d.JobID, "attempt", d.Attempt, "error", err)
		return river.JobCancel(err)
	}
	w.logger.Info("river.job.done", "job_id", d.JobID, "status", res.Status, "retry_scheduled", res.RetryScheduled)
	return nil
}

// RiverQueue persists deliveries in Postgres through river so pending work survives restarts.
type RiverQueue struct {
	client *river.Client[pgx.Tx]
	logger *slog.Logger
}

// RiverConfig tunes the river-backed queue.
type RiverConfig struct {
	Workers        int
	ProcessTimeout time.Duration
}

// NewRiverQueue builds and starts a river client bound to handler.
func NewRiverQueue(ctx context.Context, pool *pgxpool.Pool, handler Handler, cfg RiverConfig, logger *slog.Logger) (*RiverQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = DefaultProcessTimeout
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &DeliveryWorker{handler: handler, timeout: cfg.ProcessTimeout, logger: logger})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			RiverQueueName: {MaxWorkers: cfg.Workers},
		},
		Workers:                     workers,
		Logger:                      logger,
		CompletedJobRetentionPeriod: 24 * time.Hour,
		DiscardedJobRetentionPeriod: 7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("start river: %w", err)
	}
	logger.Info("river.started", "queue", RiverQueueName, "workers", cfg.Workers)
	return &RiverQueue{client: client, logger: logger}, nil
}

func (q *RiverQueue) Enqueue(ctx context.Context, d core.Delivery) error {
	return q.EnqueueAfter(ctx, d, 0)
}

func (q *RiverQueue) EnqueueAfter(ctx context.Context, d core.Delivery, delay time.Duration) error {
	opts := DeliveryArgs{}.InsertOpts()
	if delay > 0 {
		opts.ScheduledAt = time.Now().Add(delay)
	}
	res, err := q.client.Insert(ctx, DeliveryArgs{Delivery: d}, &opts)
	if err != nil {
		return fmt.Errorf("insert river job: %w", err)
	}
	q.logger.Debug("river.enqueued", "job_id", d.JobID, "attempt", d.Attempt, "river_id", res.Job.ID, "delay", delay)
	return nil
}

func (q *RiverQueue) Shutdown(ctx context.Context) {
	if err := q.client.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		q.logger.Warn("river.stop.failed", "error", err)
	}
}

// MigrateRiver creates or upgrades river's own tables.
func MigrateRiver(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	_, err = migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	return err
}
