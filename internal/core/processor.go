package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/metrics"
	"github.com/joseph-ayodele/notetasks/internal/ocr"
)

const (
	DefaultMaxAttempts     = 3
	DefaultRetryDelay      = 60 * time.Second
	DefaultReviewThreshold = 0.6

	bookkeepingTimeout = 15 * time.Second
)

// JobStore is the persistence the lifecycle needs.
type JobStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	UpdateJob(ctx context.Context, job *entity.Job, fields ...string) error
	// CompleteJob replaces the job's tasks and applies the job fields in one transaction.
	CompleteJob(ctx context.Context, job *entity.Job, tasks []entity.Task, fields ...string) error
}

// ImageReader reads stored image bytes by path.
type ImageReader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// Extractor runs extraction against the shared engine.
type Extractor interface {
	Extract(ctx context.Context, img entity.Image) (entity.ExtractionResult, error)
}

// Delivery is one queued attempt at a job.
type Delivery struct {
	JobID       uuid.UUID `json:"job_id"`
	Attempt     int       `json:"attempt"`
	ExecutionID string    `json:"execution_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// Scheduler enqueues deliveries, now or after a delay.
type Scheduler interface {
	Enqueue(ctx context.Context, d Delivery) error
	EnqueueAfter(ctx context.Context, d Delivery, delay time.Duration) error
}

// Result summarizes one Process call.
type Result struct {
	Status            constants.JobStatus   `json:"status"`
	JobID             uuid.UUID             `json:"job_id"`
	TasksExtracted    int                   `json:"tasks_extracted"`
	AverageConfidence float64               `json:"average_confidence"`
	Backend           constants.BackendKind `json:"backend,omitempty"`
	RetryScheduled    bool                  `json:"retry_scheduled,omitempty"`
	Error             string                `json:"error,omitempty"`
}

// Processor walks a job through pending → processing → completed | failed.
type Processor struct {
	logger    *slog.Logger
	jobs      JobStore
	images    ImageReader
	extractor Extractor
	scheduler Scheduler

	maxAttempts     int
	retryDelay      time.Duration
	reviewThreshold float64
	now             func() time.Time
}

type ProcessorOption func(*Processor)

func WithMaxAttempts(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithRetryDelay(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d >= 0 {
			p.retryDelay = d
		}
	}
}

func WithReviewThreshold(t float64) ProcessorOption {
	return func(p *Processor) { p.reviewThreshold = t }
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(
	logger *slog.Logger,
	jobs JobStore,
	images ImageReader,
	extractor Extractor,
	scheduler Scheduler,
	opts ...ProcessorOption,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:          logger,
		jobs:            jobs,
		images:          images,
		extractor:       extractor,
		scheduler:       scheduler,
		maxAttempts:     DefaultMaxAttempts,
		retryDelay:      DefaultRetryDelay,
		reviewThreshold: DefaultReviewThreshold,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetScheduler wires the queue after construction; queue and processor reference each other.
func (p *Processor) SetScheduler(s Scheduler) { p.scheduler = s }

// Process runs one attempt of a job. Retryable failures with budget left are re-enqueued
// after the retry delay and return a nil error; final failures return the StepError.
func (p *Processor) Process(ctx context.Context, d Delivery) (Result, error) {
	log := p.logger.With("job_id", d.JobID, "attempt", d.Attempt)
	ctx = common.WithLogger(common.WithJobID(ctx, d.JobID.String()), log)
	res := Result{JobID: d.JobID}

	job, err := p.jobs.GetJob(ctx, d.JobID)
	if err != nil {
		if errors.Is(err, common.ErrJobNotFound) {
			serr := fatal(StageLookup, err)
			log.Error("job.lookup.not_found", "error", err)
			res.Status = constants.JobStatusFailed
			res.Error = err.Error()
			return res, serr
		}
		// the job row exists but could not be read; retry the delivery itself
		return p.retryDelivery(ctx, d, retryable(StageLookup, err), log)
	}

	if job.Status.IsTerminal() {
		err := fmt.Errorf("%w: job already %s", common.ErrInvalidTransition, job.Status)
		log.Warn("job.start.terminal", "status", job.Status)
		res.Status = job.Status
		res.Error = err.Error()
		return res, fatal(StageStart, err)
	}

	fields, err := MarkProcessing(job, p.now(), d.ExecutionID)
	if err != nil {
		res.Status = job.Status
		res.Error = err.Error()
		return res, fatal(StageStart, err)
	}
	if err := p.jobs.UpdateJob(ctx, job, fields...); err != nil {
		return p.handleFailure(ctx, job, d, retryable(StageStart, err), log)
	}
	log.Info("job.processing", "image_path", job.ImagePath, "retry_count", job.RetryCount)

	out, serr := p.run(ctx, job, log)
	if serr != nil {
		return p.handleFailure(ctx, job, d, serr, log)
	}

	metrics.IncreaseJobsTotalMetric(string(constants.JobStatusCompleted))
	metrics.AddTasksExtracted(string(out.Backend), out.TasksExtracted)
	log.Info("job.completed",
		"tasks", out.TasksExtracted,
		"confidence", out.AverageConfidence,
		"backend", out.Backend,
		"needs_review", job.NeedsReview,
		"duration_s", deref(job.ProcessingDuration),
	)
	return out, nil
}

// run fetches, extracts and persists. job is updated in place only once persisted.
func (p *Processor) run(ctx context.Context, job *entity.Job, log *slog.Logger) (Result, *StepError) {
	data, err := p.images.Read(ctx, job.ImagePath)
	if err != nil {
		return Result{}, retryable(StageFetch, fmt.Errorf("read image %s: %w", job.ImagePath, err))
	}
	img, err := ocr.DecodeImage(data)
	if err != nil {
		return Result{}, retryable(StageDecode, err)
	}
	log.Debug("job.image.loaded", "bytes", len(data), "width", img.Width, "height", img.Height, "format", img.Format)

	extraction, serr := p.extract(ctx, img)
	if serr != nil {
		return Result{}, serr
	}

	tasks := make([]entity.Task, len(extraction.Tasks))
	for i, t := range extraction.Tasks {
		t.ID = uuid.New()
		t.JobID = job.ID
		t.PositionIndex = i
		tasks[i] = t
	}
	confidence := AggregateConfidence(tasks)

	done := *job
	fields, err := MarkCompleted(&done, p.now(), confidence, p.reviewThreshold, extraction.Backend)
	if err != nil {
		return Result{}, fatal(StagePersist, err)
	}
	if err := p.jobs.CompleteJob(ctx, &done, tasks, fields...); err != nil {
		return Result{}, retryable(StagePersist, fmt.Errorf("persist tasks: %w", err))
	}
	*job = done

	return Result{
		Status:            constants.JobStatusCompleted,
		JobID:             job.ID,
		TasksExtracted:    len(tasks),
		AverageConfidence: confidence,
		Backend:           extraction.Backend,
	}, nil
}

// extract calls the engine and turns a panic into a retryable failure.
func (p *Processor) extract(ctx context.Context, img entity.Image) (res entity.ExtractionResult, serr *StepError) {
	defer func() {
		if r := recover(); r != nil {
			serr = &StepError{
				Kind:   Retryable,
				Stage:  StageExtract,
				Err:    fmt.Errorf("extraction panicked: %v", r),
				Detail: fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack()),
			}
		}
	}()
	res, err := p.extractor.Extract(ctx, img)
	if err != nil {
		return entity.ExtractionResult{}, retryable(StageExtract, err)
	}
	return res, nil
}

func (p *Processor) handleFailure(ctx context.Context, job *entity.Job, d Delivery, serr *StepError, log *slog.Logger) (Result, error) {
	// bookkeeping must survive an expired attempt deadline
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	message := serr.Err.Error()
	attempt := job.RetryCount + 1
	log = log.With("stage", serr.Stage, "kind", serr.Kind.String())

	if serr.Kind == Retryable && attempt < p.maxAttempts && p.scheduler != nil {
		fields, err := RecordRetry(job, message, serr.Detail)
		if err == nil {
			err = p.jobs.UpdateJob(bctx, job, fields...)
		}
		if err == nil {
			next := Delivery{JobID: job.ID, Attempt: attempt + 1, SubmittedAt: p.now(), TraceID: d.TraceID}
			err = p.scheduler.EnqueueAfter(bctx, next, p.retryDelay)
		}
		if err == nil {
			metrics.IncreaseJobRetriesMetric()
			log.Warn("job.retry.scheduled",
				"error", message,
				"retry_count", job.RetryCount,
				"next_attempt", attempt+1,
				"delay", p.retryDelay,
			)
			return Result{Status: job.Status, JobID: job.ID, RetryScheduled: true, Error: message}, nil
		}
		log.Error("job.retry.schedule_failed", "error", err)
	}

	fields, err := MarkFailed(job, p.now(), message, serr.Detail)
	if err != nil {
		log.Error("job.failed.transition", "error", err)
	} else if err := p.jobs.UpdateJob(bctx, job, fields...); err != nil {
		log.Error("job.failed.persist", "error", err)
	}
	metrics.IncreaseJobsTotalMetric(string(constants.JobStatusFailed))
	log.Error("job.failed.final", "error", message, "retry_count", job.RetryCount)
	return Result{Status: constants.JobStatusFailed, JobID: job.ID, Error: message}, serr
}

// retryDelivery re-enqueues a delivery whose job could not be loaded.
func (p *Processor) retryDelivery(ctx context.Context, d Delivery, serr *StepError, log *slog.Logger) (Result, error) {
	res := Result{JobID: d.JobID, Error: serr.Err.Error()}
	if d.Attempt < p.maxAttempts && p.scheduler != nil {
		next := d
		next.Attempt++
		if err := p.scheduler.EnqueueAfter(context.WithoutCancel(ctx), next, p.retryDelay); err == nil {
			log.Warn("job.lookup.retry_scheduled", "error", serr.Err)
			res.RetryScheduled = true
			return res, nil
		}
	}
	log.Error("job.lookup.failed", "error", serr.Err)
	return res, serr
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
