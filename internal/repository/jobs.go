package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

type JobRepository interface {
	CreateJob(ctx context.Context, job *entity.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	UpdateJob(ctx context.Context, job *entity.Job, fields ...string) error
	CompleteJob(ctx context.Context, job *entity.Job, tasks []entity.Task, fields ...string) error
	ListTasks(ctx context.Context, jobID uuid.UUID) ([]entity.Task, error)
	ListJobs(ctx context.Context, status constants.JobStatus, limit int) ([]entity.Job, error)
	ListExpiredJobs(ctx context.Context, before time.Time) ([]entity.Job, error)
	DeleteJobs(ctx context.Context, ids []uuid.UUID) (int, error)
}

var jobColumns = []string{
	"id", "status", "image_path", "original_filename", "image_size",
	"execution_id", "error_message", "error_detail", "retry_count",
	"ocr_confidence", "needs_review", "backend",
	"created_at", "updated_at", "started_at", "completed_at", "processing_duration",
}

type jobRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewJobRepository(db *DB, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepo{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *jobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *jobRepo) CreateJob(ctx context.Context, job *entity.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	now := r.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	q, args := r.builder().Insert(jobsTable).
		Columns(jobColumns...).
		Values(jobValues(job)...).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("job.create.failed", "job_id", job.ID, "error", err)
		return common.NewDatabaseError("create job", err)
	}
	r.logger.Info("job.created", "job_id", job.ID, "image_path", job.ImagePath)
	return nil
}

func (r *jobRepo) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	b := r.builder()
	q, args := b.Select(jobColumns...).
		From(b.Table(jobsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	jobs, err := r.queryJobs(ctx, r.db.Driver, q, args)
	if err != nil {
		r.logger.Error("job.get.failed", "job_id", id, "error", err)
		return nil, common.NewDatabaseError("get job", err)
	}
	if len(jobs) == 0 {
		return nil, common.ErrJobNotFound
	}
	return &jobs[0], nil
}

// UpdateJob writes the named fields of job and bumps updated_at.
func (r *jobRepo) UpdateJob(ctx context.Context, job *entity.Job, fields ...string) error {
	return r.updateJob(ctx, r.db.Driver, job, fields)
}

func (r *jobRepo) updateJob(ctx context.Context, ex dialect.ExecQuerier, job *entity.Job, fields []string) error {
	values, err := jobFieldValues(job, fields)
	if err != nil {
		return err
	}
	job.UpdatedAt = r.now()

	u := r.builder().Update(jobsTable).Set("updated_at", job.UpdatedAt)
	for i, f := range fields {
		u.Set(f, values[i])
	}
	q, args := u.Where(entsql.EQ("id", job.ID)).Query()

	var res sql.Result
	if err := ex.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("job.update.failed", "job_id", job.ID, "fields", fields, "error", err)
		return common.NewDatabaseError("update job", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrJobNotFound
	}
	return nil
}

// CompleteJob replaces the job's tasks and writes the job fields in one transaction.
func (r *jobRepo) CompleteJob(ctx context.Context, job *entity.Job, tasks []entity.Task, fields ...string) (err error) {
	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return common.NewDatabaseError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				r.logger.Warn("job.complete.rollback_failed", "job_id", job.ID, "error", rerr)
			}
		}
	}()

	q, args := r.builder().Delete(tasksTable).Where(entsql.EQ("job_id", job.ID)).Query()
	if err = tx.Exec(ctx, q, args, nil); err != nil {
		return common.NewDatabaseError("clear tasks", err)
	}
	if len(tasks) > 0 {
		ins := r.builder().Insert(tasksTable).Columns(taskColumns...)
		for i := range tasks {
			tasks[i].JobID = job.ID
			if tasks[i].ID == uuid.Nil {
				tasks[i].ID = uuid.New()
			}
			ins.Values(taskValues(&tasks[i])...)
		}
		q, args = ins.Query()
		if err = tx.Exec(ctx, q, args, nil); err != nil {
			return common.NewDatabaseError("insert tasks", err)
		}
	}
	if err = r.updateJob(ctx, tx, job, fields); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return common.NewDatabaseError("commit", err)
	}
	r.logger.Debug("job.tasks.saved", "job_id", job.ID, "tasks", len(tasks))
	return nil
}

// ListJobs returns the newest jobs first, optionally filtered by status.
func (r *jobRepo) ListJobs(ctx context.Context, status constants.JobStatus, limit int) ([]entity.Job, error) {
	b := r.builder()
	s := b.Select(jobColumns...).From(b.Table(jobsTable)).OrderBy(entsql.Desc("created_at"))
	if status != "" {
		s.Where(entsql.EQ("status", string(status)))
	}
	if limit > 0 {
		s.Limit(limit)
	}
	q, args := s.Query()
	jobs, err := r.queryJobs(ctx, r.db.Driver, q, args)
	if err != nil {
		return nil, common.NewDatabaseError("list jobs", err)
	}
	return jobs, nil
}

// ListExpiredJobs returns completed or failed jobs that finished before the cutoff.
func (r *jobRepo) ListExpiredJobs(ctx context.Context, before time.Time) ([]entity.Job, error) {
	b := r.builder()
	q, args := b.Select(jobColumns...).
		From(b.Table(jobsTable)).
		Where(entsql.And(
			entsql.InValues("status", string(constants.JobStatusCompleted), string(constants.JobStatusFailed)),
			entsql.NotNull("completed_at"),
			entsql.LT("completed_at", before.UTC()),
		)).
		OrderBy(entsql.Asc("completed_at")).
		Query()
	jobs, err := r.queryJobs(ctx, r.db.Driver, q, args)
	if err != nil {
		return nil, common.NewDatabaseError("list expired jobs", err)
	}
	return jobs, nil
}

// DeleteJobs removes the jobs and their tasks, returning the number of jobs deleted.
func (r *jobRepo) DeleteJobs(ctx context.Context, ids []uuid.UUID) (n int, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	values := make([]driver.Value, len(ids))
	for i, id := range ids {
		values[i] = id
	}

	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return 0, common.NewDatabaseError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q, args := r.builder().Delete(tasksTable).Where(entsql.InValues("job_id", values...)).Query()
	if err = tx.Exec(ctx, q, args, nil); err != nil {
		return 0, common.NewDatabaseError("delete tasks", err)
	}
	q, args = r.builder().Delete(jobsTable).Where(entsql.InValues("id", values...)).Query()
	var res sql.Result
	if err = tx.Exec(ctx, q, args, &res); err != nil {
		return 0, common.NewDatabaseError("delete jobs", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, common.NewDatabaseError("delete jobs", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, common.NewDatabaseError("commit", err)
	}
	r.logger.Info("job.deleted", "count", affected)
	return int(affected), nil
}

func (r *jobRepo) queryJobs(ctx context.Context, qr dialect.ExecQuerier, q string, args []any) ([]entity.Job, error) {
	rows := &entsql.Rows{}
	if err := qr.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(rows *entsql.Rows) (entity.Job, error) {
	var (
		job                                      entity.Job
		status                                   string
		executionID, errMessage, errDetail, back sql.NullString
		confidence, duration                     sql.NullFloat64
		startedAt, completedAt                   sql.NullTime
	)
	err := rows.Scan(
		&job.ID, &status, &job.ImagePath, &job.OriginalFilename, &job.ImageSize,
		&executionID, &errMessage, &errDetail, &job.RetryCount,
		&confidence, &job.NeedsReview, &back,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt, &duration,
	)
	if err != nil {
		return entity.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = constants.JobStatus(status)
	job.ExecutionID = nullString(executionID)
	job.ErrorMessage = nullString(errMessage)
	job.ErrorDetail = nullString(errDetail)
	job.Backend = nullString(back)
	job.OCRConfidence = nullFloat(confidence)
	job.ProcessingDuration = nullFloat(duration)
	job.StartedAt = nullTime(startedAt)
	job.CompletedAt = nullTime(completedAt)
	return job, nil
}

func jobValues(job *entity.Job) []any {
	return []any{
		job.ID, string(job.Status), job.ImagePath, job.OriginalFilename, job.ImageSize,
		job.ExecutionID, job.ErrorMessage, job.ErrorDetail, job.RetryCount,
		job.OCRConfidence, job.NeedsReview, job.Backend,
		job.CreatedAt.UTC(), job.UpdatedAt.UTC(), utcPtr(job.StartedAt), utcPtr(job.CompletedAt), job.ProcessingDuration,
	}
}

var errUnknownField = errors.New("unknown job field")

// jobFieldValues maps selective-update field names to column values.
func jobFieldValues(job *entity.Job, fields []string) ([]any, error) {
	values := make([]any, len(fields))
	for i, f := range fields {
		switch f {
		case entity.JobFieldStatus:
			values[i] = string(job.Status)
		case entity.JobFieldExecutionID:
			values[i] = job.ExecutionID
		case entity.JobFieldErrorMessage:
			values[i] = job.ErrorMessage
		case entity.JobFieldErrorDetail:
			values[i] = job.ErrorDetail
		case entity.JobFieldRetryCount:
			values[i] = job.RetryCount
		case entity.JobFieldOCRConfidence:
			values[i] = job.OCRConfidence
		case entity.JobFieldNeedsReview:
			values[i] = job.NeedsReview
		case entity.JobFieldBackend:
			values[i] = job.Backend
		case entity.JobFieldStartedAt:
			values[i] = utcPtr(job.StartedAt)
		case entity.JobFieldCompletedAt:
			values[i] = utcPtr(job.CompletedAt)
		case entity.JobFieldProcessingDuration:
			values[i] = job.ProcessingDuration
		default:
			return nil, fmt.Errorf("%w: %q", errUnknownField, f)
		}
	}
	return values, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
