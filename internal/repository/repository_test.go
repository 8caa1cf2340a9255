package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/notetasks/constants"
	entschema "github.com/joseph-ayodele/notetasks/db/ent/schema"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepo(t *testing.T) (JobRepository, *DB) {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{
		Driver: DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(testLogger()) })
	require.NoError(t, Migrate(ctx, db, testLogger()))
	return NewJobRepository(db, testLogger()), db
}

func ptr[T any](v T) *T { return &v }

func newJob(path string) *entity.Job {
	return &entity.Job{ImagePath: path, OriginalFilename: "notes.jpg", ImageSize: 2048}
}

func TestJobRepository_CreateAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	job := newJob("uploads/2025/06/15/a.jpg")
	require.NoError(t, repo.CreateJob(ctx, job))
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, constants.JobStatusPending, job.Status)

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, constants.JobStatusPending, got.Status)
	assert.Equal(t, "uploads/2025/06/15/a.jpg", got.ImagePath)
	assert.Equal(t, "notes.jpg", got.OriginalFilename)
	assert.EqualValues(t, 2048, got.ImageSize)
	assert.Zero(t, got.RetryCount)
	assert.False(t, got.NeedsReview)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.OCRConfidence)
	assert.WithinDuration(t, job.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestJobRepository_GetMissing(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrJobNotFound)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestJobRepository_UpdateSelectedFields(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	job := newJob("uploads/b.png")
	require.NoError(t, repo.CreateJob(ctx, job))

	started := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	job.Status = constants.JobStatusProcessing
	job.StartedAt = &started
	job.ImagePath = "changed-but-not-written"
	require.NoError(t, repo.UpdateJob(ctx, job, entity.JobFieldStatus, entity.JobFieldStartedAt))

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusProcessing, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.True(t, started.Equal(*got.StartedAt))
	assert.Equal(t, "uploads/b.png", got.ImagePath)

	job.RetryCount = 2
	job.ErrorMessage = ptr("gpu busy")
	require.NoError(t, repo.UpdateJob(ctx, job, entity.JobFieldRetryCount, entity.JobFieldErrorMessage))
	got, err = repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "gpu busy", *got.ErrorMessage)

	assert.Error(t, repo.UpdateJob(ctx, job, "image_path"))

	missing := newJob("x")
	missing.ID = uuid.New()
	assert.ErrorIs(t, repo.UpdateJob(ctx, missing, entity.JobFieldStatus), common.ErrJobNotFound)
}

func TestJobRepository_CompleteJobReplacesTasks(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	job := newJob("uploads/c.png")
	require.NoError(t, repo.CreateJob(ctx, job))

	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	tasks := []entity.Task{
		{Name: "Email Sarah", Assignee: "Sarah", Priority: constants.PriorityHigh, PositionIndex: 0,
			Confidence: ptr(0.91), DueDate: &due, BBox: &entity.BBox{X: 10, Y: 20, Width: 300, Height: 40}},
		{Name: "Buy milk", PositionIndex: 1},
	}
	job.Status = constants.JobStatusCompleted
	job.OCRConfidence = ptr(0.91)
	job.Backend = ptr(string(constants.BackendRegion))
	require.NoError(t, repo.CompleteJob(ctx, job, tasks,
		entity.JobFieldStatus, entity.JobFieldOCRConfidence, entity.JobFieldBackend))

	got, err := repo.ListTasks(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Email Sarah", got[0].Name)
	assert.Equal(t, "Sarah", got[0].Assignee)
	assert.Equal(t, constants.PriorityHigh, got[0].Priority)
	assert.InDelta(t, 0.91, *got[0].Confidence, 1e-9)
	assert.Equal(t, &entity.BBox{X: 10, Y: 20, Width: 300, Height: 40}, got[0].BBox)
	require.NotNil(t, got[0].DueDate)
	assert.True(t, due.Equal(*got[0].DueDate))
	assert.Equal(t, job.ID, got[0].JobID)

	assert.Equal(t, "Buy milk", got[1].Name)
	assert.Equal(t, constants.PriorityMedium, got[1].Priority)
	assert.Empty(t, got[1].Assignee)
	assert.Nil(t, got[1].Confidence)
	assert.Nil(t, got[1].BBox)

	stored, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, stored.Status)
	assert.Equal(t, "region", *stored.Backend)

	// a second completion replaces the task list
	require.NoError(t, repo.CompleteJob(ctx, job, []entity.Task{{Name: "Only one", PositionIndex: 0}}, entity.JobFieldStatus))
	got, err = repo.ListTasks(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Only one", got[0].Name)
}

func TestJobRepository_CompleteJobRollsBackOnMissingJob(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	ghost := newJob("x")
	ghost.ID = uuid.New()
	err := repo.CompleteJob(ctx, ghost, []entity.Task{{Name: "orphan"}}, entity.JobFieldStatus)
	assert.Error(t, err)

	tasks, err := repo.ListTasks(ctx, ghost.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestJobRepository_ExpiryAndDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	mk := func(status constants.JobStatus, completed *time.Time) *entity.Job {
		job := newJob("uploads/" + uuid.NewString() + ".png")
		require.NoError(t, repo.CreateJob(ctx, job))
		job.Status = status
		job.CompletedAt = completed
		require.NoError(t, repo.UpdateJob(ctx, job, entity.JobFieldStatus, entity.JobFieldCompletedAt))
		return job
	}
	oldDone := mk(constants.JobStatusCompleted, ptr(now.AddDate(0, 0, -40)))
	oldFailed := mk(constants.JobStatusFailed, ptr(now.AddDate(0, 0, -31)))
	mk(constants.JobStatusCompleted, ptr(now.AddDate(0, 0, -2)))
	mk(constants.JobStatusPending, nil)
	mk(constants.JobStatusProcessing, nil)

	require.NoError(t, repo.CompleteJob(ctx, oldDone, []entity.Task{{Name: "t"}}, entity.JobFieldStatus))

	expired, err := repo.ListExpiredJobs(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, oldDone.ID, expired[0].ID)
	assert.Equal(t, oldFailed.ID, expired[1].ID)

	n, err := repo.DeleteJobs(ctx, []uuid.UUID{oldDone.ID, oldFailed.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.GetJob(ctx, oldDone.ID)
	assert.ErrorIs(t, err, common.ErrJobNotFound)
	tasks, err := repo.ListTasks(ctx, oldDone.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	all, err := repo.ListJobs(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	pending, err := repo.ListJobs(ctx, constants.JobStatusPending, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	n, err = repo.DeleteJobs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrate_Idempotent(t *testing.T) {
	_, db := newTestRepo(t)
	assert.NoError(t, Migrate(context.Background(), db, testLogger()))
	assert.NoError(t, db.HealthCheck(context.Background(), time.Second, testLogger()))
}

func TestTablesMatchEntSchema(t *testing.T) {
	var jobFields, taskFields, jobCols, taskCols []string
	for _, f := range (entschema.Job{}).Fields() {
		jobFields = append(jobFields, f.Descriptor().Name)
	}
	for _, f := range (entschema.Task{}).Fields() {
		taskFields = append(taskFields, f.Descriptor().Name)
	}
	for _, c := range JobsColumns {
		jobCols = append(jobCols, c.Name)
	}
	for _, c := range TasksColumns {
		taskCols = append(taskCols, c.Name)
	}

	assert.ElementsMatch(t, jobFields, jobCols)
	assert.ElementsMatch(t, taskFields, taskCols)
	assert.ElementsMatch(t, jobColumns, jobCols)
	assert.ElementsMatch(t, taskColumns, taskCols)
}

func newMockRepo(t *testing.T) (JobRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db := &DB{Driver: entsql.OpenDB(dialect.Postgres, sqlDB)}
	return NewJobRepository(db, testLogger()), mock
}

func TestJobRepository_QueryErrorIsDatabaseError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "processing_jobs"`)).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.GetJob(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDatabase)
	assert.NotErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_CompleteJobRollsBackOnInsertError(t *testing.T) {
	repo, mock := newMockRepo(t)
	job := &entity.Job{ID: uuid.New(), Status: constants.JobStatusCompleted}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "extracted_tasks"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "extracted_tasks"`)).
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := repo.CompleteJob(context.Background(), job, []entity.Task{{Name: "a"}}, entity.JobFieldStatus)
	assert.ErrorIs(t, err, common.ErrDatabase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_DeleteJobsCommits(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "extracted_tasks"`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "processing_jobs"`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := repo.DeleteJobs(context.Background(), []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSNHelpers(t *testing.T) {
	assert.Equal(t, "file:a.db?_pragma=foreign_keys(1)&_time_format=sqlite", sqliteDSN("file:a.db"))
	assert.Equal(t, "file:x?mode=memory&_pragma=foreign_keys(1)&_time_format=sqlite", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "file:a.db?_pragma=foreign_keys(1)&_time_format=sqlite", sqliteDSN("file:a.db?_pragma=foreign_keys(1)&_time_format=sqlite"))

	assert.Equal(t, "postgres://app:***@db:5432/notes", redactDSN("postgres://app:secret@db:5432/notes"))
	assert.Equal(t, "host=db user=app", redactDSN("host=db user=app"))
}
