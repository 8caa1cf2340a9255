package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

func TestMarkProcessing(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	t.Run("pending job starts", func(t *testing.T) {
		job := &entity.Job{Status: constants.JobStatusPending}
		fields, err := MarkProcessing(job, now, "exec-7")
		require.NoError(t, err)
		assert.Equal(t, constants.JobStatusProcessing, job.Status)
		assert.Equal(t, now, *job.StartedAt)
		assert.ElementsMatch(t, []string{entity.JobFieldStatus, entity.JobFieldStartedAt, entity.JobFieldExecutionID}, fields)
	})

	t.Run("re-entry keeps start time", func(t *testing.T) {
		started := now.Add(-time.Minute)
		job := &entity.Job{Status: constants.JobStatusProcessing, StartedAt: &started}
		fields, err := MarkProcessing(job, now, "")
		require.NoError(t, err)
		assert.Equal(t, started, *job.StartedAt)
		assert.Equal(t, []string{entity.JobFieldStatus}, fields)
	})

	for _, status := range []constants.JobStatus{constants.JobStatusCompleted, constants.JobStatusFailed} {
		t.Run("rejects "+string(status), func(t *testing.T) {
			job := &entity.Job{Status: status}
			_, err := MarkProcessing(job, now, "")
			assert.ErrorIs(t, err, common.ErrInvalidTransition)
			assert.Equal(t, status, job.Status)
		})
	}
}

func TestMarkCompleted(t *testing.T) {
	start := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	job := &entity.Job{Status: constants.JobStatusProcessing, StartedAt: &start}

	_, err := MarkCompleted(job, start.Add(90*time.Second), 0.55, DefaultReviewThreshold, constants.BackendStructured)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.InDelta(t, 90, *job.ProcessingDuration, 1e-9)
	assert.True(t, job.NeedsReview)
	assert.Equal(t, "structured", *job.Backend)

	_, err = MarkCompleted(job, start, 1, DefaultReviewThreshold, constants.BackendStructured)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	pending := &entity.Job{Status: constants.JobStatusPending}
	_, err = MarkCompleted(pending, start, 1, DefaultReviewThreshold, constants.BackendMock)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestMarkFailed(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	job := &entity.Job{Status: constants.JobStatusProcessing}
	fields, err := MarkFailed(job, now, "model crashed", "trace")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	assert.Equal(t, "model crashed", *job.ErrorMessage)
	assert.Nil(t, job.ProcessingDuration)
	assert.NotContains(t, fields, entity.JobFieldProcessingDuration)
	assert.Equal(t, now, *job.CompletedAt)

	_, err = MarkFailed(job, now, "again", "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestRecordRetry(t *testing.T) {
	job := &entity.Job{Status: constants.JobStatusProcessing}
	for i := 1; i <= 2; i++ {
		_, err := RecordRetry(job, "timeout", "")
		require.NoError(t, err)
		assert.Equal(t, i, job.RetryCount)
	}
	assert.Equal(t, constants.JobStatusProcessing, job.Status)

	_, err := RecordRetry(&entity.Job{Status: constants.JobStatusPending}, "x", "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestAggregateConfidence(t *testing.T) {
	a, b := 0.8, 0.4
	tasks := []entity.Task{{Confidence: &a}, {Confidence: nil}, {Confidence: &b}}

	assert.InDelta(t, 0.6, AggregateConfidence(tasks), 1e-9)
	assert.Equal(t, AggregateConfidence(tasks), AggregateConfidence(tasks))
	assert.Zero(t, AggregateConfidence(nil))
	assert.Zero(t, AggregateConfidence([]entity.Task{{Name: "no score"}}))
}

func TestStepError(t *testing.T) {
	base := errors.New("disk full")
	err := retryable(StagePersist, base)

	assert.ErrorIs(t, err, base)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(fatal(StageStart, base)))
	assert.False(t, IsRetryable(base))
	assert.Equal(t, "persist (retryable): disk full", err.Error())
	assert.Contains(t, err.Detail, "disk full")
	assert.Contains(t, err.Detail, "lifecycle_test.go")
}

type memRetention struct {
	expired []entity.Job
	cutoff  time.Time
	deleted []uuid.UUID
	listErr error
}

func (m *memRetention) ListExpiredJobs(_ context.Context, before time.Time) ([]entity.Job, error) {
	m.cutoff = before
	return m.expired, m.listErr
}

func (m *memRetention) DeleteJobs(_ context.Context, ids []uuid.UUID) (int, error) {
	m.deleted = append(m.deleted, ids...)
	return len(ids), nil
}

type memRemover struct {
	files     map[string]bool
	removed   []string
	deleteErr error
}

func (m *memRemover) Exists(_ context.Context, path string) (bool, error) {
	return m.files[path], nil
}

func (m *memRemover) Delete(_ context.Context, path string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.removed = append(m.removed, path)
	return nil
}

func TestCleaner_Cleanup(t *testing.T) {
	now := time.Date(2025, 6, 30, 3, 0, 0, 0, time.UTC)
	jobs := &memRetention{expired: []entity.Job{
		{ID: uuid.New(), ImagePath: "uploads/a.png"},
		{ID: uuid.New(), ImagePath: "uploads/gone.png"},
		{ID: uuid.New()},
	}}
	images := &memRemover{files: map[string]bool{"uploads/a.png": true}}

	c := NewCleaner(discardLogger(), jobs, images)
	c.now = func() time.Time { return now }

	n, err := c.Cleanup(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, now.Add(-7*24*time.Hour), jobs.cutoff)
	assert.Equal(t, []string{"uploads/a.png"}, images.removed)
	assert.Len(t, jobs.deleted, 3)
}

func TestCleaner_ImageErrorsDoNotBlockDeletion(t *testing.T) {
	jobs := &memRetention{expired: []entity.Job{{ID: uuid.New(), ImagePath: "uploads/a.png"}}}
	images := &memRemover{files: map[string]bool{"uploads/a.png": true}, deleteErr: errors.New("permission denied")}

	n, err := NewCleaner(discardLogger(), jobs, images).Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCleaner_ListError(t *testing.T) {
	jobs := &memRetention{listErr: errors.New("db down")}
	_, err := NewCleaner(discardLogger(), jobs, &memRemover{}).Cleanup(context.Background(), time.Hour)
	assert.Error(t, err)
	assert.Empty(t, jobs.deleted)
}

func TestCleaner_Schedule(t *testing.T) {
	c := NewCleaner(discardLogger(), &memRetention{}, &memRemover{})

	sched, err := c.Schedule("@daily", time.Hour, time.Minute)
	require.NoError(t, err)
	assert.Len(t, sched.Entries(), 1)

	sched, err = c.Schedule("0 3 * * *", time.Hour, time.Minute)
	require.NoError(t, err)
	assert.Len(t, sched.Entries(), 1)

	_, err = c.Schedule("every night", time.Hour, time.Minute)
	assert.Error(t, err)
}
