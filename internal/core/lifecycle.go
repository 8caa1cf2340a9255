package core

import (
	"fmt"
	"time"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

// MarkProcessing moves a pending job to processing. A job already processing is a retry
// re-entry and keeps its original start time.
func MarkProcessing(job *entity.Job, now time.Time, executionID string) ([]string, error) {
	switch job.Status {
	case constants.JobStatusPending, constants.JobStatusProcessing:
	default:
		return nil, fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, job.Status, constants.JobStatusProcessing)
	}

	job.Status = constants.JobStatusProcessing
	fields := []string{entity.JobFieldStatus}
	if job.StartedAt == nil {
		started := now
		job.StartedAt = &started
		fields = append(fields, entity.JobFieldStartedAt)
	}
	if executionID != "" {
		job.ExecutionID = &executionID
		fields = append(fields, entity.JobFieldExecutionID)
	}
	return fields, nil
}

// MarkCompleted moves a processing job to completed and records the aggregate confidence.
func MarkCompleted(job *entity.Job, now time.Time, confidence, reviewThreshold float64, backend constants.BackendKind) ([]string, error) {
	if job.Status != constants.JobStatusProcessing {
		return nil, fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, job.Status, constants.JobStatusCompleted)
	}

	job.Status = constants.JobStatusCompleted
	completed := now
	job.CompletedAt = &completed
	job.ProcessingDuration = durationSince(job.StartedAt, now)
	job.OCRConfidence = &confidence
	job.NeedsReview = confidence < reviewThreshold
	b := string(backend)
	job.Backend = &b

	return []string{
		entity.JobFieldStatus,
		entity.JobFieldCompletedAt,
		entity.JobFieldProcessingDuration,
		entity.JobFieldOCRConfidence,
		entity.JobFieldNeedsReview,
		entity.JobFieldBackend,
	}, nil
}

// MarkFailed moves a processing job to failed with a message and diagnostic detail.
func MarkFailed(job *entity.Job, now time.Time, message, detail string) ([]string, error) {
	if job.Status != constants.JobStatusProcessing {
		return nil, fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, job.Status, constants.JobStatusFailed)
	}

	job.Status = constants.JobStatusFailed
	job.ErrorMessage = &message
	job.ErrorDetail = &detail
	completed := now
	job.CompletedAt = &completed
	fields := []string{
		entity.JobFieldStatus,
		entity.JobFieldErrorMessage,
		entity.JobFieldErrorDetail,
		entity.JobFieldCompletedAt,
	}
	if d := durationSince(job.StartedAt, now); d != nil {
		job.ProcessingDuration = d
		fields = append(fields, entity.JobFieldProcessingDuration)
	}
	return fields, nil
}

// RecordRetry notes a failed attempt on a job that stays in processing.
func RecordRetry(job *entity.Job, message, detail string) ([]string, error) {
	if job.Status != constants.JobStatusProcessing {
		return nil, fmt.Errorf("%w: retry from %s", common.ErrInvalidTransition, job.Status)
	}
	job.RetryCount++
	job.ErrorMessage = &message
	job.ErrorDetail = &detail
	return []string{entity.JobFieldRetryCount, entity.JobFieldErrorMessage, entity.JobFieldErrorDetail}, nil
}

// AggregateConfidence is the mean confidence of the tasks that carry one; 0 without any.
func AggregateConfidence(tasks []entity.Task) float64 {
	var sum float64
	var n int
	for _, t := range tasks {
		if t.Confidence == nil {
			continue
		}
		sum += *t.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func durationSince(start *time.Time, now time.Time) *float64 {
	if start == nil {
		return nil
	}
	d := now.Sub(*start).Seconds()
	if d < 0 {
		d = 0
	}
	return &d
}
