package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
)

// Job represents a processing job for data transfer between layers.
type Job struct {
	ID                 uuid.UUID           `json:"id"`
	Status             constants.JobStatus `json:"status"`
	ImagePath          string              `json:"image_path"`
	OriginalFilename   string              `json:"original_filename"`
	ImageSize          int64               `json:"image_size"`
	ExecutionID        *string             `json:"execution_id,omitempty"`
	ErrorMessage       *string             `json:"error_message,omitempty"`
	ErrorDetail        *string             `json:"error_detail,omitempty"`
	RetryCount         int                 `json:"retry_count"`
	OCRConfidence      *float64            `json:"ocr_confidence,omitempty"`
	NeedsReview        bool                `json:"needs_review"`
	Backend            *string             `json:"backend,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	StartedAt          *time.Time          `json:"started_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	ProcessingDuration *float64            `json:"processing_duration,omitempty"`
}

// Job columns addressable by selective updates.
const (
	JobFieldStatus             = "status"
	JobFieldExecutionID        = "execution_id"
	JobFieldErrorMessage       = "error_message"
	JobFieldErrorDetail        = "error_detail"
	JobFieldRetryCount         = "retry_count"
	JobFieldOCRConfidence      = "ocr_confidence"
	JobFieldNeedsReview        = "needs_review"
	JobFieldBackend            = "backend"
	JobFieldStartedAt          = "started_at"
	JobFieldCompletedAt        = "completed_at"
	JobFieldProcessingDuration = "processing_duration"
)
