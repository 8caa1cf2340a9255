package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

// TaskView is the public shape of an extracted task.
type TaskView struct {
	ID              uuid.UUID          `json:"id"`
	TaskName        string             `json:"task_name"`
	Description     string             `json:"description"`
	Assignee        string             `json:"assignee"`
	DueDate         *string            `json:"due_date"`
	Priority        constants.Priority `json:"priority"`
	PositionIndex   int                `json:"position_index"`
	ConfidenceScore *float64           `json:"confidence_score"`
	BBoxX           *int               `json:"bbox_x"`
	BBoxY           *int               `json:"bbox_y"`
	BBoxWidth       *int               `json:"bbox_width"`
	BBoxHeight      *int               `json:"bbox_height"`
}

// JobStatusView is the lightweight status returned while a job is not completed.
type JobStatusView struct {
	TransactionID      uuid.UUID           `json:"transaction_id"`
	Status             constants.JobStatus `json:"status"`
	CreatedAt          time.Time           `json:"created_at"`
	CompletedAt        *time.Time          `json:"completed_at"`
	ProcessingDuration *float64            `json:"processing_duration"`
	TaskCount          *int                `json:"task_count,omitempty"`
	ErrorMessage       *string             `json:"error_message"`
}

// JobDetailView is the full job with its tasks.
type JobDetailView struct {
	TransactionID      uuid.UUID           `json:"transaction_id"`
	Status             constants.JobStatus `json:"status"`
	OriginalFilename   string              `json:"original_filename"`
	ImageSize          int64               `json:"image_size"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	StartedAt          *time.Time          `json:"started_at"`
	CompletedAt        *time.Time          `json:"completed_at"`
	ProcessingDuration *float64            `json:"processing_duration"`
	OCRConfidence      *float64            `json:"ocr_confidence"`
	NeedsReview        bool                `json:"needs_review"`
	Backend            *string             `json:"backend"`
	RetryCount         int                 `json:"retry_count"`
	ErrorMessage       *string             `json:"error_message"`
	ExtractedTasks     []TaskView          `json:"extracted_tasks"`
}

func newTaskView(t entity.Task) TaskView {
	v := TaskView{
		ID:              t.ID,
		TaskName:        t.Name,
		Description:     t.Description,
		Assignee:        t.Assignee,
		Priority:        t.Priority,
		PositionIndex:   t.PositionIndex,
		ConfidenceScore: t.Confidence,
	}
	if t.DueDate != nil {
		d := t.DueDate.Format("2006-01-02")
		v.DueDate = &d
	}
	if b := t.BBox; b != nil {
		v.BBoxX, v.BBoxY, v.BBoxWidth, v.BBoxHeight = &b.X, &b.Y, &b.Width, &b.Height
	}
	return v
}

func newTaskViews(tasks []entity.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskView(t))
	}
	return out
}

func newJobStatusView(j *entity.Job, taskCount int) JobStatusView {
	return JobStatusView{
		TransactionID:      j.ID,
		Status:             j.Status,
		CreatedAt:          j.CreatedAt,
		CompletedAt:        j.CompletedAt,
		ProcessingDuration: j.ProcessingDuration,
		TaskCount:          &taskCount,
		ErrorMessage:       j.ErrorMessage,
	}
}

func newJobDetailView(j *entity.Job, tasks []entity.Task) JobDetailView {
	return JobDetailView{
		TransactionID:      j.ID,
		Status:             j.Status,
		OriginalFilename:   j.OriginalFilename,
		ImageSize:          j.ImageSize,
		CreatedAt:          j.CreatedAt,
		UpdatedAt:          j.UpdatedAt,
		StartedAt:          j.StartedAt,
		CompletedAt:        j.CompletedAt,
		ProcessingDuration: j.ProcessingDuration,
		OCRConfidence:      j.OCRConfidence,
		NeedsReview:        j.NeedsReview,
		Backend:            j.Backend,
		RetryCount:         j.RetryCount,
		ErrorMessage:       j.ErrorMessage,
		ExtractedTasks:     newTaskViews(tasks),
	}
}

// toStruct converts a JSON-tagged view into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
