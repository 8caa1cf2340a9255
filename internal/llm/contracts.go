package llm

import (
	"context"

	"github.com/joseph-ayodele/notetasks/internal/entity"
)

// TaskItem is one element of the JSON array a vision model returns for a note.
// Legacy items carry Category and Text instead of TaskName.
type TaskItem struct {
	TaskName    string    `json:"task_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	DueDate     string    `json:"due_date,omitempty"` // YYYY-MM-DD preferred
	Priority    string    `json:"priority,omitempty"`
	BBox        []float64 `json:"bbox,omitempty"` // [x1, y1, x2, y2]
	Category    string    `json:"category,omitempty"`
	Text        string    `json:"text,omitempty"`
}

// GenerateRequest is the input to a structured generator.
type GenerateRequest struct {
	Image     entity.Image
	Prompt    string
	MaxTokens int
}

// Generator turns an image plus prompt into the model's raw text output.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Name() string
}
