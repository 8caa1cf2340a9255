package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
)

// BBox is an axis-aligned box in source-image pixels.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Task is an extracted, ordered action item. Candidates produced by a
// normalizer carry a zero ID and JobID until persisted.
type Task struct {
	ID            uuid.UUID          `json:"id"`
	JobID         uuid.UUID          `json:"job_id"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Assignee      string             `json:"assignee,omitempty"`
	DueDate       *time.Time         `json:"due_date,omitempty"`
	Priority      constants.Priority `json:"priority"`
	PositionIndex int                `json:"position_index"`
	Confidence    *float64           `json:"confidence,omitempty"`
	BBox          *BBox              `json:"bbox,omitempty"`
}
