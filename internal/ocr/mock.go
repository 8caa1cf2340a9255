package ocr

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

// MockBackend returns a fixed illustrative task set. It is used when no real backend initializes.
type MockBackend struct {
	now    func() time.Time
	logger *slog.Logger
}

func NewMockBackend(now func() time.Time, logger *slog.Logger) *MockBackend {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MockBackend{now: now, logger: logger}
}

func (b *MockBackend) Kind() constants.BackendKind { return constants.BackendMock }

func (b *MockBackend) Extract(_ context.Context, _ entity.Image) (RawOutput, error) {
	b.logger.Warn("ocr.mock.extract", "hint", "no real ocr backend available")
	return MockOutput{Tasks: MockTasks(b.now())}, nil
}

// MockTasks builds the illustrative task set with due dates relative to now.
func MockTasks(now time.Time) []entity.Task {
	day := func(n int) *time.Time {
		y, m, d := now.AddDate(0, 0, n).Date()
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	conf := func(c float64) *float64 { return &c }

	return []entity.Task{
		{
			Name:          "Review project proposal",
			Description:   "Review and provide feedback on Q1 project proposal document",
			Assignee:      "John Doe",
			DueDate:       day(3),
			Priority:      constants.PriorityHigh,
			PositionIndex: 0,
			Confidence:    conf(0.89),
			BBox:          &entity.BBox{X: 50, Y: 100, Width: 400, Height: 60},
		},
		{
			Name:          "Update documentation",
			Description:   "Update API documentation with new endpoints",
			Assignee:      "Jane Smith",
			DueDate:       day(7),
			Priority:      constants.PriorityMedium,
			PositionIndex: 1,
			Confidence:    conf(0.92),
			BBox:          &entity.BBox{X: 50, Y: 180, Width: 450, Height: 60},
		},
		{
			Name:          "Schedule team meeting",
			Description:   "Schedule weekly sync meeting with the team",
			DueDate:       day(1),
			Priority:      constants.PriorityLow,
			PositionIndex: 2,
			Confidence:    conf(0.85),
			BBox:          &entity.BBox{X: 50, Y: 260, Width: 380, Height: 60},
		},
	}
}
