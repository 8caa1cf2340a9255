package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/notetasks/internal/entity"
)

// TaskSource is the read side the exporter needs.
type TaskSource interface {
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListTasks(ctx context.Context, jobID uuid.UUID) ([]entity.Task, error)
}

// Service renders a job's extracted tasks as an XLSX workbook.
type Service struct {
	jobs   TaskSource
	logger *slog.Logger
}

const sheet = "Tasks"

func NewService(jobs TaskSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobTasksXLSX returns the workbook bytes for one job, rows in position order.
func (s *Service) ExportJobTasksXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.jobs.ListTasks(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	headers := []string{"#", "Task", "Description", "Assignee", "Due Date", "Priority", "Confidence"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, t := range tasks {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, t.PositionIndex+1)
		write(2, t.Name)
		write(3, truncate(t.Description, 500))
		write(4, t.Assignee)
		if t.DueDate != nil {
			write(5, t.DueDate.Format("2006-01-02"))
		}
		write(6, string(t.Priority))
		if t.Confidence != nil {
			write(7, *t.Confidence)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 5)
	_ = f.SetColWidth(sheet, "B", "B", 40)
	_ = f.SetColWidth(sheet, "C", "C", 60)
	_ = f.SetColWidth(sheet, "D", "D", 20)
	_ = f.SetColWidth(sheet, "E", "G", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", job.ID.String(),
		"rows", len(tasks),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
