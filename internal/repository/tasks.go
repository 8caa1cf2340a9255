package repository

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

var taskColumns = []string{
	"id", "job_id", "name", "description", "assignee", "due_date", "priority",
	"position_index", "confidence_score", "bbox_x", "bbox_y", "bbox_width", "bbox_height",
}

// ListTasks returns a job's tasks in reading order.
func (r *jobRepo) ListTasks(ctx context.Context, jobID uuid.UUID) ([]entity.Task, error) {
	b := r.builder()
	q, args := b.Select(taskColumns...).
		From(b.Table(tasksTable)).
		Where(entsql.EQ("job_id", jobID)).
		OrderBy(entsql.Asc("position_index")).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("task.list.failed", "job_id", jobID, "error", err)
		return nil, common.NewDatabaseError("list tasks", err)
	}
	defer rows.Close()

	tasks := []entity.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, common.NewDatabaseError("list tasks", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewDatabaseError("list tasks", err)
	}
	return tasks, nil
}

func scanTask(rows *entsql.Rows) (entity.Task, error) {
	var (
		task                entity.Task
		description, assign sql.NullString
		priority            string
		dueDate             sql.NullTime
		confidence          sql.NullFloat64
		bx, by, bw, bh      sql.NullInt64
	)
	err := rows.Scan(
		&task.ID, &task.JobID, &task.Name, &description, &assign, &dueDate, &priority,
		&task.PositionIndex, &confidence, &bx, &by, &bw, &bh,
	)
	if err != nil {
		return entity.Task{}, fmt.Errorf("scan task: %w", err)
	}
	task.Description = description.String
	task.Assignee = assign.String
	task.DueDate = nullTime(dueDate)
	task.Priority = constants.Priority(priority)
	task.Confidence = nullFloat(confidence)
	if bx.Valid && by.Valid && bw.Valid && bh.Valid {
		task.BBox = &entity.BBox{X: *nullInt(bx), Y: *nullInt(by), Width: *nullInt(bw), Height: *nullInt(bh)}
	}
	return task, nil
}

func taskValues(t *entity.Task) []any {
	var bx, by, bw, bh any
	if t.BBox != nil {
		bx, by, bw, bh = t.BBox.X, t.BBox.Y, t.BBox.Width, t.BBox.Height
	}
	priority := t.Priority
	if priority == "" {
		priority = constants.PriorityMedium
	}
	return []any{
		t.ID, t.JobID, t.Name, emptyAsNull(t.Description), emptyAsNull(t.Assignee), utcPtr(t.DueDate), string(priority),
		t.PositionIndex, t.Confidence, bx, by, bw, bh,
	}
}

func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
