package repository

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/notetasks/constants"
)

const (
	jobsTable  = "processing_jobs"
	tasksTable = "extracted_tasks"
)

var (
	// JobsColumns holds the columns for the "processing_jobs" table.
	JobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "status", Type: field.TypeString, Default: string(constants.JobStatusPending)},
		{Name: "image_path", Type: field.TypeString},
		{Name: "original_filename", Type: field.TypeString, Default: ""},
		{Name: "image_size", Type: field.TypeInt64, Default: 0},
		{Name: "execution_id", Type: field.TypeString, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "error_detail", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "retry_count", Type: field.TypeInt, Default: 0},
		{Name: "ocr_confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "needs_review", Type: field.TypeBool, Default: false},
		{Name: "backend", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "started_at", Type: field.TypeTime, Nullable: true},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "processing_duration", Type: field.TypeFloat64, Nullable: true},
	}
	// JobsTable holds the schema information for the "processing_jobs" table.
	JobsTable = &schema.Table{
		Name:       jobsTable,
		Columns:    JobsColumns,
		PrimaryKey: []*schema.Column{JobsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "job_status_completed_at",
				Unique:  false,
				Columns: []*schema.Column{JobsColumns[1], JobsColumns[15]},
			},
			{
				Name:    "job_created_at",
				Unique:  false,
				Columns: []*schema.Column{JobsColumns[12]},
			},
		},
	}
	// TasksColumns holds the columns for the "extracted_tasks" table.
	TasksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "assignee", Type: field.TypeString, Nullable: true},
		{Name: "due_date", Type: field.TypeTime, Nullable: true},
		{Name: "priority", Type: field.TypeString, Default: string(constants.PriorityMedium)},
		{Name: "position_index", Type: field.TypeInt},
		{Name: "confidence_score", Type: field.TypeFloat64, Nullable: true},
		{Name: "bbox_x", Type: field.TypeInt, Nullable: true},
		{Name: "bbox_y", Type: field.TypeInt, Nullable: true},
		{Name: "bbox_width", Type: field.TypeInt, Nullable: true},
		{Name: "bbox_height", Type: field.TypeInt, Nullable: true},
		{Name: "job_id", Type: field.TypeUUID},
	}
	// TasksTable holds the schema information for the "extracted_tasks" table.
	TasksTable = &schema.Table{
		Name:       tasksTable,
		Columns:    TasksColumns,
		PrimaryKey: []*schema.Column{TasksColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "extracted_tasks_processing_jobs_tasks",
				Columns:    []*schema.Column{TasksColumns[12]},
				RefColumns: []*schema.Column{JobsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "task_job_id_position_index",
				Unique:  true,
				Columns: []*schema.Column{TasksColumns[12], TasksColumns[6]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		JobsTable,
		TasksTable,
	}
)

func init() {
	TasksTable.ForeignKeys[0].RefTable = JobsTable
}

// Migrate creates or upgrades the job and task tables. Columns are never dropped.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("db.migrate.failed", "error", err)
		return fmt.Errorf("migrate schema: %w", err)
	}
	logger.Info("db.migrate.ok", "tables", len(Tables))
	return nil
}
