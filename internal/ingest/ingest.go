// Package ingest turns uploaded or dropped image files into pending jobs.
package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/constants"
)

// UploadRequest is one image submitted for extraction.
type UploadRequest struct {
	Filename string `validate:"required,max=255"`
	Data     []byte
	TraceID  string
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath string              `json:"source_path,omitempty"`
	JobID      uuid.UUID           `json:"job_id"`
	Status     constants.JobStatus `json:"status"`
	ImagePath  string              `json:"image_path,omitempty"`
	Err        string              `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Ingestor is the behavior the transports depend on.
type Ingestor interface {
	// Upload stores an image, creates its pending job and enqueues it.
	Upload(ctx context.Context, req UploadRequest) (IngestionResult, error)
	// IngestPath uploads a single file from disk.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
