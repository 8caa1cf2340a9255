package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/notetasks/internal/core"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Handler processes one delivery. *core.Processor satisfies it.
type Handler interface {
	Process(ctx context.Context, d core.Delivery) (core.Result, error)
}

// Queue accepts deliveries for background processing.
type Queue interface {
	core.Scheduler
	Shutdown(ctx context.Context)
}

// NewDelivery builds the first delivery of a freshly submitted job.
func NewDelivery(jobID uuid.UUID, traceID string) core.Delivery {
	return core.Delivery{JobID: jobID, Attempt: 1, SubmittedAt: time.Now().UTC(), TraceID: traceID}
}
