package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/notetasks/internal/core"
)

const (
	DefaultWorkers        = 2
	DefaultQueueSize      = 256
	DefaultProcessTimeout = 30 * time.Minute
)

// ProcessorQueue is the in-process queue: a buffered channel drained by a fixed worker pool.
// Delayed deliveries wait on timers that are dropped at shutdown.
type ProcessorQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch    chan core.Delivery
	quit  chan struct{}
	wg    sync.WaitGroup
	sends sync.WaitGroup
	once  sync.Once

	mu      sync.Mutex
	closed  bool
	timers  map[uint64]*time.Timer
	timerID uint64
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan core.Delivery, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(handler Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler: handler,
		logger:  logger,
		workers: DefaultWorkers,
		timeout: DefaultProcessTimeout,
		ch:      make(chan core.Delivery, DefaultQueueSize),
		quit:    make(chan struct{}),
		timers:  make(map[uint64]*time.Timer),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker.started", "worker_id", workerID)

				for d := range q.ch {
					q.handle(workerID, d)
				}

				q.logger.Info("worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) handle(workerID int, d core.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	log := q.logger.With("worker_id", workerID, "job_id", d.JobID, "attempt", d.Attempt)
	res, err := q.handler.Process(ctx, d)
	switch {
	case err != nil:
		log.Error("worker.job.failed", "error", err, "retryable", core.IsRetryable(err))
	case res.RetryScheduled:
		log.Info("worker.job.retry_pending")
	default:
		log.Info("worker.job.done", "status", res.Status, "tasks", res.TasksExtracted)
	}
}

// Enqueue hands d to the workers, blocking while the buffer is full until ctx is done
// or the queue shuts down. The lock is not held while blocked.
func (q *ProcessorQueue) Enqueue(ctx context.Context, d core.Delivery) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("queue.enqueue.closed", "job_id", d.JobID)
		return ErrQueueClosed
	}
	q.sends.Add(1)
	q.mu.Unlock()
	defer q.sends.Done()

	select {
	case q.ch <- d:
		q.logger.Debug("queue.enqueued", "job_id", d.JobID, "attempt", d.Attempt)
		return nil
	default:
	}

	q.logger.Warn("queue.full.backpressure", "job_id", d.JobID)
	select {
	case q.ch <- d:
		q.logger.Debug("queue.enqueued", "job_id", d.JobID, "attempt", d.Attempt)
		return nil
	case <-q.quit:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueAfter enqueues d once delay has elapsed.
func (q *ProcessorQueue) EnqueueAfter(ctx context.Context, d core.Delivery, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, d)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.timerID++
	id := q.timerID
	q.timers[id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, id)
		q.mu.Unlock()
		if err := q.Enqueue(context.Background(), d); err != nil {
			q.logger.Warn("queue.delayed.dropped", "job_id", d.JobID, "attempt", d.Attempt, "error", err)
		}
	})
	q.logger.Debug("queue.delayed", "job_id", d.JobID, "attempt", d.Attempt, "delay", delay)
	return nil
}

// Pending is the number of deliveries waiting on a delay timer.
func (q *ProcessorQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	close(q.quit)
	q.mu.Unlock()

	// blocked senders observe quit; ch is closed only once none can write to it
	q.sends.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
