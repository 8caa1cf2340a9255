// Package engine owns the process-wide extraction backend. The backend is chosen
// and initialized at most once; every caller afterwards shares it.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/entity"
)

// Initializer selects and builds the active backend.
type Initializer interface {
	Initialize(ctx context.Context, preferred constants.BackendKind) (*Active, error)
}

// Engine lazily initializes its backend exactly once. Concurrent first callers block
// until the initialization finishes. There is no way to reinitialize.
type Engine struct {
	initializer Initializer
	preferred   constants.BackendKind
	logger      *slog.Logger

	mu     sync.Mutex
	done   bool
	active *Active
	err    error
	ready  atomic.Bool
}

func New(initializer Initializer, preferred constants.BackendKind, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{initializer: initializer, preferred: preferred, logger: logger}
}

// Active returns the shared backend, initializing it on first use.
// A failed forced initialization is remembered and returned to every caller.
func (e *Engine) Active(ctx context.Context) (*Active, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.done {
		e.logger.Info("engine.init.start", "preferred", e.preferred)
		e.active, e.err = e.initializer.Initialize(ctx, e.preferred)
		e.done = true
		e.ready.Store(e.err == nil)
	}
	return e.active, e.err
}

// Extract runs one extraction against the shared backend.
func (e *Engine) Extract(ctx context.Context, img entity.Image) (entity.ExtractionResult, error) {
	a, err := e.Active(ctx)
	if err != nil {
		return entity.ExtractionResult{}, err
	}
	return a.Extract(ctx, img)
}

// Ready reports whether initialization has completed successfully.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}
