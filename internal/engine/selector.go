package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/normalize"
	"github.com/joseph-ayodele/notetasks/internal/ocr"
)

// Constructor initializes one backend variant. It may be expensive.
type Constructor func(ctx context.Context) (ocr.Backend, error)

// Candidate pairs a backend kind with its constructor.
type Candidate struct {
	Kind constants.BackendKind
	New  Constructor
}

// Selector picks the active backend: a forced kind must initialize, otherwise the
// candidates are tried in order and the mock backend is adopted when all of them fail.
type Selector struct {
	candidates []Candidate
	mock       Constructor
	normOpts   []normalize.Option
	logger     *slog.Logger
}

type SelectorOption func(*Selector)

// WithMock replaces the default mock backend constructor.
func WithMock(c Constructor) SelectorOption { return func(s *Selector) { s.mock = c } }

// WithNormalizeOptions configures the normalizers paired with the active backend.
func WithNormalizeOptions(opts ...normalize.Option) SelectorOption {
	return func(s *Selector) { s.normOpts = append(s.normOpts, opts...) }
}

func NewSelector(logger *slog.Logger, candidates []Candidate, opts ...SelectorOption) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Selector{
		candidates: candidates,
		logger:     logger,
	}
	s.mock = func(context.Context) (ocr.Backend, error) {
		return ocr.NewMockBackend(time.Now, s.logger), nil
	}
	for _, opt := range opts {
		opt(s)
	}
	s.normOpts = append([]normalize.Option{normalize.WithLogger(logger)}, s.normOpts...)
	return s
}

// Initialize returns the active backend for preferred (BackendAuto for the fallback chain).
func (s *Selector) Initialize(ctx context.Context, preferred constants.BackendKind) (*Active, error) {
	if preferred == "" {
		preferred = constants.BackendAuto
	}

	if preferred == constants.BackendMock {
		b, err := s.mock(ctx)
		if err != nil {
			return nil, fmt.Errorf("init mock backend: %w", err)
		}
		s.logger.Info("engine.init.ok", "backend", preferred, "forced", true)
		return newActive(b, false, s.normOpts, s.logger), nil
	}

	if preferred != constants.BackendAuto {
		c, ok := s.lookup(preferred)
		if !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrNoBackend, preferred)
		}
		b, err := s.try(ctx, c)
		if err != nil {
			s.logger.Error("engine.init.forced_failed", "backend", preferred, "error", err)
			return nil, fmt.Errorf("forced backend %s: %w", preferred, err)
		}
		s.logger.Info("engine.init.ok", "backend", preferred, "forced", true)
		return newActive(b, true, s.normOpts, s.logger), nil
	}

	for _, c := range s.candidates {
		b, err := s.try(ctx, c)
		if err != nil {
			s.logger.Warn("engine.backend.unavailable", "backend", c.Kind, "error", err)
			continue
		}
		s.logger.Info("engine.init.ok", "backend", c.Kind)
		return newActive(b, true, s.normOpts, s.logger), nil
	}

	s.logger.Error("engine.init.no_real_backend", "tried", len(s.candidates), "fallback", constants.BackendMock)
	b, err := s.mock(ctx)
	if err != nil {
		return nil, fmt.Errorf("init mock backend: %w", err)
	}
	return newActive(b, false, s.normOpts, s.logger), nil
}

func (s *Selector) lookup(kind constants.BackendKind) (Candidate, bool) {
	for _, c := range s.candidates {
		if c.Kind == kind {
			return c, true
		}
	}
	return Candidate{}, false
}

// try runs a constructor and turns a panic into an unavailable error.
func (s *Selector) try(ctx context.Context, c Candidate) (b ocr.Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("%w: %s init panicked: %v", common.ErrBackendUnavailable, c.Kind, r)
		}
	}()
	b, err = c.New(ctx)
	if err == nil && b == nil {
		err = fmt.Errorf("%w: %s constructor returned no backend", common.ErrBackendUnavailable, c.Kind)
	}
	return b, err
}
