package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/metrics"
	"github.com/joseph-ayodele/notetasks/internal/normalize"
	"github.com/joseph-ayodele/notetasks/internal/ocr"
)

// Active is an initialized backend paired with the normalizer for its output shape.
type Active struct {
	backend ocr.Backend

	// realBackend is false when the mock was adopted because nothing else initialized.
	realBackend bool

	structured *normalize.Structured
	regions    *normalize.Regions
	words      *normalize.WordClusters
	logger     *slog.Logger
}

func newActive(b ocr.Backend, isReal bool, opts []normalize.Option, logger *slog.Logger) *Active {
	metrics.SetActiveBackend(string(b.Kind()))
	return &Active{
		backend:     b,
		realBackend: isReal,
		structured:  normalize.NewStructured(opts...),
		regions:     normalize.NewRegions(opts...),
		words:       normalize.NewWordClusters(opts...),
		logger:      logger,
	}
}

func (a *Active) Kind() constants.BackendKind { return a.backend.Kind() }

// RealBackendAvailable reports whether a non-mock backend is serving.
func (a *Active) RealBackendAvailable() bool { return a.realBackend }

// Extract runs the backend and normalizes its raw output.
func (a *Active) Extract(ctx context.Context, img entity.Image) (entity.ExtractionResult, error) {
	start := time.Now()
	kind := a.backend.Kind()

	raw, err := a.backend.Extract(ctx, img)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("%s extract: %w", kind, err)
	}

	res := entity.ExtractionResult{
		Width:   img.Width,
		Height:  img.Height,
		Backend: kind,
	}
	switch out := raw.(type) {
	case ocr.StructuredOutput:
		res.Tasks = a.structured.Normalize(out.Text)
		res.Raw = out.Text
	case ocr.RegionOutput:
		res.Tasks = a.regions.Normalize(out.Regions)
	case ocr.WordOutput:
		width := out.ImageWidth
		if width == 0 {
			width = img.Width
		}
		res.Tasks = a.words.Normalize(out.Words, width)
	case ocr.MockOutput:
		res.Tasks = out.Tasks
	default:
		return entity.ExtractionResult{}, fmt.Errorf("%s extract: unsupported raw output %T", kind, raw)
	}

	elapsed := time.Since(start)
	metrics.ObserveExtractionDuration(string(kind), elapsed.Seconds())
	a.logger.Info("engine.extract.ok",
		"backend", kind,
		"tasks", len(res.Tasks),
		"width", res.Width,
		"height", res.Height,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return res, nil
}
