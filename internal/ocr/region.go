package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/normalize"
)

// RegionBackend runs an external region detector that prints
// [[[[x,y],[x,y],[x,y],[x,y]], "text", conf], ...] for an image path.
type RegionBackend struct {
	command string
	runner  Runner
	logger  *slog.Logger
}

func NewRegionBackend(command string, runner Runner, logger *slog.Logger) (*RegionBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if command == "" {
		command = "easyocr-regions"
	}
	resolved, err := lookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: region command %q: %v", common.ErrBackendUnavailable, command, err)
	}
	return &RegionBackend{command: resolved, runner: runner, logger: logger}, nil
}

func (b *RegionBackend) Kind() constants.BackendKind { return constants.BackendRegion }

func (b *RegionBackend) Extract(ctx context.Context, img entity.Image) (RawOutput, error) {
	path, cleanup, err := writeTemp(img)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, errb, err := b.runner.Run(ctx, b.command, path)
	if err != nil {
		return nil, fmt.Errorf("region detector: %w: %s", err, truncate(string(errb), 1<<10))
	}

	var regions []normalize.Region
	if err := json.Unmarshal(out, &regions); err != nil {
		return nil, fmt.Errorf("region detector output: %w", err)
	}

	b.logger.Info("ocr.region.detected", "regions", len(regions))
	for i, r := range regions {
		b.logger.Debug("ocr.region.result", "index", i, "text", r.Text, "confidence", r.Confidence)
	}
	return RegionOutput{Regions: regions}, nil
}
