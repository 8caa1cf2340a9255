package ocr

import (
	"context"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/normalize"
)

// Backend is one recognition engine. Each backend produces exactly one RawOutput variant.
type Backend interface {
	Kind() constants.BackendKind
	Extract(ctx context.Context, img entity.Image) (RawOutput, error)
}

// RawOutput is the closed set of backend output shapes:
// StructuredOutput, RegionOutput, WordOutput and MockOutput.
type RawOutput interface {
	rawOutput()
}

// StructuredOutput is the JSON text emitted by a vision-language model.
type StructuredOutput struct {
	Text string
}

// RegionOutput is a list of detected text regions.
type RegionOutput struct {
	Regions []normalize.Region
}

// WordOutput is a list of recognized words plus the width used for placeholder boxes.
type WordOutput struct {
	Words      []normalize.Word
	ImageWidth int
}

// MockOutput carries ready-made tasks.
type MockOutput struct {
	Tasks []entity.Task
}

func (StructuredOutput) rawOutput() {}
func (RegionOutput) rawOutput() {}
func (WordOutput) rawOutput() {}
func (MockOutput) rawOutput() {}
