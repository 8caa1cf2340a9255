package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/core"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/ocr"
)

var extractBackend string

// extractOutput is the per-image JSON printed by the extract command.
type extractOutput struct {
	Path              string        `json:"path"`
	Backend           string        `json:"backend,omitempty"`
	Width             int           `json:"width,omitempty"`
	Height            int           `json:"height,omitempty"`
	AverageConfidence float64       `json:"average_confidence"`
	Tasks             []entity.Task `json:"tasks"`
	Error             string        `json:"error,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract <image>...",
	Short: "Run extraction on local images and print the tasks as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if extractBackend != "" {
			cfg.OCR.Backend = extractBackend
		}
		preferred, err := constants.ParseBackendKind(cfg.OCR.Backend)
		if err != nil {
			return common.NewInvalidInputError(err.Error())
		}
		eng := newEngine(cfg.OCR, preferred, logger)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		failed := 0
		for _, path := range args {
			out := extractOne(ctx, eng, path)
			if out.Error != "" {
				failed++
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractBackend, "backend", "", "Override OCR_BACKEND (auto|structured|region|wordcluster|mock)")
}

func extractOne(ctx context.Context, eng core.Extractor, path string) extractOutput {
	out := extractOutput{Path: path, Tasks: []entity.Task{}}
	if !constants.IsAllowedImageExt(filepath.Ext(path)) {
		out.Error = fmt.Sprintf("unsupported file type %q", filepath.Ext(path))
		return out
	}
	data, err := os.ReadFile(path)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	img, err := ocr.DecodeImage(data)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := eng.Extract(ctx, img)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Backend = string(res.Backend)
	out.Width, out.Height = res.Width, res.Height
	if len(res.Tasks) > 0 {
		out.Tasks = res.Tasks
	}
	out.AverageConfidence = core.AggregateConfidence(res.Tasks)
	return out
}
