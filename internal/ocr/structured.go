package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/notetasks/constants"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/entity"
	"github.com/joseph-ayodele/notetasks/internal/llm"
	"github.com/joseph-ayodele/notetasks/internal/llm/gemini"
	"github.com/joseph-ayodele/notetasks/internal/llm/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type StructuredConfig struct {
	Provider     string // openai | gemini
	Model        string // served model name or local weights path
	BaseURL      string
	APIKey       string
	GeminiAPIKey string
	GeminiModel  string
	MaxTokens    int
	MaxImageSide int
	Timeout      time.Duration
}

// StructuredBackend asks a vision-language model for a JSON task list.
type StructuredBackend struct {
	gen       llm.Generator
	prompt    string
	maxTokens int
	maxSide   int
	logger    *slog.Logger
}

func NewStructuredBackend(gen llm.Generator, cfg StructuredConfig, logger *slog.Logger) *StructuredBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.MaxImageSide <= 0 {
		cfg.MaxImageSide = 1024
	}
	return &StructuredBackend{
		gen:       gen,
		prompt:    llm.BuildTaskPrompt(),
		maxTokens: cfg.MaxTokens,
		maxSide:   cfg.MaxImageSide,
		logger:    logger,
	}
}

// modelCheckTimeout bounds the model-list request made while opening an OpenAI-compatible backend.
const modelCheckTimeout = 5 * time.Second

// OpenStructured builds the configured generator. A local weights path that does not exist,
// an unreachable endpoint or an unserved model makes the backend unavailable.
func OpenStructured(ctx context.Context, cfg StructuredConfig, logger *slog.Logger) (*StructuredBackend, error) {
	var gen llm.Generator
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		if looksLikePath(cfg.Model) {
			if _, err := os.Stat(cfg.Model); err != nil {
				return nil, fmt.Errorf("%w: structured model weights %q: %v", common.ErrBackendUnavailable, cfg.Model, err)
			}
		}
		oc := openai.NewClient(openai.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, logger)
		pctx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
		err := oc.CheckServed(pctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
		}
		gen = oc
	case ProviderGemini:
		g, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.MaxTokens,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
		}
		gen = g
	default:
		return nil, fmt.Errorf("%w: unknown structured provider %q", common.ErrBackendUnavailable, cfg.Provider)
	}
	return NewStructuredBackend(gen, cfg, logger), nil
}

func (b *StructuredBackend) Kind() constants.BackendKind { return constants.BackendStructured }

func (b *StructuredBackend) Extract(ctx context.Context, img entity.Image) (RawOutput, error) {
	scaled, err := Downscale(img, b.maxSide)
	if err != nil {
		return nil, err
	}
	if scaled.Width != img.Width {
		b.logger.Info("ocr.structured.resized",
			"from", fmt.Sprintf("%dx%d", img.Width, img.Height),
			"to", fmt.Sprintf("%dx%d", scaled.Width, scaled.Height),
		)
	}

	text, err := b.gen.Generate(ctx, llm.GenerateRequest{
		Image:     scaled,
		Prompt:    b.prompt,
		MaxTokens: b.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("structured extract (%s): %w", b.gen.Name(), err)
	}
	b.logger.Debug("ocr.structured.raw_output", "provider", b.gen.Name(), "output", truncate(text, 4<<10))
	return StructuredOutput{Text: text}, nil
}

func looksLikePath(s string) bool {
	return strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || strings.HasPrefix(s, "/")
}
