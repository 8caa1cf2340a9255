package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/notetasks/internal/common"
	"github.com/joseph-ayodele/notetasks/internal/llm"
	"google.golang.org/genai"
)

// Config for the Gemini API generator.
type Config struct {
	APIKey    string
	Model     string // default gemini-2.0-flash
	MaxTokens int
	BaseURL   string // optional API endpoint override
}

// Client wraps a genai client as an llm.Generator.
type Client struct {
	cfg    Config
	client *genai.Client
	schema *genai.Schema
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{
		cfg:    cfg,
		client: gc,
		schema: toSchema(llm.BuildTaskArraySchema()),
		logger: logger,
	}, nil
}

// Name implements llm.Generator.
func (c *Client) Name() string { return "gemini" }

// Generate implements llm.Generator.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: req.Image.Data, MIMEType: req.Image.MIMEType}},
			{Text: req.Prompt},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   c.schema,
		MaxOutputTokens:  int32(maxTokens),
		Temperature:      genai.Ptr[float32](0),
	}

	c.logger.Info("llm.generate.start",
		"req_id", rid,
		"job_id", common.JobIDFromContext(ctx),
		"provider", "gemini",
		"model", c.cfg.Model,
	)

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
	if err != nil {
		c.logger.Error("llm.generate.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini generate: empty response")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}

	content := llm.StripCodeFence(b.String())
	c.logger.Info("llm.generate.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
