package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/notetasks/internal/llm"
)

// CheckServed lists the endpoint's models and fails unless the configured model is served.
func (c *Client) CheckServed(ctx context.Context) error {
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models"
	raw, status, err := llm.GetJSON(ctx, c.http, endpoint, headers)
	if err != nil {
		c.logger.Warn("llm.models.failed", "url", endpoint, "status", status, "error", err)
		return fmt.Errorf("list models %s: %w", endpoint, err)
	}

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("decode model list: %w", err)
	}
	for _, m := range list.Data {
		if m.ID == c.cfg.Model {
			c.logger.Info("llm.models.ok", "model", c.cfg.Model, "models", len(list.Data))
			return nil
		}
	}
	return fmt.Errorf("model %q not served by %s", c.cfg.Model, c.cfg.BaseURL)
}
