// Package model talks to the candidate generation server.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/infra/remote"
	"github.com/vietddude/mender/internal/resolve/metrics"
)

// Config holds generation server settings.
type Config struct {
	BaseURL string             `yaml:"base_url"`
	Model   string             `yaml:"model"`
	Timeout time.Duration      `yaml:"timeout"`
	Retry   remote.RetryConfig `yaml:"retry"`
}

// Client implements pipeline.Generator against the generation server's
// HTTP API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a generation client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("model base URL is required")
	}
	if cfg.Timeout <= 0 {
		// Generation is slow; give it room.
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = remote.DefaultRetryConfig
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type generateRequest struct {
	Model    string   `json:"model,omitempty"`
	ItemID   string   `json:"item_id"`
	Repo     string   `json:"repo"`
	Summary  string   `json:"summary"`
	Snippets []string `json:"snippets,omitempty"`
	Feedback []string `json:"feedback,omitempty"`
}

type generateResponse struct {
	Diff  string `json:"diff"`
	Notes string `json:"notes"`
}

// Generate asks the server for a candidate fix. Feedback from a rejected
// attempt is forwarded verbatim.
func (c *Client) Generate(ctx context.Context, itemCtx *domain.Context, feedback []string) (*domain.Candidate, error) {
	req := generateRequest{
		Model:    c.cfg.Model,
		ItemID:   itemCtx.ItemID,
		Repo:     itemCtx.Repo,
		Summary:  itemCtx.Summary,
		Snippets: itemCtx.Snippets,
		Feedback: feedback,
	}

	var resp generateResponse
	err := remote.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		return c.post(ctx, c.cfg.BaseURL+"/v1/generate", req, &resp)
	})
	if err != nil {
		metrics.CollaboratorCalls.WithLabelValues("model", "error").Inc()
		return nil, fmt.Errorf("generation for %s failed: %w", itemCtx.ItemID, err)
	}
	metrics.CollaboratorCalls.WithLabelValues("model", "ok").Inc()

	return &domain.Candidate{
		ItemID: itemCtx.ItemID,
		Diff:   resp.Diff,
		Notes:  resp.Notes,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("model server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
