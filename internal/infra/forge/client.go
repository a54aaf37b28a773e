// Package forge talks to the repository host: it gathers issue context for
// the pipeline and opens fix submissions for accepted candidates.
package forge

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

// Config holds forge connection settings.
type Config struct {
	BaseURL string             `yaml:"base_url"`
	Token   string             `yaml:"token"`
	Timeout time.Duration      `yaml:"timeout"`
	Retry   remote.RetryConfig `yaml:"retry"`
}

// Client implements pipeline.ContextFetcher and pipeline.Finalizer over the
// forge HTTP API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a forge client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("forge base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = remote.DefaultRetryConfig
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type contextResponse struct {
	Repo     string   `json:"repo"`
	Summary  string   `json:"summary"`
	Snippets []string `json:"snippets"`
}

// FetchContext gathers textual context for a work item.
func (c *Client) FetchContext(ctx context.Context, item domain.WorkItem) (*domain.Context, error) {
	url := fmt.Sprintf("%s/repos/%s/issues/%s/context", c.cfg.BaseURL, item.Payload.Repo, item.ID)

	var resp contextResponse
	err := remote.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		return c.getJSON(ctx, url, &resp)
	})
	if err != nil {
		metrics.CollaboratorCalls.WithLabelValues("forge", "error").Inc()
		return nil, fmt.Errorf("context fetch for %s failed: %w", item.ID, err)
	}
	metrics.CollaboratorCalls.WithLabelValues("forge", "ok").Inc()

	return &domain.Context{
		ItemID:   item.ID,
		Repo:     resp.Repo,
		Summary:  resp.Summary,
		Snippets: resp.Snippets,
	}, nil
}

type finalizeRequest struct {
	ItemID string `json:"item_id"`
	Diff   string `json:"diff"`
	Notes  string `json:"notes"`
}

type finalizeResponse struct {
	CommitID string `json:"commit_id"`
	URL      string `json:"url"`
}

// Finalize submits an accepted candidate as a fix on the forge.
func (c *Client) Finalize(ctx context.Context, cand *domain.Candidate) (*domain.CommitHandle, error) {
	url := fmt.Sprintf("%s/fixes", c.cfg.BaseURL)
	req := finalizeRequest{ItemID: cand.ItemID, Diff: cand.Diff, Notes: cand.Notes}

	var resp finalizeResponse
	err := remote.Do(ctx, c.cfg.Retry, func(ctx context.Context) error {
		return c.postJSON(ctx, url, req, &resp)
	})
	if err != nil {
		metrics.CollaboratorCalls.WithLabelValues("forge", "error").Inc()
		return nil, fmt.Errorf("finalize for %s failed: %w", cand.ItemID, err)
	}
	metrics.CollaboratorCalls.WithLabelValues("forge", "ok").Inc()

	return &domain.CommitHandle{ID: resp.CommitID, URL: resp.URL}, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) postJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("forge returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
