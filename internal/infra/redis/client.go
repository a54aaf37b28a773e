package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the resolution service: a dedup set of
// already-resolved item IDs and per-batch progress counters.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Health reports connectivity for health probes.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}

// Key helpers
func resolvedKey() string {
	return "mender:resolved"
}

func progressKey(batchID string) string {
	return fmt.Sprintf("mender:progress:%s", batchID)
}

// MarkResolved records item IDs as resolved so later batches skip them.
func (c *Client) MarkResolved(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := c.rdb.SAdd(ctx, resolvedKey(), members...).Err(); err != nil {
		return fmt.Errorf("sadd failed: %w", err)
	}
	return nil
}

// FilterUnresolved returns only the IDs not yet marked resolved, preserving
// input order.
func (c *Client) FilterUnresolved(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	seen, err := c.rdb.SMIsMember(ctx, resolvedKey(), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("smismember failed: %w", err)
	}

	var out []string
	for i, id := range ids {
		if !seen[i] {
			out = append(out, id)
		}
	}
	return out, nil
}

// PublishProgress records done/total counters for a running batch. The hash
// expires after a day; progress is advisory, not durable state.
func (c *Client) PublishProgress(ctx context.Context, batchID string, done, total int) error {
	key := progressKey(batchID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, "done", done, "total", total)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("progress hset failed: %w", err)
	}
	return nil
}

// GetProgress reads a batch's progress counters. Missing keys return zeros.
func (c *Client) GetProgress(ctx context.Context, batchID string) (done, total int, err error) {
	vals, err := c.rdb.HGetAll(ctx, progressKey(batchID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("progress hgetall failed: %w", err)
	}
	done, _ = strconv.Atoi(vals["done"])
	total, _ = strconv.Atoi(vals["total"])
	return done, total, nil
}
