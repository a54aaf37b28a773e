// Package remote holds the shared retry policy for collaborator calls.
// The resolution core never sees retries; it only observes the terminal
// success or failure these helpers produce.
package remote

import (
	"context"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryConfig defines retry behavior for a collaborator client.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     4,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        30 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFatal
)

// ClassifyError determines the action for a given error. Client-side
// mistakes are fatal; transient transport and capacity errors are retried.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry // Should not happen
	}

	// gRPC-backed collaborators surface status codes.
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied,
			codes.Unauthenticated, codes.Unimplemented, codes.FailedPrecondition:
			return ActionFatal
		default:
			return ActionRetry
		}
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// Fatal (request is broken, repeating it cannot help)
	if strings.Contains(s, "400") || strings.Contains(sLower, "bad request") ||
		strings.Contains(s, "401") || strings.Contains(sLower, "unauthorized") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(s, "404") || strings.Contains(sLower, "not found") ||
		strings.Contains(s, "422") || strings.Contains(sLower, "unprocessable") {
		return ActionFatal
	}

	// Default to Retry (network, 5xx, 429, timeouts)
	return ActionRetry
}

// Do executes fn with exponential backoff. Fatal errors and context
// cancellation stop immediately; the last error is returned on exhaustion.
func Do(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ClassifyError(err) == ActionFatal {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt)))
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
