// Package grad implements the graduation algorithm API client. The hub only
// ever tells the algorithm which student needs which documents recomputed;
// the recompute itself runs downstream.
package grad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/pkg/circuitbreaker"
	"github.com/grad-hub/grad-record-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the graduation algorithm API client.
type ClientConfig struct {
	// BaseURL is the algorithm API base URL
	BaseURL string

	// APIKey is the API key for authentication
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the graduation algorithm API client. Recompute requests are
// fire-and-forget: the retrier gives up quickly and failures are reported
// to the caller, who logs and moves on.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new graduation algorithm API client.
func NewClient(config ClientConfig) *Client {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	breaker := circuitbreaker.GradAPIBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	})

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		retrier: retry.GradAPIRetrier(),
		breaker: breaker,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch recompute
// ─────────────────────────────────────────────────────────────────────────────

// recomputeRequestDTO is the wire shape of a batch recompute request.
type recomputeRequestDTO struct {
	StudentID         string `json:"studentID"`
	RecalcTranscript  bool   `json:"recalculateGradStatus"`
	RecalcProjected   bool   `json:"recalculateProjectedGrad"`
	RequestedAt       string `json:"requestedAt"`
	RequestingService string `json:"requestingService"`
}

// RequestBatchRecompute asks the algorithm to recompute the official
// transcript and/or the projected graduation status for a student.
func (c *Client) RequestBatchRecompute(ctx context.Context, studentID string, transcript, projected bool) error {
	if !transcript && !projected {
		return nil
	}

	body := recomputeRequestDTO{
		StudentID:         studentID,
		RecalcTranscript:  transcript,
		RecalcProjected:   projected,
		RequestedAt:       time.Now().UTC().Format(time.RFC3339),
		RequestingService: "grad-record-hub",
	}

	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.post(ctx, "/api/v1/batch/recompute", body)
		})
	})
	if err != nil {
		return fmt.Errorf("request batch recompute for %s: %w", studentID, err)
	}

	c.logger.Debug("batch recompute requested",
		"student_id", studentID, "transcript", transcript, "projected", projected)
	return nil
}

// IsHealthy checks if the algorithm API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/v1/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// post performs a single POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(shared.WrapError("grad", "Request", shared.ErrServiceUnavailable, "http request failed", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(shared.ErrRateLimited)
	case resp.StatusCode >= 500:
		return retry.Retryable(shared.ErrGradAPIUnavailable)
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("grad api error: status %d: %s", resp.StatusCode, string(respBody)))
	}

	return nil
}
