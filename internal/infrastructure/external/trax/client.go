// Package trax implements the TRAX API client. TRAX is the legacy
// source-of-truth system; the hub reads from it the optional program
// registry, student demographics, and French course evidence.
package trax

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
	"github.com/grad-hub/grad-record-hub/pkg/circuitbreaker"
	"github.com/grad-hub/grad-record-hub/pkg/retry"
	"github.com/grad-hub/grad-record-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the TRAX API client.
type ClientConfig struct {
	// BaseURL is the TRAX API base URL
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
		Timeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the TRAX API client. Requests go through a retrier and a circuit
// breaker; TRAX is a legacy system and flaps under load.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new TRAX API client.
func NewClient(config ClientConfig) *Client {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	breaker := circuitbreaker.TraxAPIBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	})

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		retrier: retry.TraxAPIRetrier(),
		breaker: breaker,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Optional program registry
// ─────────────────────────────────────────────────────────────────────────────

// GetOptionalProgramRegistry fetches the full optional program registry.
// The scheduler mirrors the result into the local registry table.
func (c *Client) GetOptionalProgramRegistry(ctx context.Context) ([]program.RegistryEntry, error) {
	var dto []registryEntryDTO
	if err := c.get(ctx, "/api/v1/optional-programs", &dto); err != nil {
		return nil, fmt.Errorf("get optional program registry: %w", err)
	}

	entries := make([]program.RegistryEntry, 0, len(dto))
	for _, d := range dto {
		entries = append(entries, program.RegistryEntry{
			ID:                  d.ID,
			MainProgramCode:     d.GraduationProgramCode,
			OptionalProgramCode: d.OptProgramCode,
			Description:         d.Description,
		})
	}

	return entries, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// French course evidence
// ─────────────────────────────────────────────────────────────────────────────

// HasFrenchImmersionEvidence reports whether the student has at least one
// French-language course on file that supports French Immersion under the
// given main program. The course signal from the triggering event, when
// present, is forwarded so TRAX can include a just-written course row that
// has not reached its read replica yet.
func (c *Client) HasFrenchImmersionEvidence(ctx context.Context, programCode string, pen student.PEN, signal student.CourseSignal) (bool, error) {
	query := url.Values{}
	query.Set("program", programCode)
	if signal.CourseCode != "" {
		query.Set("courseCode", signal.CourseCode)
	}
	if signal.CourseLevel != "" {
		query.Set("courseLevel", signal.CourseLevel)
	}
	path := fmt.Sprintf("/api/v1/students/%s/french-courses?%s",
		url.PathEscape(pen.String()), query.Encode())

	var dto frenchEvidenceDTO
	if err := c.get(ctx, path, &dto); err != nil {
		return false, fmt.Errorf("check french evidence for %s: %w", pen, err)
	}

	return dto.HasEvidence, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Demographics
// ─────────────────────────────────────────────────────────────────────────────

// GetStudentDemographics fetches the demographic record for a PEN. The
// NEWSTUDENT handler seeds the new snapshot with it. A missing or
// malformed DOB leaves the birthdate zero; the record still carries names.
func (c *Client) GetStudentDemographics(ctx context.Context, pen student.PEN) (*student.Demographics, error) {
	path := fmt.Sprintf("/api/v1/students/%s/demographics", url.PathEscape(pen.String()))

	var dto demographicsDTO
	if err := c.get(ctx, path, &dto); err != nil {
		return nil, fmt.Errorf("get demographics for %s: %w", pen, err)
	}

	demog := &student.Demographics{
		Pen:         student.PEN(dto.Pen),
		FirstName:   dto.LegalFirstName,
		MiddleNames: dto.LegalMiddleNames,
		LastName:    dto.LegalLastName,
	}

	if dto.DOB != "" {
		birthdate, err := timeutil.ParseISODate(dto.DOB)
		if err != nil {
			c.logger.Warn("malformed dob in trax demographics", "pen", pen, "dob", dto.DOB)
		} else {
			demog.Birthdate = birthdate
		}
	}

	return demog, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

// IsHealthy checks if the TRAX API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var dto map[string]interface{}
	return c.doSingleRequest(ctx, "/api/v1/health", &dto) == nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// get performs a GET request through the circuit breaker and retrier.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.doSingleRequest(ctx, path, result)
		})
	})
}

// doSingleRequest performs a single GET request.
func (c *Client) doSingleRequest(ctx context.Context, path string, result interface{}) error {
	fullURL := c.config.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(shared.WrapError("trax", "Request", shared.ErrServiceUnavailable, "http request failed", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent(shared.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(shared.ErrRateLimited)
	case resp.StatusCode >= 500:
		return retry.Retryable(shared.ErrTraxUnavailable)
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("trax api error: status %d: %s", resp.StatusCode, string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(shared.WrapError("trax", "Parse", shared.ErrInvalidFormat, "unmarshal response", err))
		}
	}

	return nil
}
