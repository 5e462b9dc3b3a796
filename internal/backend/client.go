// Package backend provides the HTTP client for the external pipeline service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"time"
)

const (
	defaultTimeout    = 30 * time.Second
	maxRetries        = 3
	initialRetryDelay = 1 * time.Second
)

// Sentinel errors classifying trigger failures. Handlers map these onto
// 504 / 503; anything else is a generic 500.
var (
	ErrTimeout     = errors.New("backend request timed out")
	ErrUnavailable = errors.New("backend is unavailable")
)

// Client invokes the external multi-stage pipeline over HTTP. The pipeline
// reports progress back asynchronously via the stage-update webhook; the only
// blocking call in the subsystem is the initial trigger, bounded by the
// client timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a pipeline client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// RunResponse is the external pipeline's response to a trigger call.
type RunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// runRequest is the trigger payload. Inputs travel as structured JSON fields;
// nothing is ever interpolated into a shell or command string.
type runRequest struct {
	BlobURL string `json:"blob_url"`
	BrandID string `json:"brand_id"`
	RunID   string `json:"run_id"`
}

// Run triggers pipeline execution for a document. The run ID is chosen by the
// caller and must already be persisted; the pipeline echoes it back through
// every webhook it sends.
//
// 5xx responses are retried with exponential backoff (1s, 2s, 4s). 4xx
// responses and timeouts are not retried. Upstream error bodies are logged
// server-side and never surfaced in the returned error.
func (c *Client) Run(ctx context.Context, blobURL, brandID, runID string) (*RunResponse, error) {
	body, err := json.Marshal(runRequest{BlobURL: blobURL, BrandID: brandID, RunID: runID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run request: %w", err)
	}

	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialRetryDelay
			log.Printf("[Backend] Retry attempt %d/%d after %s", attempt+1, maxRetries, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, classifyError(ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build run request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			classified := classifyError(err)
			// Timeouts are not retried; the client timeout already elapsed.
			if errors.Is(classified, ErrTimeout) {
				return nil, classified
			}
			lastErr = classified
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var runResp RunResponse
			err := json.NewDecoder(resp.Body).Decode(&runResp)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to decode run response: %w", err)
			}
			return &runResp, nil
		}

		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		log.Printf("[Backend] Run returned %d: %s", resp.StatusCode, string(detail))
		lastStatus = resp.StatusCode

		// 4xx indicates a caller problem; retrying will not change it.
		if resp.StatusCode < 500 {
			return nil, fmt.Errorf("pipeline rejected run request (status %d)", resp.StatusCode)
		}
		lastErr = fmt.Errorf("pipeline returned status %d", resp.StatusCode)
	}

	if lastStatus >= 500 {
		return nil, fmt.Errorf("%w: persistent server errors", ErrUnavailable)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrUnavailable
}

// classifyError maps transport errors onto the sentinel taxonomy.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
