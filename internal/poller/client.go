// Package poller provides a polling client for pipeline run status and the
// presentation state machine driven by it.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrRunNotFound indicates the server has no record of the requested run.
var ErrRunNotFound = fmt.Errorf("run not found")

// Snapshot is one observation of a run's status projection.
type Snapshot struct {
	RunID         string                `json:"run_id"`
	Status        string                `json:"status"`
	CurrentStage  int                   `json:"current_stage"`
	Stages        map[string]StageState `json:"stages"`
	BrandName     string                `json:"brand_name"`
	HasFullReport bool                  `json:"hasFullReport"`
}

// StageState is one slot of the snapshot's fixed-shape stages map.
type StageState struct {
	Status      string `json:"status"`
	Output      any    `json:"output,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Terminal reports whether the run will never change again.
func (s *Snapshot) Terminal() bool {
	switch s.Status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}

// Client fetches status projections from the API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a status client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchStatus retrieves the current status projection for a run.
func (c *Client) FetchStatus(ctx context.Context, runID string) (*Snapshot, error) {
	url := fmt.Sprintf("%s/pipeline/%s/status", c.baseURL, runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status request returned %d", resp.StatusCode)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &snapshot, nil
}
